package unread

import (
	"context"

	"github.com/cenety/saascore/pkg/notifications"
)

// InboxURL is where the alert's view action points.
const InboxURL = "/profile/notifications"

// Alert is raised once per newly inserted unread notification.
type Alert struct {
	Notification notifications.Notification `json:"notification"`
	Sound        bool                       `json:"sound"`
	ActionLabel  string                     `json:"action_label"`
	ActionURL    string                     `json:"action_url"`
}

type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

type AlerterFunc func(ctx context.Context, a Alert)

func (f AlerterFunc) Alert(ctx context.Context, a Alert) { f(ctx, a) }

func newAlert(n notifications.Notification) Alert {
	return Alert{
		Notification: n,
		Sound:        true,
		ActionLabel:  "view",
		ActionURL:    InboxURL,
	}
}
