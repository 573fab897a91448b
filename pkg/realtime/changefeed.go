package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cenety/saascore/pkg/logger"
)

// ChangesChannel is the Postgres NOTIFY channel the change triggers write to.
const ChangesChannel = "realtime_changes"

// NotificationSource yields Postgres notifications, e.g. a pg.Listener.
type NotificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// PGChangeFeed republishes trigger payloads as change envelopes.
type PGChangeFeed struct {
	publisher Publisher
	logger    *slog.Logger
	onPublish func(topic string)
}

type ChangeFeedOption func(*PGChangeFeed)

func WithChangeFeedLogger(l *slog.Logger) ChangeFeedOption {
	return func(f *PGChangeFeed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithPublishHook is called after every successfully published change.
func WithPublishHook(fn func(topic string)) ChangeFeedOption {
	return func(f *PGChangeFeed) { f.onPublish = fn }
}

func NewPGChangeFeed(publisher Publisher, opts ...ChangeFeedOption) *PGChangeFeed {
	f := &PGChangeFeed{publisher: publisher, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run consumes notifications until ctx is done or the source fails.
// Malformed payloads are logged and skipped.
func (f *PGChangeFeed) Run(ctx context.Context, src NotificationSource) error {
	for {
		n, err := src.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(ErrChannel, err)
		}
		if n.Channel != ChangesChannel {
			continue
		}
		if err := f.Handle(ctx, n.Payload); err != nil {
			f.logger.WarnContext(ctx, "failed to republish database change",
				logger.Component("changefeed"),
				logger.Error(err),
			)
		}
	}
}

// Handle publishes a single trigger payload.
func (f *PGChangeFeed) Handle(ctx context.Context, payload string) error {
	ev, err := ParseChangePayload([]byte(payload))
	if err != nil {
		return err
	}
	env := NewChange(ev)
	if err := f.publisher.Publish(ctx, env); err != nil {
		return err
	}
	if f.onPublish != nil {
		f.onPublish(env.Topic)
	}
	return nil
}

// ParseChangePayload decodes the JSON written by the change trigger.
func ParseChangePayload(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	ev.New = nullToEmpty(ev.New)
	ev.Old = nullToEmpty(ev.Old)

	switch ev.Type {
	case Insert, Update:
		if len(ev.New) == 0 {
			return ChangeEvent{}, fmt.Errorf("%w: %s without new row", ErrInvalidPayload, ev.Type)
		}
	case Delete:
		if len(ev.Old) == 0 {
			return ChangeEvent{}, fmt.Errorf("%w: DELETE without old row", ErrInvalidPayload)
		}
	default:
		return ChangeEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, ev.Type)
	}
	if ev.Table == "" {
		return ChangeEvent{}, fmt.Errorf("%w: missing table", ErrInvalidPayload)
	}
	if ev.Schema == "" {
		ev.Schema = "public"
	}
	return ev, nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
