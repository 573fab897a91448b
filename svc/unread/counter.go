package unread

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/realtime"
)

// Fetcher returns the authoritative unread count, e.g. *notifications.Manager.
type Fetcher interface {
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Counter tracks one user's unread notifications. It is safe for concurrent use.
type Counter struct {
	scope   *realtime.Scope
	fetcher Fetcher
	alerter Alerter
	mute    func(notifications.Notification) bool
	onCount func(int)
	logger  *slog.Logger

	mu     sync.Mutex
	userID uuid.UUID
	count  int
}

type Option func(*Counter)

func WithAlerter(a Alerter) Option {
	return func(c *Counter) { c.alerter = a }
}

// WithMute suppresses alerts for which fn returns true. The count is still
// updated. Typical use is silencing alerts while a support ticket is open.
func WithMute(fn func(notifications.Notification) bool) Option {
	return func(c *Counter) { c.mute = fn }
}

// WithOnCount is called with every new count value, optimistic or reconciled.
func WithOnCount(fn func(int)) Option {
	return func(c *Counter) { c.onCount = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCounter(client *realtime.Client, fetcher Fetcher, opts ...Option) *Counter {
	c := &Counter{
		scope:   realtime.NewScope(client),
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChannelName is the per-user channel the counter joins.
func ChannelName(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

// Sync points the counter at userID. A nil id disconnects and resets the
// count to 0. The same user while Subscribing or Subscribed is a no-op; a
// different user replaces the subscription. The count is fetched once the
// channel is joined, or once after it fails. Failures are only logged.
func (c *Counter) Sync(ctx context.Context, userID uuid.UUID) {
	if userID == uuid.Nil {
		c.Disconnect()
		return
	}

	c.mu.Lock()
	if c.userID == userID && c.scope.State() != realtime.Disconnected {
		c.mu.Unlock()
		return
	}
	changed := c.userID != userID
	c.userID = userID
	c.mu.Unlock()

	if changed {
		c.scope.Disconnect()
		c.set(userID, 0)
	}

	log := c.logger.With(logger.UserID(userID))
	err := c.scope.Connect(ctx, ChannelName(userID),
		func(ch *realtime.Channel) {
			ch.OnChange(realtime.ChangeFilter{
				Schema: notifications.Schema,
				Table:  notifications.Table,
				Filter: "user_id=eq." + userID.String(),
			}, func(ctx context.Context, ev realtime.ChangeEvent) {
				c.apply(ctx, userID, ev)
			})
		},
		func(status realtime.Status, err error) {
			switch status {
			case realtime.StatusChannelError, realtime.StatusTimedOut:
				log.WarnContext(ctx, "notification channel lost", logger.Status(string(status)), logger.Error(err))
				c.refetch(context.WithoutCancel(ctx), userID)
			case realtime.StatusSubscribed:
				c.refetch(context.WithoutCancel(ctx), userID)
			}
		},
	)
	if err != nil {
		log.DebugContext(ctx, "notification subscription not established", logger.Error(err))
	}
}

// Disconnect releases the subscription synchronously and resets the count.
func (c *Counter) Disconnect() {
	c.scope.Disconnect()

	c.mu.Lock()
	changed := c.count != 0
	c.userID = uuid.Nil
	c.count = 0
	c.mu.Unlock()

	if changed && c.onCount != nil {
		c.onCount(0)
	}
}

// Unread returns the current count.
func (c *Counter) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) State() realtime.State {
	return c.scope.State()
}

// Refetch reconciles the count with the server.
func (c *Counter) Refetch(ctx context.Context) (int, error) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == uuid.Nil {
		return 0, nil
	}
	return c.refetch(ctx, userID)
}

func (c *Counter) apply(ctx context.Context, userID uuid.UUID, ev realtime.ChangeEvent) {
	switch ev.Type {
	case realtime.Insert:
		var n notifications.Notification
		if err := ev.DecodeNew(&n); err != nil {
			c.logger.WarnContext(ctx, "malformed notification insert", logger.UserID(userID), logger.Error(err))
			break
		}
		if n.Read {
			break
		}
		c.add(userID, 1)
		if c.alerter != nil && (c.mute == nil || !c.mute(n)) {
			c.alerter.Alert(ctx, newAlert(n))
		}

	case realtime.Delete:
		var old notifications.Notification
		if err := ev.DecodeOld(&old); err != nil {
			c.logger.WarnContext(ctx, "malformed notification delete", logger.UserID(userID), logger.Error(err))
			break
		}
		if !old.Read {
			c.add(userID, -1)
		}
	}

	c.refetch(ctx, userID)
}

func (c *Counter) refetch(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := c.fetcher.CountUnread(ctx, userID)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch unread count", logger.UserID(userID), logger.Error(err))
		return c.Unread(), err
	}
	c.set(userID, n)
	return n, nil
}

func (c *Counter) add(userID uuid.UUID, delta int) {
	c.mu.Lock()
	if c.userID != userID {
		c.mu.Unlock()
		return
	}
	c.count = max(c.count+delta, 0)
	n := c.count
	c.mu.Unlock()

	if c.onCount != nil {
		c.onCount(n)
	}
}

// set ignores results for a user that is no longer current.
func (c *Counter) set(userID uuid.UUID, n int) {
	c.mu.Lock()
	if c.userID != userID {
		c.mu.Unlock()
		return
	}
	changed := c.count != n
	c.count = max(n, 0)
	c.mu.Unlock()

	if changed && c.onCount != nil {
		c.onCount(n)
	}
}
