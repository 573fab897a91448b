package unread_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/realtime"
	"github.com/cenety/saascore/svc/unread"
)

const waitFor = 2 * time.Second

// serverCount stands in for the notifications table.
type serverCount struct {
	value atomic.Int64
	calls atomic.Int64
	fail  atomic.Bool
}

func (s *serverCount) CountUnread(context.Context, uuid.UUID) (int, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return 0, errors.New("connection reset")
	}
	return int(s.value.Load()), nil
}

type countLog struct {
	mu     sync.Mutex
	values []int
}

func (l *countLog) record(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, n)
}

func (l *countLog) all() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.values...)
}

type stallingTransport struct{ realtime.Transport }

func (stallingTransport) Subscribe(ctx context.Context, _ string) (realtime.Subscription, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newClient(tr realtime.Transport) *realtime.Client {
	return realtime.NewClient(tr,
		realtime.WithSubscribeTimeout(50*time.Millisecond),
		realtime.WithClientLogger(logger.Discard()),
	)
}

func change(t *testing.T, typ realtime.ChangeType, userID uuid.UUID, read bool) realtime.Envelope {
	t.Helper()
	row, err := json.Marshal(notifications.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    notifications.TypeInfo,
		Title:   "New comment",
		Content: "Someone replied to your ticket.",
		Read:    read,
	})
	require.NoError(t, err)

	ev := realtime.ChangeEvent{Type: typ, Schema: notifications.Schema, Table: notifications.Table}
	switch typ {
	case realtime.Delete:
		ev.Old = row
	case realtime.Update:
		ev.New = row
		ev.Old = row
	default:
		ev.New = row
	}
	return realtime.NewChange(ev)
}

func subscribed(t *testing.T, tr *realtime.MemoryTransport, server *serverCount, opts ...unread.Option) (*unread.Counter, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	c := unread.NewCounter(newClient(tr), server, append([]unread.Option{unread.WithLogger(logger.Discard())}, opts...)...)
	t.Cleanup(c.Disconnect)

	c.Sync(context.Background(), userID)
	require.Equal(t, realtime.Subscribed, c.State())
	require.Equal(t, int64(1), server.calls.Load())
	return c, userID
}

func TestCounter_Insert(t *testing.T) {
	t.Parallel()

	t.Run("optimistic increment then reconciled", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		log := &countLog{}
		var alerts []unread.Alert
		var mu sync.Mutex
		c, userID := subscribed(t, tr, server,
			unread.WithOnCount(log.record),
			unread.WithAlerter(unread.AlerterFunc(func(_ context.Context, a unread.Alert) {
				mu.Lock()
				alerts = append(alerts, a)
				mu.Unlock()
			})),
		)

		server.value.Store(5)
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, userID, false)))

		assert.Eventually(t, func() bool { return c.Unread() == 5 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, []int{1, 5}, log.all())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, alerts, 1)
		assert.True(t, alerts[0].Sound)
		assert.Equal(t, "view", alerts[0].ActionLabel)
		assert.Equal(t, unread.InboxURL, alerts[0].ActionURL)
		assert.Equal(t, userID, alerts[0].Notification.UserID)
	})

	t.Run("read insert does not bump or alert", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		var alerted atomic.Bool
		c, userID := subscribed(t, tr, server, unread.WithAlerter(unread.AlerterFunc(func(context.Context, unread.Alert) {
			alerted.Store(true)
		})))

		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, userID, true)))
		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Zero(t, c.Unread())
		assert.False(t, alerted.Load())
	})

	t.Run("muted alerts still count", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		var alerted atomic.Bool
		c, userID := subscribed(t, tr, server,
			unread.WithAlerter(unread.AlerterFunc(func(context.Context, unread.Alert) { alerted.Store(true) })),
			unread.WithMute(func(notifications.Notification) bool { return true }),
		)

		server.value.Store(1)
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, userID, false)))
		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, 1, c.Unread())
		assert.False(t, alerted.Load())
	})

	t.Run("other users are filtered out", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		c, userID := subscribed(t, tr, server)

		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, uuid.New(), false)))
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Update, userID, true)))

		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Zero(t, c.Unread())
	})
}

func TestCounter_Delete(t *testing.T) {
	t.Parallel()

	t.Run("read row does not decrement", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		server.value.Store(2)
		log := &countLog{}
		c, userID := subscribed(t, tr, server, unread.WithOnCount(log.record))
		require.Equal(t, 2, c.Unread())

		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Delete, userID, true)))
		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, 2, c.Unread())
		assert.Equal(t, []int{2}, log.all())
	})

	t.Run("unread row decrements", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		server.value.Store(2)
		log := &countLog{}
		c, userID := subscribed(t, tr, server, unread.WithOnCount(log.record))

		server.value.Store(1)
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Delete, userID, false)))
		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, 1, c.Unread())
		assert.Equal(t, []int{2, 1}, log.all())
	})

	t.Run("decrement is clamped at zero", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		log := &countLog{}
		c, userID := subscribed(t, tr, server, unread.WithOnCount(log.record))

		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Delete, userID, false)))
		assert.Eventually(t, func() bool { return server.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
		assert.Zero(t, c.Unread())
		assert.Empty(t, log.all())
	})
}

func TestCounter_Sync(t *testing.T) {
	t.Parallel()

	t.Run("nil user is disconnected with zero count", func(t *testing.T) {
		t.Parallel()
		server := &serverCount{}
		server.value.Store(3)
		c := unread.NewCounter(newClient(realtime.NewMemoryTransport(4)), server, unread.WithLogger(logger.Discard()))

		c.Sync(context.Background(), uuid.Nil)
		assert.Equal(t, realtime.Disconnected, c.State())
		assert.Zero(t, c.Unread())
		assert.Zero(t, server.calls.Load())

		n, err := c.Refetch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("same user is a no-op", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		c, userID := subscribed(t, tr, server)
		c.Sync(context.Background(), userID)

		assert.Equal(t, realtime.Subscribed, c.State())
		assert.Equal(t, int64(1), server.calls.Load())
		assert.Equal(t, 1, tr.Subscribers(realtime.ChangeTopic(notifications.Schema, notifications.Table)))
	})

	t.Run("user change replaces the subscription", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		server.value.Store(4)
		c, first := subscribed(t, tr, server)
		require.Equal(t, 4, c.Unread())

		second := uuid.New()
		server.value.Store(0)
		c.Sync(context.Background(), second)
		require.Equal(t, realtime.Subscribed, c.State())
		assert.Zero(t, c.Unread())

		server.value.Store(7)
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, first, false)))
		require.NoError(t, tr.Publish(context.Background(), change(t, realtime.Insert, second, false)))
		assert.Eventually(t, func() bool { return c.Unread() == 7 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, int64(3), server.calls.Load())
	})

	t.Run("timeout leaves counter disconnected after one reconcile", func(t *testing.T) {
		t.Parallel()
		server := &serverCount{}
		server.value.Store(2)
		c := unread.NewCounter(newClient(stallingTransport{}), server, unread.WithLogger(logger.Discard()))

		c.Sync(context.Background(), uuid.New())
		assert.Equal(t, realtime.Disconnected, c.State())
		assert.Equal(t, int64(1), server.calls.Load())
		assert.Equal(t, 2, c.Unread())
	})

	t.Run("fetch failure keeps last value", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		server.value.Store(3)
		c, _ := subscribed(t, tr, server)

		server.fail.Store(true)
		n, err := c.Refetch(context.Background())
		require.Error(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("disconnect resets", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(16)
		defer tr.Close()

		server := &serverCount{}
		server.value.Store(3)
		c, _ := subscribed(t, tr, server)

		c.Disconnect()
		assert.Equal(t, realtime.Disconnected, c.State())
		assert.Zero(t, c.Unread())
		assert.Zero(t, tr.Subscribers(realtime.ChangeTopic(notifications.Schema, notifications.Table)))
	})
}

func TestCounter_WithManager(t *testing.T) {
	t.Parallel()

	tr := realtime.NewMemoryTransport(16)
	defer tr.Close()

	manager := notifications.NewManager(notifications.NewMemoryStorage(),
		notifications.WithManagerLogger(logger.Discard()),
		notifications.WithChangePublisher(tr),
	)
	userID := uuid.New()
	c := unread.NewCounter(newClient(tr), manager, unread.WithLogger(logger.Discard()))
	defer c.Disconnect()

	c.Sync(context.Background(), userID)
	require.Equal(t, realtime.Subscribed, c.State())

	ctx := context.Background()
	n, err := manager.Send(ctx, notifications.Notification{
		UserID: userID, Type: notifications.TypeWelcome, Title: "Welcome", Content: "Thanks for signing up.",
	})
	require.NoError(t, err)
	_, err = manager.Send(ctx, notifications.Notification{
		UserID: userID, Type: notifications.TypeUpdate, Title: "Release", Content: "Version 2 is out.",
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return c.Unread() == 2 }, waitFor, 5*time.Millisecond)

	_, err = manager.MarkRead(ctx, userID, n.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return c.Unread() == 1 }, waitFor, 5*time.Millisecond)

	_, err = manager.DeleteAll(ctx, userID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return c.Unread() == 0 }, waitFor, 5*time.Millisecond)
}
