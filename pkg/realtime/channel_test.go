package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/realtime"
)

// stallingTransport never acknowledges a subscription.
type stallingTransport struct{ realtime.Transport }

func (stallingTransport) Subscribe(ctx context.Context, _ string) (realtime.Subscription, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingTransport struct{ realtime.Transport }

func (failingTransport) Subscribe(context.Context, string) (realtime.Subscription, error) {
	return nil, errors.New("connection refused")
}

type statusLog struct {
	mu       sync.Mutex
	statuses []realtime.Status
}

func (l *statusLog) record(s realtime.Status, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) all() []realtime.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]realtime.Status(nil), l.statuses...)
}

func newClient(tr realtime.Transport, id string) *realtime.Client {
	return realtime.NewClient(tr,
		realtime.WithClientID(id),
		realtime.WithSubscribeTimeout(50*time.Millisecond),
		realtime.WithClientLogger(logger.Discard()),
	)
}

func notificationChange(t *testing.T, typ realtime.ChangeType, userID string, read bool) realtime.Envelope {
	t.Helper()
	row, err := json.Marshal(map[string]any{"id": "n1", "user_id": userID, "is_read": read})
	require.NoError(t, err)
	ev := realtime.ChangeEvent{Type: typ, Schema: "public", Table: "user_notifications"}
	if typ == realtime.Delete {
		ev.Old = row
	} else {
		ev.New = row
	}
	return realtime.NewChange(ev)
}

func TestChannel_Broadcast(t *testing.T) {
	t.Parallel()

	tr := realtime.NewMemoryTransport(8)
	defer tr.Close()

	alice := newClient(tr, "alice")
	bob := newClient(tr, "bob")

	received := make(chan realtime.BroadcastEvent, 4)
	aliceEcho := make(chan realtime.BroadcastEvent, 4)

	chA := alice.Channel("typing-indicator:t1").OnBroadcast("typing", func(_ context.Context, ev realtime.BroadcastEvent) {
		aliceEcho <- ev
	})
	chB := bob.Channel("typing-indicator:t1").OnBroadcast("typing", func(_ context.Context, ev realtime.BroadcastEvent) {
		received <- ev
	})

	var logA statusLog
	require.NoError(t, chA.Subscribe(context.Background(), logA.record))
	require.NoError(t, chB.Subscribe(context.Background(), nil))
	defer chB.Close()

	require.NoError(t, chA.Send(context.Background(), "typing", map[string]string{"userId": "alice"}))

	select {
	case ev := <-received:
		assert.Equal(t, "typing", ev.Event)
		assert.JSONEq(t, `{"userId":"alice"}`, string(ev.Payload))
	case <-time.After(time.Second):
		t.Fatal("bob did not receive the broadcast")
	}

	require.NoError(t, chA.Close())
	assert.Empty(t, aliceEcho, "sender must not receive its own broadcast")
	assert.Equal(t, []realtime.Status{realtime.StatusSubscribed, realtime.StatusClosed}, logA.all())
}

func TestChannel_ChangeFilter(t *testing.T) {
	t.Parallel()

	tr := realtime.NewMemoryTransport(8)
	defer tr.Close()

	got := make(chan realtime.ChangeEvent, 4)
	ch := newClient(tr, "c").Channel("notifications:u1").OnChange(realtime.ChangeFilter{
		Type:   realtime.Insert,
		Schema: "public",
		Table:  "user_notifications",
		Filter: "user_id=eq.u1",
	}, func(_ context.Context, ev realtime.ChangeEvent) { got <- ev })

	require.NoError(t, ch.Subscribe(context.Background(), nil))
	defer ch.Close()

	ctx := context.Background()
	require.NoError(t, tr.Publish(ctx, notificationChange(t, realtime.Insert, "u2", false)))
	require.NoError(t, tr.Publish(ctx, notificationChange(t, realtime.Update, "u1", true)))
	require.NoError(t, tr.Publish(ctx, notificationChange(t, realtime.Insert, "u1", false)))

	select {
	case ev := <-got:
		assert.Equal(t, realtime.Insert, ev.Type)
		assert.Contains(t, string(ev.New), `"user_id":"u1"`)
	case <-time.After(time.Second):
		t.Fatal("matching insert not delivered")
	}
	assert.Never(t, func() bool { return len(got) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestChannel_SubscribeFailures(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		var log statusLog
		ch := newClient(stallingTransport{}, "c").Channel("x")

		err := ch.Subscribe(context.Background(), log.record)
		require.ErrorIs(t, err, realtime.ErrTimedOut)
		assert.Equal(t, []realtime.Status{realtime.StatusTimedOut}, log.all())

		assert.ErrorIs(t, ch.Subscribe(context.Background(), nil), realtime.ErrChannelSpent)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		var log statusLog
		ch := newClient(failingTransport{}, "c").Channel("x")

		require.ErrorIs(t, ch.Subscribe(context.Background(), log.record), realtime.ErrChannel)
		assert.Equal(t, []realtime.Status{realtime.StatusChannelError}, log.all())
	})

	t.Run("invalid filter", func(t *testing.T) {
		t.Parallel()
		ch := newClient(realtime.NewMemoryTransport(1), "c").Channel("x").
			OnChange(realtime.ChangeFilter{Table: "t", Filter: "user_id=gt.3"}, func(context.Context, realtime.ChangeEvent) {})
		assert.ErrorIs(t, ch.Subscribe(context.Background(), nil), realtime.ErrInvalidFilter)
	})

	t.Run("send before subscribe", func(t *testing.T) {
		t.Parallel()
		ch := newClient(realtime.NewMemoryTransport(1), "c").Channel("x")
		assert.ErrorIs(t, ch.Send(context.Background(), "typing", nil), realtime.ErrNotSubscribed)
	})
}

func TestChannel_DroppedSubscription(t *testing.T) {
	t.Parallel()

	tr := realtime.NewMemoryTransport(8)
	var log statusLog
	ch := newClient(tr, "c").Channel("x").OnBroadcast("*", func(context.Context, realtime.BroadcastEvent) {})
	require.NoError(t, ch.Subscribe(context.Background(), log.record))

	require.NoError(t, tr.Close())

	assert.Eventually(t, func() bool {
		s := log.all()
		return len(s) == 2 && s[1] == realtime.StatusChannelError
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ch.Close())
	assert.Len(t, log.all(), 2, "close after failure reports nothing new")
}

func TestChannel_HandlerPanicDoesNotKillChannel(t *testing.T) {
	t.Parallel()

	tr := realtime.NewMemoryTransport(8)
	defer tr.Close()

	calls := make(chan string, 4)
	ch := newClient(tr, "c").Channel("x").OnBroadcast("e", func(_ context.Context, ev realtime.BroadcastEvent) {
		calls <- string(ev.Payload)
		if string(ev.Payload) == `"boom"` {
			panic("handler failure")
		}
	})
	require.NoError(t, ch.Subscribe(context.Background(), nil))
	defer ch.Close()

	for _, p := range []string{"boom", "fine"} {
		env, err := realtime.NewBroadcast("x", "other", "e", p)
		require.NoError(t, err)
		require.NoError(t, tr.Publish(context.Background(), env))
	}

	assert.Eventually(t, func() bool { return len(calls) == 2 }, time.Second, 5*time.Millisecond)
}
