package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/realtime"
)

func broadcastTo(t *testing.T, topic, event string) realtime.Envelope {
	t.Helper()
	env, err := realtime.NewBroadcast(topic, "sender", event, map[string]string{"k": "v"})
	require.NoError(t, err)
	return env
}

func TestMemoryTransport(t *testing.T) {
	t.Parallel()

	t.Run("delivers only to the topic", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(4)
		defer tr.Close()

		a, err := tr.Subscribe(context.Background(), "a")
		require.NoError(t, err)
		b, err := tr.Subscribe(context.Background(), "b")
		require.NoError(t, err)

		require.NoError(t, tr.Publish(context.Background(), broadcastTo(t, "a", "ping")))

		select {
		case env := <-a.C():
			assert.Equal(t, "ping", env.Broadcast.Event)
		case <-time.After(time.Second):
			t.Fatal("no envelope on topic a")
		}
		select {
		case env := <-b.C():
			t.Fatalf("unexpected envelope on topic b: %+v", env)
		default:
		}
	})

	t.Run("slow subscriber is dropped", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(1)
		defer tr.Close()

		sub, err := tr.Subscribe(context.Background(), "slow")
		require.NoError(t, err)

		require.NoError(t, tr.Publish(context.Background(), broadcastTo(t, "slow", "one")))
		require.NoError(t, tr.Publish(context.Background(), broadcastTo(t, "slow", "two")))

		assert.Eventually(t, func() bool { return tr.Subscribers("slow") == 0 }, time.Second, 5*time.Millisecond)

		env, ok := <-sub.C()
		require.True(t, ok)
		assert.Equal(t, "one", env.Broadcast.Event)
		_, ok = <-sub.C()
		assert.False(t, ok, "channel must be closed after drop")
	})

	t.Run("close ends subscriptions", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(1)
		sub, err := tr.Subscribe(context.Background(), "x")
		require.NoError(t, err)

		require.NoError(t, tr.Close())
		require.NoError(t, tr.Close())

		_, ok := <-sub.C()
		assert.False(t, ok)
		assert.ErrorIs(t, tr.Publish(context.Background(), broadcastTo(t, "x", "late")), realtime.ErrTransportClosed)
		_, err = tr.Subscribe(context.Background(), "x")
		assert.ErrorIs(t, err, realtime.ErrTransportClosed)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(1)
		defer tr.Close()

		_, err := tr.Subscribe(context.Background(), "")
		assert.ErrorIs(t, err, realtime.ErrInvalidTopic)
		assert.ErrorIs(t, tr.Publish(context.Background(), realtime.Envelope{Topic: "x", Kind: "bogus"}), realtime.ErrInvalidEnvelope)
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		t.Parallel()
		tr := realtime.NewMemoryTransport(1)
		defer tr.Close()

		sub, err := tr.Subscribe(context.Background(), "x")
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())
		assert.Equal(t, 0, tr.Subscribers("x"))
	})
}
