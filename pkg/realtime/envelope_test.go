package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/realtime"
)

func TestEnvelope(t *testing.T) {
	t.Parallel()

	t.Run("change topic defaults to public", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "changes:public.user_notifications", realtime.ChangeTopic("", "user_notifications"))
		assert.Equal(t, "changes:billing.invoices", realtime.ChangeTopic("billing", "invoices"))
	})

	t.Run("broadcast payload round trip", func(t *testing.T) {
		t.Parallel()
		env, err := realtime.NewBroadcast("typing-indicator:42", "client-1", "typing", map[string]string{"user_name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, realtime.KindBroadcast, env.Kind)

		var got map[string]string
		require.NoError(t, env.Broadcast.Decode(&got))
		assert.Equal(t, "Ada", got["user_name"])
	})

	t.Run("broadcast without payload", func(t *testing.T) {
		t.Parallel()
		env, err := realtime.NewBroadcast("room", "", "ping", nil)
		require.NoError(t, err)
		assert.ErrorIs(t, env.Broadcast.Decode(&struct{}{}), realtime.ErrInvalidPayload)
	})

	t.Run("broadcast without event is invalid", func(t *testing.T) {
		t.Parallel()
		_, err := realtime.NewBroadcast("room", "", "", nil)
		assert.ErrorIs(t, err, realtime.ErrInvalidEnvelope)
	})

	t.Run("delete row is the old image", func(t *testing.T) {
		t.Parallel()
		ev := realtime.ChangeEvent{
			Type:  realtime.Delete,
			Table: "user_notifications",
			Old:   json.RawMessage(`{"is_read":false}`),
		}
		assert.JSONEq(t, `{"is_read":false}`, string(ev.Row()))
		assert.ErrorIs(t, ev.DecodeNew(&struct{}{}), realtime.ErrInvalidPayload)

		env := realtime.NewChange(ev)
		require.NoError(t, env.Validate())
		assert.Equal(t, "changes:public.user_notifications", env.Topic)
	})

	t.Run("invalid envelopes", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, realtime.Envelope{Kind: realtime.KindChange}.Validate(), realtime.ErrInvalidEnvelope)
		assert.ErrorIs(t, realtime.Envelope{Kind: realtime.KindChange, Topic: "t"}.Validate(), realtime.ErrInvalidEnvelope)
		assert.ErrorIs(t, realtime.Envelope{Kind: "presence", Topic: "t"}.Validate(), realtime.ErrInvalidEnvelope)
	})
}
