package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/webhook"
)

// inlineRunner runs tasks on the caller's goroutine.
type inlineRunner struct{ reject bool }

func (r inlineRunner) Submit(ctx context.Context, _ string, task async.Task) bool {
	if r.reject {
		return false
	}
	_ = task(ctx)
	return true
}

func addEndpoint(t *testing.T, store *webhook.MemoryStore, tenant uuid.UUID, url string, active bool, events ...webhook.Event) webhook.Endpoint {
	t.Helper()
	ep := webhook.Endpoint{
		ID:        uuid.New(),
		TenantID:  tenant,
		Name:      "hook",
		URL:       url,
		Secret:    testSecret,
		Events:    events,
		Active:    active,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), ep))
	return ep
}

func TestDispatcher_Trigger(t *testing.T) {
	t.Parallel()

	t.Run("delivers to subscribed endpoints only", func(t *testing.T) {
		t.Parallel()
		var (
			mu     sync.Mutex
			bodies [][]byte
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, b)
			mu.Unlock()
		}))
		defer srv.Close()

		store := webhook.NewMemoryStore()
		tenant := uuid.New()
		ep := addEndpoint(t, store, tenant, srv.URL, true, webhook.CustomerCreated)
		addEndpoint(t, store, tenant, srv.URL, true, webhook.DocumentCreated)
		addEndpoint(t, store, tenant, srv.URL, false, webhook.CustomerCreated)
		addEndpoint(t, store, uuid.New(), srv.URL, true, webhook.CustomerCreated)

		var observed []webhook.Attempt
		d := webhook.NewDispatcher(store, fastSender(), inlineRunner{},
			webhook.WithDispatcherLogger(logger.Discard()),
			webhook.WithAttemptObserver(func(e webhook.Event, a webhook.Attempt) {
				assert.Equal(t, webhook.CustomerCreated, e)
				observed = append(observed, a)
			}),
		)

		n := d.Trigger(context.Background(), tenant, webhook.CustomerCreated, map[string]string{"id": "c1"})
		assert.Equal(t, 1, n)
		require.Len(t, bodies, 1)
		require.Len(t, observed, 1)

		var p struct {
			Event string            `json:"event"`
			Data  map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(bodies[0], &p))
		assert.Equal(t, "customer.created", p.Event)
		assert.Equal(t, "c1", p.Data["id"])

		deliveries := store.Deliveries()
		require.Len(t, deliveries, 1)
		assert.Equal(t, ep.ID, deliveries[0].WebhookID)
		assert.True(t, deliveries[0].Success)
		assert.Equal(t, 0, deliveries[0].RetryCount)
		assert.Equal(t, http.StatusOK, deliveries[0].ResponseStatus)
		assert.JSONEq(t, string(bodies[0]), string(deliveries[0].Payload))
	})

	t.Run("records every failed attempt", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		}))
		defer srv.Close()

		store := webhook.NewMemoryStore()
		tenant := uuid.New()
		addEndpoint(t, store, tenant, srv.URL, true, webhook.DocumentDeleted)

		d := webhook.NewDispatcher(store, fastSender(), inlineRunner{}, webhook.WithDispatcherLogger(logger.Discard()))
		assert.Equal(t, 1, d.Trigger(context.Background(), tenant, webhook.DocumentDeleted, nil))

		deliveries := store.Deliveries()
		require.Len(t, deliveries, 4)
		for i, del := range deliveries {
			assert.Equal(t, i, del.RetryCount)
			assert.False(t, del.Success)
			assert.Equal(t, "boom", del.ResponseBody)
			assert.Contains(t, del.ErrorMessage, "500")
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		t.Parallel()
		d := webhook.NewDispatcher(webhook.NewMemoryStore(), fastSender(), inlineRunner{}, webhook.WithDispatcherLogger(logger.Discard()))
		assert.Zero(t, d.Trigger(context.Background(), uuid.New(), webhook.Event("invoice.paid"), nil))
	})

	t.Run("rejected submissions are not counted", func(t *testing.T) {
		t.Parallel()
		store := webhook.NewMemoryStore()
		tenant := uuid.New()
		addEndpoint(t, store, tenant, "https://example.com/hook", true, webhook.CustomerCreated)

		d := webhook.NewDispatcher(store, fastSender(), inlineRunner{reject: true}, webhook.WithDispatcherLogger(logger.Discard()))
		assert.Zero(t, d.Trigger(context.Background(), tenant, webhook.CustomerCreated, nil))
		assert.Empty(t, store.Deliveries())
	})

	t.Run("with async runner", func(t *testing.T) {
		t.Parallel()
		done := make(chan struct{}, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done <- struct{}{}
		}))
		defer srv.Close()

		store := webhook.NewMemoryStore()
		tenant := uuid.New()
		addEndpoint(t, store, tenant, srv.URL, true, webhook.QRCodeScanned)

		runner := async.NewRunner(async.WithLogger(logger.Discard()))
		d := webhook.NewDispatcher(store, fastSender(), runner, webhook.WithDispatcherLogger(logger.Discard()))
		assert.Equal(t, 1, d.Trigger(context.Background(), tenant, webhook.QRCodeScanned, nil))

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("webhook was not delivered")
		}
		require.NoError(t, runner.Close(context.Background()))
		assert.Len(t, store.Deliveries(), 1)
	})
}
