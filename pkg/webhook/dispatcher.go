package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/logger"
)

// Submitter runs best-effort tasks, e.g. *async.Runner.
type Submitter interface {
	Submit(ctx context.Context, name string, task async.Task) bool
}

// Dispatcher fans events out to subscribed endpoints.
type Dispatcher struct {
	store     Store
	sender    *Sender
	runner    Submitter
	clock     clockwork.Clock
	logger    *slog.Logger
	onAttempt func(Event, Attempt)
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithDispatcherClock(c clockwork.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithAttemptObserver is called for every delivery attempt, e.g. for metrics.
func WithAttemptObserver(fn func(Event, Attempt)) DispatcherOption {
	return func(d *Dispatcher) { d.onAttempt = fn }
}

func NewDispatcher(store Store, sender *Sender, runner Submitter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		sender: sender,
		runner: runner,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger queues one delivery per endpoint of tenantID subscribed to event and
// returns how many were queued. Delivery outcomes are only logged and recorded.
func (d *Dispatcher) Trigger(ctx context.Context, tenantID uuid.UUID, event Event, data any) int {
	log := d.logger.With(logger.TenantID(tenantID), logger.EventType(string(event)))

	if !event.Valid() {
		log.WarnContext(ctx, "ignoring unknown webhook event")
		return 0
	}

	endpoints, err := d.store.Subscribed(ctx, tenantID, event)
	if err != nil {
		log.ErrorContext(ctx, "failed to load webhook endpoints", logger.Error(err))
		return 0
	}
	if len(endpoints) == 0 {
		return 0
	}

	payload, err := json.Marshal(Payload{Event: event, Data: data, Timestamp: d.clock.Now().UTC()})
	if err != nil {
		log.ErrorContext(ctx, "failed to encode webhook payload", logger.Error(err))
		return 0
	}

	queued := 0
	for _, ep := range endpoints {
		if d.runner.Submit(ctx, "webhook:"+string(event), d.deliverTask(ep, event, payload)) {
			queued++
		}
	}
	return queued
}

func (d *Dispatcher) deliverTask(ep Endpoint, event Event, payload []byte) async.Task {
	return func(ctx context.Context) error {
		req := Request{URL: ep.URL, Secret: ep.Secret, Event: event, Payload: payload}
		err := d.sender.Send(ctx, req, func(a Attempt) {
			d.record(ctx, ep, event, payload, a)
		})
		if err == nil {
			d.logger.InfoContext(ctx, "webhook delivered",
				slog.String("webhook_id", ep.ID.String()),
				logger.EventType(string(event)),
			)
		}
		return err
	}
}

func (d *Dispatcher) record(ctx context.Context, ep Endpoint, event Event, payload []byte, a Attempt) {
	if d.onAttempt != nil {
		d.onAttempt(event, a)
	}

	delivery := Delivery{
		WebhookID:      ep.ID,
		Event:          event,
		Payload:        payload,
		ResponseStatus: a.StatusCode,
		ResponseBody:   a.Body,
		RetryCount:     a.Number,
		Success:        a.Success(),
		DeliveredAt:    d.clock.Now(),
	}
	if a.Err != nil {
		delivery.ErrorMessage = a.Err.Error()
	}
	if err := d.store.RecordDelivery(ctx, delivery); err != nil {
		d.logger.WarnContext(ctx, "failed to record webhook delivery",
			slog.String("webhook_id", ep.ID.String()),
			logger.RetryCount(a.Number),
			logger.Error(err),
		)
	}
}
