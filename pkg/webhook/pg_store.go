package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cenety/saascore/pkg/pg"
)

// PGStore keeps endpoints in webhooks and attempts in webhook_deliveries.
type PGStore struct {
	db pg.DB
}

func NewPGStore(db pg.DB) *PGStore {
	return &PGStore{db: db}
}

const endpointColumns = `id, user_id, name, url, secret, events, is_active, created_at`

const (
	insertEndpointQuery = `INSERT INTO webhooks (id, user_id, name, url, secret, events, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listEndpointsQuery = `SELECT ` + endpointColumns + `
FROM webhooks
WHERE user_id = $1
ORDER BY created_at`

	subscribedEndpointsQuery = `SELECT ` + endpointColumns + `
FROM webhooks
WHERE user_id = $1 AND is_active AND $2 = ANY(events)`

	deleteEndpointQuery = `DELETE FROM webhooks WHERE user_id = $1 AND id = $2`

	insertDeliveryQuery = `INSERT INTO webhook_deliveries
	(webhook_id, event_type, payload, response_status, response_body, error_message, retry_count, success, delivered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	purgeDeliveriesQuery = `DELETE FROM webhook_deliveries WHERE delivered_at < $1`
)

func (s *PGStore) Create(ctx context.Context, e Endpoint) error {
	_, err := s.db.Exec(ctx, insertEndpointQuery,
		e.ID, e.TenantID, e.Name, e.URL, e.Secret, eventStrings(e.Events), e.Active, e.CreatedAt,
	)
	return err
}

func (s *PGStore) List(ctx context.Context, tenantID uuid.UUID) ([]Endpoint, error) {
	return s.query(ctx, listEndpointsQuery, tenantID)
}

func (s *PGStore) Subscribed(ctx context.Context, tenantID uuid.UUID, event Event) ([]Endpoint, error) {
	return s.query(ctx, subscribedEndpointsQuery, tenantID, string(event))
}

func (s *PGStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteEndpointQuery, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

func (s *PGStore) RecordDelivery(ctx context.Context, d Delivery) error {
	var status *int
	if d.ResponseStatus != 0 {
		status = &d.ResponseStatus
	}
	_, err := s.db.Exec(ctx, insertDeliveryQuery,
		d.WebhookID, string(d.Event), d.Payload, status,
		nullable(d.ResponseBody), nullable(d.ErrorMessage), d.RetryCount, d.Success, d.DeliveredAt,
	)
	return err
}

func (s *PGStore) PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, purgeDeliveriesQuery, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) query(ctx context.Context, query string, args ...any) ([]Endpoint, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Endpoint, error) {
		var (
			e      Endpoint
			events []string
		)
		if err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.URL, &e.Secret, &events, &e.Active, &e.CreatedAt); err != nil {
			return Endpoint{}, err
		}
		e.Events = make([]Event, len(events))
		for i, ev := range events {
			e.Events[i] = Event(ev)
		}
		return e, nil
	})
}

func eventStrings(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
