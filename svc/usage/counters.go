package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/pg"
)

// Row-count queries take the tenant id and the window bounds. Lifetime
// windows pass NULL for both so rows stamped by a database clock ahead of
// ours still count.
const (
	CustomersQuery = `SELECT count(*) FROM customers
WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND ($3::timestamptz IS NULL OR created_at < $3)`

	QRCodesQuery = `SELECT count(*) FROM customers
WHERE user_id = $1 AND qr_code IS NOT NULL AND ($2::timestamptz IS NULL OR created_at >= $2) AND ($3::timestamptz IS NULL OR created_at < $3)`

	DocumentsQuery = `SELECT count(*) FROM documents
WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND ($3::timestamptz IS NULL OR created_at < $3)`

	TeamMembersQuery = `SELECT count(*) FROM team_members
WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND ($3::timestamptz IS NULL OR created_at < $3)`

	WebhooksQuery = `SELECT count(*) FROM webhooks
WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND ($3::timestamptz IS NULL OR created_at < $3)`

	metricSumQuery = `SELECT COALESCE(SUM(value), 0) FROM usage_metrics
WHERE user_id = $1 AND metric_type = $2 AND ($3::timestamptz IS NULL OR period_start >= $3) AND ($4::timestamptz IS NULL OR period_start < $4)`
)

// Rows counts the rows matched by query inside the window.
func Rows(db pg.DB, query string) limits.Counter {
	return limits.CounterFunc(func(ctx context.Context, tenantID uuid.UUID, w limits.Window) (int64, error) {
		var n int64
		if err := db.QueryRow(ctx, query, tenantID, windowStart(w), windowEnd(w)).Scan(&n); err != nil {
			return 0, errors.Join(ErrFailedToCount, err)
		}
		return n, nil
	})
}

// MetricSum adds up usage_metrics values of metric whose period starts
// inside the window.
func MetricSum(db pg.DB, metric limits.Resource) limits.Counter {
	return limits.CounterFunc(func(ctx context.Context, tenantID uuid.UUID, w limits.Window) (int64, error) {
		var n int64
		if err := db.QueryRow(ctx, metricSumQuery, tenantID, string(metric), windowStart(w), windowEnd(w)).Scan(&n); err != nil {
			return 0, errors.Join(ErrFailedToCount, err)
		}
		return n, nil
	})
}

func windowStart(w limits.Window) *time.Time {
	if !w.Bounded() {
		return nil
	}
	return &w.Start
}

func windowEnd(w limits.Window) *time.Time {
	if !w.Bounded() {
		return nil
	}
	return &w.End
}

type countersOptions struct {
	storage limits.Counter
}

type CountersOption func(*countersOptions)

// WithObjectStore counts storage as MiB stored under "<tenant id>/" in bucket.
func WithObjectStore(client ObjectLister, bucket string) CountersOption {
	return func(o *countersOptions) {
		if client != nil && bucket != "" {
			o.storage = NewStorageCounter(client, bucket)
		}
	}
}

// Counters registers a counter for every resource. Storage reports 0 without
// an object store and custom domains report a fixed 1 until domains are stored.
func Counters(db pg.DB, opts ...CountersOption) limits.CounterRegistry {
	o := &countersOptions{storage: limits.Fixed(0)}
	for _, opt := range opts {
		opt(o)
	}

	r := limits.NewRegistry()
	r.Register(limits.ResourceCustomers, Rows(db, CustomersQuery))
	r.Register(limits.ResourceQRCodes, Rows(db, QRCodesQuery))
	r.Register(limits.ResourceDocuments, Rows(db, DocumentsQuery))
	r.Register(limits.ResourceTeamMembers, Rows(db, TeamMembersQuery))
	r.Register(limits.ResourceWebhooks, Rows(db, WebhooksQuery))
	r.Register(limits.ResourceAPICalls, MetricSum(db, limits.ResourceAPICalls))
	r.Register(limits.ResourceEmailSends, MetricSum(db, limits.ResourceEmailSends))
	r.Register(limits.ResourceStorage, o.storage)
	r.Register(limits.ResourceCustomDomains, limits.Fixed(1))
	return r
}
