package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/pg"
)

const trackQuery = `INSERT INTO usage_metrics (user_id, metric_type, value, period_start, period_end)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, metric_type, period_start)
DO UPDATE SET value = usage_metrics.value + EXCLUDED.value, updated_at = now()`

// Submitter runs best-effort tasks, e.g. *async.Runner.
type Submitter interface {
	Submit(ctx context.Context, name string, task async.Task) bool
}

// Tracker accumulates metered usage into monthly usage_metrics rows.
type Tracker struct {
	db       pg.DB
	runner   Submitter
	clock    clockwork.Clock
	location *time.Location
	logger   *slog.Logger
}

type TrackerOption func(*Tracker)

// WithRunner enables TrackAsync.
func WithRunner(r Submitter) TrackerOption {
	return func(t *Tracker) { t.runner = r }
}

func WithTrackerClock(c clockwork.Clock) TrackerOption {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithTrackerLocation sets the zone month boundaries are computed in. It
// must match the meter's location.
func WithTrackerLocation(loc *time.Location) TrackerOption {
	return func(t *Tracker) {
		if loc != nil {
			t.location = loc
		}
	}
}

func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTracker(db pg.DB, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		db:       db,
		clock:    clockwork.NewRealClock(),
		location: time.UTC,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track adds delta to the tenant's current monthly row for metric.
func (t *Tracker) Track(ctx context.Context, tenantID uuid.UUID, metric limits.Resource, delta int64) error {
	if !metric.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}
	if tenantID == uuid.Nil || delta <= 0 {
		return fmt.Errorf("%w: tenant and positive delta are required", ErrInvalidMetric)
	}

	start := limits.WindowAt(limits.PeriodMonthly, t.clock.Now(), t.location).Start
	end := start.AddDate(0, 1, 0)
	if _, err := t.db.Exec(ctx, trackQuery, tenantID, string(metric), delta, start, end); err != nil {
		return errors.Join(ErrFailedToTrack, err)
	}
	return nil
}

// TrackAsync records usage in the background and reports whether the task
// was accepted. Without a runner it tracks inline and logs failures.
func (t *Tracker) TrackAsync(ctx context.Context, tenantID uuid.UUID, metric limits.Resource, delta int64) bool {
	task := func(ctx context.Context) error {
		return t.Track(ctx, tenantID, metric, delta)
	}
	if t.runner != nil {
		return t.runner.Submit(ctx, "usage:"+string(metric), task)
	}

	if err := task(ctx); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "failed to track usage",
			logger.TenantID(tenantID),
			logger.Resource(metric),
			logger.Error(err),
		)
		return false
	}
	return true
}
