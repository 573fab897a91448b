package limits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/logger"
)

// Counter returns how much of a resource a tenant has used inside w.
type Counter interface {
	Count(ctx context.Context, tenantID uuid.UUID, w Window) (int64, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, tenantID uuid.UUID, w Window) (int64, error)

func (f CounterFunc) Count(ctx context.Context, tenantID uuid.UUID, w Window) (int64, error) {
	return f(ctx, tenantID, w)
}

// Fixed returns a counter that always reports n. Used for resources that
// have no backing data yet.
func Fixed(n int64) Counter {
	return CounterFunc(func(context.Context, uuid.UUID, Window) (int64, error) { return n, nil })
}

// CounterRegistry maps a Resource to its Counter.
// Not thread-safe: register all counters at startup only.
type CounterRegistry map[Resource]Counter

func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the counter for res. Panics if c is nil.
func (r CounterRegistry) Register(res Resource, c Counter) {
	if c == nil {
		panic(fmt.Sprintf("limits: counter for resource %q cannot be nil", res))
	}
	r[res] = c
}

// Usage is a point-in-time usage snapshot. Degraded is set when the count
// could not be obtained; Current is then 0.
type Usage struct {
	Current  int64
	Degraded bool
}

// Meter computes usage for a resource inside its accounting window.
type Meter struct {
	counters CounterRegistry
	clock    clockwork.Clock
	location *time.Location
	logger   *slog.Logger
}

func NewMeter(counters CounterRegistry, opts ...Option) *Meter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if counters == nil {
		counters = NewRegistry()
	}
	return &Meter{
		counters: counters,
		clock:    o.clock,
		location: o.location,
		logger:   o.logger,
	}
}

// Window returns the current accounting window for p.
func (m *Meter) Window(p Period) Window {
	return WindowAt(p, m.clock.Now(), m.location)
}

// Count never fails: errors and missing counters yield a degraded zero.
func (m *Meter) Count(ctx context.Context, tenantID uuid.UUID, res Resource, p Period) (out Usage) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "usage count panicked, allowing",
				logger.TenantID(tenantID),
				logger.Resource(res),
				slog.Any("panic", r),
			)
			out = Usage{Degraded: true}
		}
	}()

	counter, ok := m.counters[res]
	if !ok {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "no usage counter registered, allowing",
			logger.TenantID(tenantID),
			logger.Resource(res),
		)
		return Usage{Degraded: true}
	}

	n, err := counter.Count(ctx, tenantID, m.Window(p))
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "usage count failed, allowing",
			logger.TenantID(tenantID),
			logger.Resource(res),
			logger.Error(err),
		)
		return Usage{Degraded: true}
	}
	return Usage{Current: max(n, 0)}
}
