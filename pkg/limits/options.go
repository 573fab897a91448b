package limits

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Observer receives every decision made by an Enforcer.
type Observer func(ctx context.Context, d Decision)

type options struct {
	logger   *slog.Logger
	clock    clockwork.Clock
	location *time.Location
	observer Observer
	messages *Messages
	policy   Policy
	fallback FallbackTable
	source   Source
}

func defaultOptions() *options {
	return &options{
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		location: time.UTC,
		policy:   DefaultPolicy,
	}
}

// Option configures a Resolver, Meter or Enforcer. Each constructor ignores
// options that do not apply to it.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for monthly windows.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLocation sets the time zone in which months start. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

func WithMessages(m *Messages) Option {
	return func(o *options) {
		if m != nil {
			o.messages = m
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithFallback replaces the built-in per-tier fallback table.
func WithFallback(t FallbackTable) Option {
	return func(o *options) {
		if t != nil {
			o.fallback = t.Clone()
		}
	}
}

// WithSource sets the database-backed plan limit source.
func WithSource(s Source) Option {
	return func(o *options) { o.source = s }
}
