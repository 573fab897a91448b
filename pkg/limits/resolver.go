package limits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/subscription"
)

// Origin tells where a resolved limit came from.
type Origin string

const (
	OriginDatabase Origin = "database"
	OriginFallback Origin = "fallback"
	OriginFailOpen Origin = "fail_open"
)

// Resolution is the outcome of resolving a tenant's limit for one resource.
type Resolution struct {
	Allowance
	Plan   subscription.Plan
	Origin Origin
}

// Resolver turns (tenant, resource) into a limit: plan lookup first, then
// the plan_limits source, then the per-tier fallback table. Lookup failures
// never reach the caller; they are logged and resolve to Unlimited.
type Resolver struct {
	plans    subscription.Lookup
	source   Source
	fallback FallbackTable
	policy   Policy
	logger   *slog.Logger
}

func NewResolver(plans subscription.Lookup, opts ...Option) *Resolver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.fallback == nil {
		o.fallback = DefaultFallback()
	}
	return &Resolver{
		plans:    plans,
		source:   o.source,
		fallback: o.fallback,
		policy:   o.policy,
		logger:   o.logger,
	}
}

// Resolve returns the limit for res. The only error is ErrInvalidResourceType.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, res Resource) (out Resolution, err error) {
	if !res.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResourceType, res)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "limit resolution panicked, allowing",
				logger.TenantID(tenantID),
				logger.Resource(res),
				slog.Any("panic", p),
			)
			out, err = r.failOpen(res), nil
		}
	}()

	plan, lookupErr := r.plans.Lookup(ctx, tenantID)
	if lookupErr != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "plan lookup failed, allowing",
			logger.TenantID(tenantID),
			logger.Resource(res),
			logger.Error(lookupErr),
		)
		return r.failOpen(res), nil
	}

	if r.source != nil {
		a, ok, srcErr := r.source.Limit(ctx, plan.Key, res)
		switch {
		case srcErr != nil:
			r.logger.LogAttrs(ctx, slog.LevelWarn, "plan limit lookup failed, using fallback table",
				logger.TenantID(tenantID),
				logger.Plan(plan.Key),
				logger.Resource(res),
				logger.Error(srcErr),
			)
		case ok:
			if a.Period == "" {
				a.Period = r.policy.Period(res)
			}
			return Resolution{Allowance: a, Plan: plan, Origin: OriginDatabase}, nil
		}
	}

	limit, _ := r.fallback.Lookup(plan.Tier, res)
	return Resolution{
		Allowance: Allowance{Limit: limit, Period: r.policy.Period(res)},
		Plan:      plan,
		Origin:    OriginFallback,
	}, nil
}

func (r *Resolver) failOpen(res Resource) Resolution {
	return Resolution{
		Allowance: Allowance{Limit: Unlimited, Period: r.policy.Period(res)},
		Origin:    OriginFailOpen,
	}
}
