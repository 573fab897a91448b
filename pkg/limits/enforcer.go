package limits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Enforcer combines a Resolver and a Meter into allow/deny decisions.
type Enforcer struct {
	resolver *Resolver
	meter    *Meter
	messages *Messages
	observer Observer
}

func NewEnforcer(resolver *Resolver, meter *Meter, opts ...Option) *Enforcer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.messages == nil {
		o.messages = NewMessages()
	}
	return &Enforcer{
		resolver: resolver,
		meter:    meter,
		messages: o.messages,
		observer: o.observer,
	}
}

// Check reports whether the tenant may create one more unit of res. It is
// read-only and idempotent. The only error is ErrInvalidResourceType; lookup
// and counting failures produce an allowed decision.
func (e *Enforcer) Check(ctx context.Context, tenantID uuid.UUID, res Resource) (Decision, error) {
	if !res.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidResourceType, res)
	}

	r, err := e.resolver.Resolve(ctx, tenantID, res)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Resource: res,
		Allowed:  true,
		Limit:    r.Limit,
		Period:   r.Period,
		Plan:     r.Plan.Key,
		Origin:   r.Origin,
	}

	if !r.Limit.IsUnlimited() {
		usage := e.meter.Count(ctx, tenantID, res, r.Period)
		d.Current = usage.Current
		d.Degraded = usage.Degraded
		d.Allowed = usage.Degraded || usage.Current < int64(r.Limit)
	}

	if !d.Allowed {
		d.Message = e.messages.Denied(LanguageFromContext(ctx), res, d.Period, d.Limit)
	}

	if e.observer != nil {
		e.observer(ctx, d)
	}
	return d, nil
}

// Enforce returns a *LimitExceededError when Check denies.
func (e *Enforcer) Enforce(ctx context.Context, tenantID uuid.UUID, res Resource) error {
	d, err := e.Check(ctx, tenantID, res)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &LimitExceededError{Decision: d}
	}
	return nil
}

// Report checks every known resource. Intended for usage dashboards.
func (e *Enforcer) Report(ctx context.Context, tenantID uuid.UUID) []Decision {
	out := make([]Decision, 0, len(AllResources))
	for _, res := range AllResources {
		d, err := e.Check(ctx, tenantID, res)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
