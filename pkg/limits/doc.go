// Package limits decides whether a tenant may create one more unit of a
// metered resource.
//
// A check runs in three steps:
//
//  1. Resolver finds the tenant's plan through subscription.Lookup, then the
//     plan's limit for the resource from a Source (plan_limits) and finally
//     from the per-tier FallbackTable.
//  2. Meter counts current usage inside the resource's accounting window
//     (lifetime, or the calendar month so far).
//  3. Enforcer compares the two: allowed when the limit is Unlimited or
//     current < limit.
//
// Everything except an unknown resource tag fails open. A failed plan lookup
// resolves to Unlimited, a failed count yields a degraded zero, and both are
// logged at warn level. Enforce turns a denial into *LimitExceededError,
// whose message is localized through golang.org/x/text (English, German).
//
// Checks take no locks and reserve nothing. Two concurrent requests that both
// observe current = limit-1 will both be allowed and the tenant ends one unit
// over its limit. Callers that need a hard ceiling must enforce it in the
// database (for example with a constraint trigger).
//
// Typical wiring:
//
//	resolver := limits.NewResolver(subscription.NewPGLookup(pool, log),
//		limits.WithSource(usage.NewPlanLimitSource(pool)),
//		limits.WithLogger(log),
//	)
//	meter := limits.NewMeter(usage.Counters(pool), limits.WithLogger(log))
//	enforcer := limits.NewEnforcer(resolver, meter)
//
//	if err := enforcer.Enforce(ctx, userID, limits.ResourceCustomers); err != nil {
//		return err // *LimitExceededError carries the decision and message
//	}
package limits
