package limits_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/subscription"
)

func newEnforcer(plan subscription.Plan, counts map[limits.Resource]int64, opts ...limits.Option) *limits.Enforcer {
	reg := limits.NewRegistry()
	for res, n := range counts {
		reg.Register(res, limits.Fixed(n))
	}
	opts = append([]limits.Option{limits.WithLogger(logger.Discard())}, opts...)
	resolver := limits.NewResolver(subscription.Static(plan), opts...)
	return limits.NewEnforcer(resolver, limits.NewMeter(reg, opts...), opts...)
}

func TestEnforcer_Check(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("free plan at limit is denied", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 3})

		d, err := e.Check(ctx, tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(3), d.Current)
		assert.Equal(t, limits.Limit(3), d.Limit)
		assert.Contains(t, d.Message, "3")
		assert.Contains(t, d.Message, "customers")
		assert.Contains(t, d.Message, "upgrade")
	})

	t.Run("free plan under limit is allowed", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 2})

		d, err := e.Check(ctx, tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Message)
		assert.Equal(t, int64(1), d.Remaining())
	})

	t.Run("enterprise is unlimited and never counts", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		reg := limits.NewRegistry()
		reg.Register(limits.ResourceCustomers, limits.CounterFunc(func(context.Context, uuid.UUID, limits.Window) (int64, error) {
			calls.Add(1)
			return 1_000_000, nil
		}))
		e := limits.NewEnforcer(
			limits.NewResolver(subscription.Static(enterprisePlan), limits.WithLogger(logger.Discard())),
			limits.NewMeter(reg, limits.WithLogger(logger.Discard())),
		)

		d, err := e.Check(ctx, tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Unlimited())
		assert.Equal(t, -1, d.Percentage())
		assert.Zero(t, calls.Load())
	})

	t.Run("monthly documents message mentions the month", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceDocuments: 3})

		d, err := e.Check(ctx, tenant, limits.ResourceDocuments)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, limits.PeriodMonthly, d.Period)
		assert.Contains(t, d.Message, "monthly limit of 3 documents")
	})

	t.Run("german message", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 3})

		d, err := e.Check(limits.WithLanguage(ctx, language.MustParse("de-DE")), tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.Equal(t, "Sie haben das Limit von 3 Kunden erreicht. Bitte upgraden Sie auf einen Pro- oder Enterprise-Plan, um unbegrenzt Kunden anzulegen.", d.Message)
	})

	t.Run("unknown language falls back to english", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceQRCodes: 4})

		d, err := e.Check(limits.WithLanguage(ctx, language.Japanese), tenant, limits.ResourceQRCodes)
		require.NoError(t, err)
		assert.Contains(t, d.Message, "3 QR codes")
	})

	t.Run("count failure fails open", func(t *testing.T) {
		t.Parallel()
		reg := limits.NewRegistry()
		reg.Register(limits.ResourceCustomers, limits.CounterFunc(func(context.Context, uuid.UUID, limits.Window) (int64, error) {
			return 0, errors.New("statement timeout")
		}))
		e := limits.NewEnforcer(
			limits.NewResolver(subscription.Static(freePlan), limits.WithLogger(logger.Discard())),
			limits.NewMeter(reg, limits.WithLogger(logger.Discard())),
		)

		d, err := e.Check(ctx, tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Degraded)
		assert.Zero(t, d.Current)
	})

	t.Run("plan lookup failure fails open", func(t *testing.T) {
		t.Parallel()
		e := limits.NewEnforcer(
			limits.NewResolver(failingLookup(errors.New("db down")), limits.WithLogger(logger.Discard())),
			limits.NewMeter(nil, limits.WithLogger(logger.Discard())),
		)

		d, err := e.Check(ctx, tenant, limits.ResourceCustomers)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Unlimited())
	})

	t.Run("invalid resource", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, nil)

		_, err := e.Check(ctx, tenant, limits.Resource("invoices"))
		require.ErrorIs(t, err, limits.ErrInvalidResourceType)
	})

	t.Run("observer sees every decision", func(t *testing.T) {
		t.Parallel()
		var seen []limits.Decision
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 3},
			limits.WithObserver(func(_ context.Context, d limits.Decision) { seen = append(seen, d) }),
		)

		_, _ = e.Check(ctx, tenant, limits.ResourceCustomers)
		_, _ = e.Check(ctx, tenant, limits.ResourceAPICalls)
		require.Len(t, seen, 2)
		assert.False(t, seen[0].Allowed)
		assert.True(t, seen[1].Allowed)
	})
}

func TestEnforcer_MonotonicDenial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenant := uuid.New()

	for _, limit := range []int64{0, 1, 3, 10} {
		for current := int64(0); current <= limit+2; current++ {
			t.Run(strconv.FormatInt(limit, 10)+"/"+strconv.FormatInt(current, 10), func(t *testing.T) {
				t.Parallel()
				src := limits.NewMemorySource(map[string]map[limits.Resource]limits.Allowance{
					"free": {limits.ResourceWebhooks: {Limit: limits.Limit(limit), Period: limits.PeriodLifetime}},
				})
				e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceWebhooks: current}, limits.WithSource(src))

				d, err := e.Check(ctx, tenant, limits.ResourceWebhooks)
				require.NoError(t, err)
				assert.Equal(t, current < limit, d.Allowed)
				assert.Equal(t, current >= limit, d.Message != "")
			})
		}
	}
}

func TestEnforcer_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenant := uuid.New()
	e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 3})

	first, err := e.Check(ctx, tenant, limits.ResourceCustomers)
	require.NoError(t, err)
	second, err := e.Check(ctx, tenant, limits.ResourceCustomers)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnforcer_Enforce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("denial returns typed error", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, map[limits.Resource]int64{limits.ResourceCustomers: 5})

		err := e.Enforce(ctx, tenant, limits.ResourceCustomers)
		require.ErrorIs(t, err, limits.ErrLimitExceeded)

		d, ok := limits.AsLimitExceeded(err)
		require.True(t, ok)
		assert.Equal(t, limits.ResourceCustomers, d.Resource)
		assert.Equal(t, err.Error(), d.Message)
	})

	t.Run("allowed returns nil", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(proPlan, map[limits.Resource]int64{limits.ResourceCustomers: 500})
		require.NoError(t, e.Enforce(ctx, tenant, limits.ResourceCustomers))
	})

	t.Run("invalid resource is not a limit error", func(t *testing.T) {
		t.Parallel()
		e := newEnforcer(freePlan, nil)
		err := e.Enforce(ctx, tenant, limits.Resource(""))
		require.ErrorIs(t, err, limits.ErrInvalidResourceType)
		_, ok := limits.AsLimitExceeded(err)
		assert.False(t, ok)
	})
}

func TestEnforcer_Report(t *testing.T) {
	t.Parallel()
	e := newEnforcer(freePlan, map[limits.Resource]int64{
		limits.ResourceCustomers: 1,
		limits.ResourceQRCodes:   3,
		limits.ResourceDocuments: 0,
	})

	report := e.Report(context.Background(), uuid.New())
	require.Len(t, report, len(limits.AllResources))

	byRes := make(map[limits.Resource]limits.Decision, len(report))
	for _, d := range report {
		byRes[d.Resource] = d
	}
	assert.Equal(t, 33, byRes[limits.ResourceCustomers].Percentage())
	assert.False(t, byRes[limits.ResourceQRCodes].Allowed)
	assert.Equal(t, 100, byRes[limits.ResourceQRCodes].Percentage())
	assert.True(t, byRes[limits.ResourceDocuments].Allowed)
	assert.True(t, byRes[limits.ResourceAPICalls].Unlimited())
}

func TestDecision_Percentage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100, limits.Decision{Limit: 0}.Percentage())
	assert.Equal(t, 50, limits.Decision{Current: 5, Limit: 10}.Percentage())
	assert.Equal(t, 100, limits.Decision{Current: 15, Limit: 10}.Percentage())
	assert.Equal(t, int64(0), limits.Decision{Current: 15, Limit: 10}.Remaining())
}
