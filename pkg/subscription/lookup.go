package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/pg"
)

// Lookup resolves the active plan for a user.
type Lookup interface {
	Lookup(ctx context.Context, userID uuid.UUID) (Plan, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, userID uuid.UUID) (Plan, error)

func (f LookupFunc) Lookup(ctx context.Context, userID uuid.UUID) (Plan, error) {
	return f(ctx, userID)
}

// Static always returns p. Useful for CLIs and tests.
func Static(p Plan) Lookup {
	return LookupFunc(func(context.Context, uuid.UUID) (Plan, error) { return p, nil })
}

// PGLookup reads billing columns from users and matches the product id
// against the plans catalog.
type PGLookup struct {
	db     pg.DB
	logger *slog.Logger
}

func NewPGLookup(db pg.DB, log *slog.Logger) *PGLookup {
	if log == nil {
		log = slog.Default()
	}
	return &PGLookup{db: db, logger: log}
}

const userPlanQuery = `SELECT u.polar_customer_id, u.polar_subscription_id, u.polar_product_id,
	u.polar_current_period_end, p.plan_key, p.title, p.polar_product_id_monthly = u.polar_product_id
FROM users u
LEFT JOIN plans p ON u.polar_product_id IS NOT NULL
	AND (p.polar_product_id_monthly = u.polar_product_id OR p.polar_product_id_yearly = u.polar_product_id)
WHERE u.id = $1
LIMIT 1`

func (l *PGLookup) Lookup(ctx context.Context, userID uuid.UUID) (Plan, error) {
	if userID == uuid.Nil {
		return Plan{}, ErrMissingUserID
	}

	var (
		customerID, subscriptionID, productID *string
		periodEnd                             *time.Time
		planKey, title                        *string
		monthly                               *bool
	)
	err := l.db.QueryRow(ctx, userPlanQuery, userID).Scan(
		&customerID, &subscriptionID, &productID, &periodEnd, &planKey, &title, &monthly,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		l.logger.LogAttrs(ctx, slog.LevelWarn, "user not found, using free plan", logger.UserID(userID))
		return FreePlan, nil
	}
	if err != nil {
		return Plan{}, errors.Join(ErrFailedToLoadPlan, err)
	}

	if productID == nil || *productID == "" {
		return FreePlan, nil
	}

	plan := FreePlan
	plan.IsPaid = true
	plan.CustomerID = deref(customerID)
	plan.SubscriptionID = deref(subscriptionID)
	plan.ProductID = *productID
	if periodEnd != nil {
		plan.CurrentPeriodEnd = *periodEnd
	}

	if planKey == nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "billing product matches no plan, using free plan",
			logger.UserID(userID),
			slog.String("product_id", *productID),
		)
		return plan, nil
	}

	plan.Key = *planKey
	plan.Title = deref(title)
	plan.Tier = ResolveTier(plan.Key, plan.Title)
	plan.Interval = IntervalYear
	if monthly != nil && *monthly {
		plan.Interval = IntervalMonth
	}
	return plan, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
