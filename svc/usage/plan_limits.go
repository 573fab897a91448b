package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/pg"
)

// PlanLimit is one row of plan_limits joined with its plan key.
type PlanLimit struct {
	PlanKey  string          `json:"plan_key"`
	Resource limits.Resource `json:"resource"`
	limits.Allowance
}

// PlanLimitSource reads and maintains plan_limits. It implements limits.Source.
type PlanLimitSource struct {
	db pg.DB
}

func NewPlanLimitSource(db pg.DB) *PlanLimitSource {
	return &PlanLimitSource{db: db}
}

const (
	planLimitQuery = `SELECT pl.limit_value, pl.limit_period
FROM plan_limits pl
JOIN plans p ON p.id = pl.plan_id
WHERE p.plan_key = $1 AND pl.limit_type = $2`

	listPlanLimitsQuery = `SELECT p.plan_key, pl.limit_type, pl.limit_value, pl.limit_period
FROM plan_limits pl
JOIN plans p ON p.id = pl.plan_id
ORDER BY p.plan_key, pl.limit_type`

	upsertPlanLimitQuery = `INSERT INTO plan_limits (plan_id, limit_type, limit_value, limit_period)
SELECT id, $2, $3, $4 FROM plans WHERE plan_key = $1
ON CONFLICT (plan_id, limit_type) DO UPDATE
SET limit_value = EXCLUDED.limit_value, limit_period = EXCLUDED.limit_period, updated_at = now()`
)

// Limit returns ok=false when the plan has no row for res. A NULL
// limit_value is Unlimited.
func (s *PlanLimitSource) Limit(ctx context.Context, planKey string, res limits.Resource) (limits.Allowance, bool, error) {
	var (
		value  *int64
		period string
	)
	err := s.db.QueryRow(ctx, planLimitQuery, planKey, string(res)).Scan(&value, &period)
	if errors.Is(err, pgx.ErrNoRows) {
		return limits.Allowance{}, false, nil
	}
	if err != nil {
		return limits.Allowance{}, false, errors.Join(ErrFailedToLoadLimits, err)
	}

	p, err := limits.ParsePeriod(period)
	if err != nil {
		return limits.Allowance{}, false, errors.Join(ErrFailedToLoadLimits, err)
	}
	return limits.Allowance{Limit: limits.LimitFromNullable(value), Period: p}, true, nil
}

// List returns every configured plan limit.
func (s *PlanLimitSource) List(ctx context.Context) ([]PlanLimit, error) {
	rows, err := s.db.Query(ctx, listPlanLimitsQuery)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadLimits, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlanLimit, error) {
		var (
			pl       PlanLimit
			resource string
			value    *int64
			period   string
		)
		if err := row.Scan(&pl.PlanKey, &resource, &value, &period); err != nil {
			return PlanLimit{}, err
		}
		pl.Resource = limits.Resource(resource)
		pl.Limit = limits.LimitFromNullable(value)
		p, err := limits.ParsePeriod(period)
		if err != nil {
			return PlanLimit{}, err
		}
		pl.Period = p
		return pl, nil
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadLimits, err)
	}
	return out, nil
}

// Upsert sets the limit for (planKey, res). Unlimited is stored as NULL.
func (s *PlanLimitSource) Upsert(ctx context.Context, planKey string, res limits.Resource, a limits.Allowance) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %q", limits.ErrInvalidResourceType, res)
	}
	if a.Period == "" {
		a.Period = limits.PeriodLifetime
	}

	var value *int64
	if !a.Limit.IsUnlimited() {
		v := int64(a.Limit)
		value = &v
	}

	tag, err := s.db.Exec(ctx, upsertPlanLimitQuery, planKey, string(res), value, string(a.Period))
	if err != nil {
		return errors.Join(ErrFailedToLoadLimits, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, planKey)
	}
	return nil
}
