package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/wiman/internal/domain/plan"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

const planColumns = `id, name, category, duration_value, duration_unit, price, currency, bandwidth_limit, devices, created_at`

// PlanRepository implements plan.Catalog on the seeded plans table
type PlanRepository struct {
	store
}

// NewPlanRepository creates a new plan catalog
func NewPlanRepository(db *sqlx.DB, timeout time.Duration) plan.Catalog {
	return &PlanRepository{store: newStore(db, timeout)}
}

// Lookup retrieves a plan by ID
func (r *PlanRepository) Lookup(ctx context.Context, planID string) (*plan.Plan, error) {
	var p plan.Plan
	err := r.call(ctx, "select", "plans", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+planColumns+` FROM plans WHERE id = ?`), planID)
	})
	if isNoRows(err) {
		return nil, errors.UnknownPlan(planID)
	}
	if err != nil {
		return nil, classify(err, "Failed to get plan")
	}
	return &p, nil
}

// List returns every plan
func (r *PlanRepository) List(ctx context.Context) ([]*plan.Plan, error) {
	var plans []*plan.Plan
	err := r.call(ctx, "select", "plans", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &plans, `SELECT `+planColumns+` FROM plans ORDER BY category, price, id`)
	})
	if err != nil {
		return nil, classify(err, "Failed to list plans")
	}
	return plans, nil
}
