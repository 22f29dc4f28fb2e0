package plan

import (
	"context"
	"fmt"
)

// Catalog is the read-only plan lookup used by the subscription lifecycle
type Catalog interface {
	// Lookup returns the plan with the given id or an UnknownPlan error
	Lookup(ctx context.Context, planID string) (*Plan, error)

	// List returns every plan ordered by category and price
	List(ctx context.Context) ([]*Plan, error)
}

// Group arranges plans by category, keeping catalog order inside each group.
func Group(plans []*Plan) map[string][]*Plan {
	grouped := map[string][]*Plan{
		CategoryBasic:      {},
		CategoryPremium:    {},
		CategoryEnterprise: {},
	}
	for _, p := range plans {
		grouped[p.Category] = append(grouped[p.Category], p)
	}
	return grouped
}

func formatDuration(value int, unit string) string {
	switch {
	case unit == UnitHour && value == 1:
		return "1 hour"
	case unit == UnitHour:
		return fmt.Sprintf("%d hours", value)
	case value == 1:
		return "1 day"
	case value == 7:
		return "1 week"
	case value%7 == 0 && value < 28:
		return fmt.Sprintf("%d weeks", value/7)
	case value == 30:
		return "1 month"
	default:
		return fmt.Sprintf("%d days", value)
	}
}
