package dto

import (
	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/domain/plan"
)

// PlanDTO represents a plan in API responses
type PlanDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Duration       string          `json:"duration"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	BandwidthLimit string          `json:"bandwidth_limit"`
	Devices        int             `json:"devices"`
}

// PlanCatalogDTO is the grouped plan list shown by the portal
type PlanCatalogDTO struct {
	Basic      []PlanDTO `json:"basic"`
	Premium    []PlanDTO `json:"premium"`
	Enterprise []PlanDTO `json:"enterprise"`
}

// ToPlanDTO converts a domain plan
func ToPlanDTO(p *plan.Plan) PlanDTO {
	return PlanDTO{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Duration:       p.Label(),
		Price:          p.Price,
		Currency:       p.Currency,
		BandwidthLimit: p.BandwidthLimit,
		Devices:        p.Devices,
	}
}

// ToPlanCatalogDTO groups plans by category
func ToPlanCatalogDTO(plans []*plan.Plan) PlanCatalogDTO {
	grouped := plan.Group(plans)
	conv := func(ps []*plan.Plan) []PlanDTO {
		out := make([]PlanDTO, len(ps))
		for i, p := range ps {
			out[i] = ToPlanDTO(p)
		}
		return out
	}
	return PlanCatalogDTO{
		Basic:      conv(grouped[plan.CategoryBasic]),
		Premium:    conv(grouped[plan.CategoryPremium]),
		Enterprise: conv(grouped[plan.CategoryEnterprise]),
	}
}
