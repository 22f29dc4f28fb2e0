package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable access package
type Plan struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Category       string          `json:"category" db:"category"`
	DurationValue  int             `json:"duration_value" db:"duration_value"`
	DurationUnit   string          `json:"duration_unit" db:"duration_unit"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Currency       string          `json:"currency" db:"currency"`
	BandwidthLimit string          `json:"bandwidth_limit" db:"bandwidth_limit"`
	Devices        int             `json:"devices" db:"devices"`
	CreatedAt      int64           `json:"-" db:"created_at"`
}

// Categories
const (
	CategoryBasic      = "BASIC"
	CategoryPremium    = "PREMIUM"
	CategoryEnterprise = "ENTERPRISE"
)

// Duration units
const (
	UnitHour = "hour"
	UnitDay  = "day"
)

// Duration returns the access window a single purchase grants.
func (p *Plan) Duration() time.Duration {
	switch p.DurationUnit {
	case UnitHour:
		return time.Duration(p.DurationValue) * time.Hour
	default:
		return time.Duration(p.DurationValue) * 24 * time.Hour
	}
}

// Label renders the duration the way the plan list shows it.
func (p *Plan) Label() string {
	return formatDuration(p.DurationValue, p.DurationUnit)
}
