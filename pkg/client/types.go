package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable access package
type Plan struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Duration       string          `json:"duration"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	BandwidthLimit string          `json:"bandwidth_limit"`
	Devices        int             `json:"devices"`
}

// PlanCatalog groups plans by category
type PlanCatalog struct {
	Basic      []Plan `json:"basic"`
	Premium    []Plan `json:"premium"`
	Enterprise []Plan `json:"enterprise"`
}

// All returns every plan in catalog order
func (c *PlanCatalog) All() []Plan {
	out := make([]Plan, 0, len(c.Basic)+len(c.Premium)+len(c.Enterprise))
	out = append(out, c.Basic...)
	out = append(out, c.Premium...)
	return append(out, c.Enterprise...)
}

// Subscription is a user's access window on a plan
type Subscription struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"user_id"`
	PlanID           string     `json:"plan_id"`
	Status           string     `json:"status"` // pending, active, expired, cancelled
	StartAt          *time.Time `json:"start_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	PaymentID        string     `json:"payment_id,omitempty"`
	Entitled         bool       `json:"entitled"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Payment is a charge sent to the customer's phone
type Payment struct {
	ID                string          `json:"id"`
	SubscriptionID    string          `json:"subscription_id"`
	PhoneNumber       string          `json:"phone_number"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"` // initiated, completed, failed
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	ProviderTxID      string          `json:"provider_tx_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ReconciliationEntry is a payment event waiting for an operator or a retry
type ReconciliationEntry struct {
	ID             string     `json:"id"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"` // open, resolved, abandoned
	PaymentID      string     `json:"payment_id,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	ProviderTxID   string     `json:"provider_tx_id,omitempty"`
	Detail         string     `json:"detail,omitempty"`
	Attempts       int        `json:"attempts"`
	NextAttemptAt  *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// RetryReport summarises a reconciliation retry pass
type RetryReport struct {
	Processed   int `json:"processed"`
	Resolved    int `json:"resolved"`
	Rescheduled int `json:"rescheduled"`
	Abandoned   int `json:"abandoned"`
}

// ListOptions contains common pagination options
type ListOptions struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// Page is one page of a paginated listing
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}
