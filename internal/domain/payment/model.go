package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the state of a charge
type Status string

// Statuses
const (
	StatusInitiated Status = "initiated"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment is a single charge sent to the gateway for a subscription
type Payment struct {
	ID                string              `json:"id"`
	SubscriptionID    string              `json:"subscription_id"`
	UserID            int64               `json:"user_id"`
	PhoneNumber       string              `json:"phone_number"`
	Amount            decimal.Decimal     `json:"amount"`
	PaidAmount        decimal.NullDecimal `json:"paid_amount"`
	CheckoutRequestID string              `json:"checkout_request_id,omitempty"`
	MerchantRequestID string              `json:"merchant_request_id,omitempty"`
	ProviderTxID      string              `json:"provider_tx_id,omitempty"`
	Status            Status              `json:"status"`
	ResultDesc        string              `json:"result_desc,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

// ChargeRequest asks the gateway to collect amount from phone
type ChargeRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// ChargeResponse is the gateway's acknowledgement of a charge request
type ChargeResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message"`
}

// Callback is a gateway notification in provider-neutral form
type Callback struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            decimal.Decimal
	PhoneNumber       string
	TransactionDate   string
}

// Succeeded reports whether the customer completed the charge.
func (c *Callback) Succeeded() bool {
	return c.ResultCode == 0
}

// Outcome of reconciling a callback
type Outcome string

// Outcomes
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeMalformed Outcome = "malformed"
	OutcomeUnmatched Outcome = "unmatched"
	// Payment recorded but activation is left to the reconciliation queue.
	OutcomeDeferred Outcome = "deferred"
)

// ReconciliationResult describes what a callback did
type ReconciliationResult struct {
	Outcome        Outcome `json:"outcome"`
	Duplicate      bool    `json:"duplicate"`
	SubscriptionID string  `json:"subscription_id,omitempty"`
	PaymentID      string  `json:"payment_id,omitempty"`
	ProviderTxID   string  `json:"provider_tx_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

// Filter contains payment listing options
type Filter struct {
	UserID         int64
	SubscriptionID string
	Status         Status
}
