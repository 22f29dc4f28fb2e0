package payment

import "time"

// Reason an entry was put on the reconciliation queue
type Reason string

// Reasons
const (
	ReasonMalformed        Reason = "malformed_callback"
	ReasonUnmatched        Reason = "unmatched_payment"
	ReasonActivationFailed Reason = "activation_failed"
	ReasonAmountMismatch   Reason = "amount_mismatch"
)

// EntryStatus of a reconciliation entry
type EntryStatus string

// Entry statuses
const (
	EntryOpen      EntryStatus = "open"
	EntryResolved  EntryStatus = "resolved"
	EntryAbandoned EntryStatus = "abandoned"
)

// Entry records a payment event that could not be applied automatically.
// Only activation failures are retried; everything else waits for an operator.
type Entry struct {
	ID             string      `json:"id"`
	Reason         Reason      `json:"reason"`
	Status         EntryStatus `json:"status"`
	PaymentID      string      `json:"payment_id,omitempty"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	ProviderTxID   string      `json:"provider_tx_id,omitempty"`
	Detail         string      `json:"detail,omitempty"`
	Payload        string      `json:"payload,omitempty"`
	Attempts       int         `json:"attempts"`
	NextAttemptAt  *time.Time  `json:"next_attempt_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// Retryable reports whether the retry job handles this entry.
func (e *Entry) Retryable() bool {
	return e.Reason == ReasonActivationFailed && e.Status == EntryOpen
}

// RetryReport summarises one pass of the retry job
type RetryReport struct {
	Processed   int `json:"processed"`
	Resolved    int `json:"resolved"`
	Rescheduled int `json:"rescheduled"`
	Abandoned   int `json:"abandoned"`
}
