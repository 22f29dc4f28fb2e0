package subscription

import "time"

// Status is the lifecycle state of a subscription
type Status string

// Statuses
const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Subscription grants a user access for the window of the plan it was bought on
type Subscription struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	PlanID    string     `json:"plan_id"`
	Status    Status     `json:"status"`
	StartAt   *time.Time `json:"start_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	PaymentID string     `json:"payment_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PastDeadline reports whether the access window closed before now.
// A subscription that was never activated has no deadline.
func (s *Subscription) PastDeadline(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// IsEntitled is the authorization check for network access. The status field alone
// is never enough: an active row whose window has closed is not entitled even if the
// sweeper has not reached it yet.
func IsEntitled(s *Subscription, now time.Time) bool {
	if s == nil || s.Status != StatusActive || s.ExpiresAt == nil {
		return false
	}
	return s.ExpiresAt.After(now)
}

// CreateOptions tune subscription creation
type CreateOptions struct {
	// PayLater activates the subscription immediately without a payment.
	PayLater bool
}

// Filter contains subscription listing options
type Filter struct {
	UserID int64
	PlanID string
	Status Status
}
