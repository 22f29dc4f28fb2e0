package dto

import (
	"time"

	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
)

// SubscriptionDTO represents a subscription in API responses
type SubscriptionDTO struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	PlanID    string     `json:"plan_id"`
	Status    string     `json:"status"`
	StartAt   *time.Time `json:"start_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	PaymentID string     `json:"payment_id,omitempty"`
	Entitled  bool       `json:"entitled"`
	// Seconds of access left, zero once the window closed
	RemainingSeconds int64     `json:"remaining_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateSubscriptionRequest represents a plan purchase
type CreateSubscriptionRequest struct {
	PlanID   string `json:"plan_id" validate:"required,max=64"`
	PayLater bool   `json:"pay_later,omitempty"`
}

// RenewSubscriptionRequest extends an access window. Exactly one unit is usually set.
type RenewSubscriptionRequest struct {
	Days  int `json:"days,omitempty" validate:"gte=0,max=366"`
	Hours int `json:"hours,omitempty" validate:"gte=0,max=8784"`
}

// Extra returns the requested extension
func (r RenewSubscriptionRequest) Extra() time.Duration {
	return time.Duration(r.Days)*24*time.Hour + time.Duration(r.Hours)*time.Hour
}

// ExpireResponse reports a manual sweep
type ExpireResponse struct {
	Expired int64 `json:"expired"`
}

// ToSubscriptionDTO converts a domain subscription, evaluating entitlement at now
func ToSubscriptionDTO(s *subscription.Subscription, now time.Time) SubscriptionDTO {
	out := SubscriptionDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		PlanID:    s.PlanID,
		Status:    string(s.Status),
		StartAt:   s.StartAt,
		ExpiresAt: s.ExpiresAt,
		PaymentID: s.PaymentID,
		Entitled:  subscription.IsEntitled(s, now),
		CreatedAt: s.CreatedAt,
	}
	if out.Entitled {
		out.RemainingSeconds = int64(s.ExpiresAt.Sub(now).Seconds())
	}
	return out
}

// ToSubscriptionDTOs converts a list
func ToSubscriptionDTOs(subs []*subscription.Subscription, now time.Time) []SubscriptionDTO {
	out := make([]SubscriptionDTO, len(subs))
	for i, s := range subs {
		out[i] = ToSubscriptionDTO(s, now)
	}
	return out
}
