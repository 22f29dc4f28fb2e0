package subscription

import (
	"context"
	"time"
)

// Service defines the subscription lifecycle
type Service interface {
	// Create starts a pending subscription on a plan
	Create(ctx context.Context, userID int64, planID string, opts CreateOptions) (*Subscription, error)

	// Activate opens the access window after a confirmed payment. Repeating it with the
	// same payment returns the stored subscription.
	Activate(ctx context.Context, subscriptionID, paymentID string) (*Subscription, error)

	// Renew extends the window by extra, or starts a fresh one if it already closed
	Renew(ctx context.Context, subscriptionID string, extra time.Duration) (*Subscription, error)

	// ExpireDue expires all subscriptions whose window closed before now
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// Cancel ends a pending or active subscription
	Cancel(ctx context.Context, subscriptionID string) (*Subscription, error)

	// Current returns the user's latest subscription, expiring it first if its window closed
	Current(ctx context.Context, userID int64) (*Subscription, error)

	// Get retrieves a subscription by ID
	Get(ctx context.Context, subscriptionID string) (*Subscription, error)

	// List retrieves subscriptions with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Subscription, int64, error)
}
