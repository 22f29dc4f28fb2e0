package subscription

import (
	"context"
	"time"
)

// Repository defines the interface for subscription data access.
// Every state-changing method is a conditional update and reports whether a row changed.
type Repository interface {
	// Create inserts a subscription. A second open subscription for the same user
	// fails with DuplicateActiveSubscription.
	Create(ctx context.Context, sub *Subscription) error

	// GetByID retrieves a subscription by ID
	GetByID(ctx context.Context, id string) (*Subscription, error)

	// GetOpenByUser returns the user's pending or active subscription, or nil when there is none
	GetOpenByUser(ctx context.Context, userID int64) (*Subscription, error)

	// GetLatestByUser returns the most recently created subscription of a user
	GetLatestByUser(ctx context.Context, userID int64) (*Subscription, error)

	// Activate moves a pending subscription to active with the given window
	Activate(ctx context.Context, id, paymentID string, startAt, expiresAt, now time.Time) (bool, error)

	// Extend sets a new window on prev, provided its status and deadline are still the ones that were read.
	// A nil startAt keeps the stored start.
	Extend(ctx context.Context, prev *Subscription, startAt *time.Time, expiresAt, now time.Time) (bool, error)

	// Cancel moves a pending or active subscription to cancelled
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)

	// ExpireDue expires every active subscription whose deadline is before now, in one statement
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// ExpireOne expires a single active subscription if its deadline is before now
	ExpireOne(ctx context.Context, id string, now time.Time) (bool, error)

	// List retrieves subscriptions with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Subscription, int64, error)
}
