package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for payment data access
type Repository interface {
	// Create stores a new payment
	Create(ctx context.Context, p *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetByCheckoutRequestID retrieves a payment by the gateway correlation key
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Payment, error)

	// GetByProviderTxID retrieves a payment by the gateway receipt number
	GetByProviderTxID(ctx context.Context, providerTxID string) (*Payment, error)

	// FindLatestInitiatedByPhone returns the newest initiated payment for a phone number
	FindLatestInitiatedByPhone(ctx context.Context, phone string) (*Payment, error)

	// MarkCompleted records the receipt on an initiated payment.
	// A receipt already stored on another payment fails with a Conflict error.
	MarkCompleted(ctx context.Context, id, providerTxID string, paid decimal.Decimal, now time.Time) (bool, error)

	// List retrieves payments with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Payment, int64, error)
}

// ReconciliationRepository stores the reconciliation queue
type ReconciliationRepository interface {
	// Create queues an entry
	Create(ctx context.Context, e *Entry) error

	// Due returns open entries with the given reason whose next attempt is at or before now
	Due(ctx context.Context, reason Reason, now time.Time, limit int) ([]*Entry, error)

	// Close marks an open entry resolved or abandoned
	Close(ctx context.Context, id string, status EntryStatus, detail string, now time.Time) error

	// Reschedule records a failed attempt and the time of the next one
	Reschedule(ctx context.Context, id string, attempts int, next time.Time, detail string, now time.Time) error

	// List retrieves entries, optionally by status
	List(ctx context.Context, status EntryStatus, limit, offset int) ([]*Entry, int64, error)
}
