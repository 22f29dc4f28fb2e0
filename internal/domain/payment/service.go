package payment

import "context"

// Gateway is the external mobile-money provider
type Gateway interface {
	// Name identifies the gateway in logs and metrics
	Name() string

	// Initiate sends a charge request to the customer's phone.
	// Any failure is reported as GatewayUnavailable.
	Initiate(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)

	// ParseCallback decodes a provider notification. Undecodable payloads
	// fail with MalformedCallback.
	ParseCallback(payload []byte) (*Callback, error)
}

// Service handles charge initiation
type Service interface {
	// Initiate charges the plan price of a pending subscription owned by userID
	Initiate(ctx context.Context, userID int64, subscriptionID, phone string) (*Payment, error)

	// List retrieves payments with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Payment, int64, error)
}

// Reconciler turns gateway callbacks into subscription activations
type Reconciler interface {
	// HandleCallback applies a callback payload. It never fails: every problem is
	// reported in the result and, when it needs attention, queued for reconciliation.
	HandleCallback(ctx context.Context, payload []byte) ReconciliationResult

	// RetryPending re-runs activations that failed after a confirmed payment
	RetryPending(ctx context.Context) (*RetryReport, error)

	// ListEntries lists the reconciliation queue
	ListEntries(ctx context.Context, status EntryStatus, limit, offset int) ([]*Entry, int64, error)
}
