package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

// MockGateway is a payment.Gateway that records charge requests and decodes
// callbacks with a pluggable parser
type MockGateway struct {
	mu        sync.Mutex
	Requests  []payment.ChargeRequest
	NextID    int
	InitError error
	Parser    func(payload []byte) (*payment.Callback, error)
}

func NewMockGateway(parser func(payload []byte) (*payment.Callback, error)) *MockGateway {
	return &MockGateway{NextID: 1, Parser: parser}
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Initiate(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InitError != nil {
		if _, ok := errors.As(m.InitError); ok {
			return nil, m.InitError
		}
		return nil, errors.GatewayUnavailable(m.InitError)
	}
	m.Requests = append(m.Requests, req)
	id := m.NextID
	m.NextID++
	return &payment.ChargeResponse{
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", id),
		MerchantRequestID: fmt.Sprintf("mr_%d", id),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (m *MockGateway) ParseCallback(payload []byte) (*payment.Callback, error) {
	if m.Parser == nil {
		return nil, errors.MalformedCallback(fmt.Errorf("no parser configured"))
	}
	return m.Parser(payload)
}

// RequestCount returns the number of charge requests seen
func (m *MockGateway) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// FlakySubscriptionRepository wraps a real repository and fails selected calls
type FlakySubscriptionRepository struct {
	subscription.Repository

	mu            sync.Mutex
	ActivateError error
	ExpireError   error
	// ExtendConflicts makes the next n Extend calls report a lost race
	ExtendConflicts int
	ExpireCalls     int
}

func (f *FlakySubscriptionRepository) Activate(ctx context.Context, id, paymentID string, startAt, expiresAt, now time.Time) (bool, error) {
	f.mu.Lock()
	err := f.ActivateError
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.Repository.Activate(ctx, id, paymentID, startAt, expiresAt, now)
}

func (f *FlakySubscriptionRepository) Extend(ctx context.Context, prev *subscription.Subscription, startAt *time.Time, expiresAt, now time.Time) (bool, error) {
	f.mu.Lock()
	if f.ExtendConflicts > 0 {
		f.ExtendConflicts--
		f.mu.Unlock()
		return false, nil
	}
	f.mu.Unlock()
	return f.Repository.Extend(ctx, prev, startAt, expiresAt, now)
}

func (f *FlakySubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	f.ExpireCalls++
	err := f.ExpireError
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Repository.ExpireDue(ctx, now)
}

// SetActivateError changes the injected Activate failure
func (f *FlakySubscriptionRepository) SetActivateError(err error) {
	f.mu.Lock()
	f.ActivateError = err
	f.mu.Unlock()
}
