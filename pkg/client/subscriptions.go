package client

import "context"

// SubscriptionService handles the caller's own subscription
type SubscriptionService struct {
	client *Client
}

// CreateSubscriptionRequest starts a subscription on a plan
type CreateSubscriptionRequest struct {
	PlanID   string `json:"plan_id"`
	PayLater bool   `json:"pay_later,omitempty"`
}

// Create starts a pending subscription, or an active one when pay-later is enabled
func (s *SubscriptionService) Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doRequest(ctx, "POST", "/api/v1/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Current retrieves the caller's latest subscription
func (s *SubscriptionService) Current(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doRequest(ctx, "GET", "/api/v1/subscriptions/current", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
