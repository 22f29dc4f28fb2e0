package client

import "context"

// PaymentService handles charge initiation
type PaymentService struct {
	client *Client
}

// InitiatePaymentRequest asks for an STK push prompt
type InitiatePaymentRequest struct {
	SubscriptionID string `json:"subscription_id"`
	PhoneNumber    string `json:"phone_number"`
}

// Initiate sends the payment prompt for a pending subscription. The returned message
// is the instruction to show the customer.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*Payment, string, error) {
	var p Payment
	msg, err := s.client.do(ctx, "POST", "/api/v1/payments", req, &p)
	if err != nil {
		return nil, "", err
	}
	return &p, msg, nil
}
