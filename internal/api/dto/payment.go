package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
)

// InitiatePaymentRequest asks for an STK push to the customer's phone
type InitiatePaymentRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required,uuid"`
	PhoneNumber    string `json:"phone_number" validate:"required,msisdn"`
}

// PaymentDTO represents a payment in API responses
type PaymentDTO struct {
	ID                string          `json:"id"`
	SubscriptionID    string          `json:"subscription_id"`
	PhoneNumber       string          `json:"phone_number"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	ProviderTxID      string          `json:"provider_tx_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToPaymentDTO converts a domain payment
func ToPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                p.ID,
		SubscriptionID:    p.SubscriptionID,
		PhoneNumber:       p.PhoneNumber,
		Amount:            p.Amount,
		Status:            string(p.Status),
		CheckoutRequestID: p.CheckoutRequestID,
		ProviderTxID:      p.ProviderTxID,
		CreatedAt:         p.CreatedAt,
	}
}

// CallbackAck is the only body the gateway ever receives from the callback endpoint
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accepted acknowledges a callback
var Accepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
