package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/domain/plan"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

// PaymentService implements payment.Service
type PaymentService struct {
	payments payment.Repository
	subs     subscription.Repository
	plans    plan.Catalog
	gateway  payment.Gateway
	clock    clock.Clock
	logger   *logger.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	payments payment.Repository,
	subs subscription.Repository,
	plans plan.Catalog,
	gateway payment.Gateway,
	clk clock.Clock,
	log *logger.Logger,
) payment.Service {
	return &PaymentService{
		payments: payments,
		subs:     subs,
		plans:    plans,
		gateway:  gateway,
		clock:    clk,
		logger:   log.Component("payments"),
	}
}

// Initiate sends a charge for the plan price of a pending subscription
func (s *PaymentService) Initiate(ctx context.Context, userID int64, subscriptionID, phone string) (*payment.Payment, error) {
	if !validator.IsMSISDN(phone) {
		return nil, errors.ValidationError("Invalid phone number", map[string]string{"phone_number": phone})
	}
	phone = validator.NormalizeMSISDN(phone)

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		// Do not reveal other users' subscriptions
		return nil, errors.NotFound("Subscription")
	}
	if sub.Status != subscription.StatusPending {
		return nil, errors.InvalidTransition(string(sub.Status), string(subscription.StatusActive))
	}

	p, err := s.plans.Lookup(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Initiate(ctx, payment.ChargeRequest{
		PhoneNumber: phone,
		Amount:      p.Price,
		Reference:   sub.ID,
		Description: p.Name,
	})
	if err != nil {
		if _, ok := errors.As(err); !ok {
			err = errors.GatewayUnavailable(err)
		}
		return nil, err
	}

	now := s.clock.Now()
	pay := &payment.Payment{
		ID:                uuid.New().String(),
		SubscriptionID:    sub.ID,
		UserID:            userID,
		PhoneNumber:       phone,
		Amount:            p.Price,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Status:            payment.StatusInitiated,
		ResultDesc:        resp.CustomerMessage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"subscription_id":     sub.ID,
			"checkout_request_id": resp.CheckoutRequestID,
		}).ErrorWithErr(err, "Charge sent but payment could not be stored")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"payment_id":          pay.ID,
		"subscription_id":     sub.ID,
		"user_id":             userID,
		"amount":              p.Price.String(),
		"checkout_request_id": resp.CheckoutRequestID,
		"gateway":             s.gateway.Name(),
	}).Info("Payment initiated")

	return pay, nil
}

// List retrieves payments with filters and pagination
func (s *PaymentService) List(ctx context.Context, filter payment.Filter, limit, offset int) ([]*payment.Payment, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.payments.List(ctx, filter, limit, offset)
}
