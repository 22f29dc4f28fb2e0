package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/domain/plan"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/metrics"
)

// SubscriptionService implements subscription.Service
type SubscriptionService struct {
	repo          subscription.Repository
	plans         plan.Catalog
	clock         clock.Clock
	logger        *logger.Logger
	allowPayLater bool
	renewRetries  int
}

// NewSubscriptionService creates a new subscription lifecycle service
func NewSubscriptionService(
	repo subscription.Repository,
	plans plan.Catalog,
	clk clock.Clock,
	log *logger.Logger,
	cfg config.SubscriptionConfig,
) subscription.Service {
	retries := cfg.RenewRetries
	if retries < 1 {
		retries = 3
	}
	return &SubscriptionService{
		repo:          repo,
		plans:         plans,
		clock:         clk,
		logger:        log.Component("subscriptions"),
		allowPayLater: cfg.AllowPayLater,
		renewRetries:  retries,
	}
}

// Create starts a pending subscription, or an active one when paying later is allowed
func (s *SubscriptionService) Create(ctx context.Context, userID int64, planID string, opts subscription.CreateOptions) (*subscription.Subscription, error) {
	if opts.PayLater && !s.allowPayLater {
		return nil, errors.ValidationError("Pay-later subscriptions are disabled", nil)
	}

	p, err := s.plans.Lookup(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	open, err := s.repo.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		// A lapsed window the sweeper has not reached yet does not block a new purchase
		if open.Status != subscription.StatusActive || !open.PastDeadline(now) {
			return nil, errors.DuplicateActiveSubscription()
		}
		if _, err := s.repo.ExpireOne(ctx, open.ID, now); err != nil {
			return nil, err
		}
	}

	sub := &subscription.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		PlanID:    p.ID,
		Status:    subscription.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.PayLater {
		expires := now.Add(p.Duration())
		sub.Status = subscription.StatusActive
		sub.StartAt = &now
		sub.ExpiresAt = &expires
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		if !errors.HasCode(err, errors.ErrCodeDuplicateActive) {
			s.logger.ErrorWithErr(err, "Failed to create subscription")
		}
		return nil, err
	}

	metrics.RecordTransition(string(sub.Status))
	s.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"user_id":         userID,
		"plan_id":         p.ID,
		"status":          sub.Status,
	}).Info("Subscription created")

	return sub, nil
}

// Activate moves a pending subscription to active after a confirmed payment
func (s *SubscriptionService) Activate(ctx context.Context, subscriptionID, paymentID string) (*subscription.Subscription, error) {
	if paymentID == "" {
		return nil, errors.ValidationError("Payment ID is required to activate a subscription", nil)
	}

	sub, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscription.StatusPending {
		return resolveActivation(sub, paymentID)
	}

	p, err := s.plans.Lookup(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	changed, err := s.repo.Activate(ctx, subscriptionID, paymentID, now, now.Add(p.Duration()), now)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with another activation or a cancel
		return resolveActivation(current, paymentID)
	}

	metrics.RecordTransition(string(subscription.StatusActive))
	s.logger.WithFields(map[string]interface{}{
		"subscription_id": subscriptionID,
		"payment_id":      paymentID,
		"expires_at":      current.ExpiresAt,
	}).Info("Subscription activated")

	return current, nil
}

// resolveActivation decides the result of activating a subscription that is no longer pending.
func resolveActivation(current *subscription.Subscription, paymentID string) (*subscription.Subscription, error) {
	if current.Status == subscription.StatusActive {
		if current.PaymentID == paymentID {
			return current, nil
		}
		return nil, errors.AlreadyActive(current.ID)
	}
	return nil, errors.InvalidTransition(string(current.Status), string(subscription.StatusActive))
}

// Renew extends the access window by extra. A closed or never opened window restarts at now.
func (s *SubscriptionService) Renew(ctx context.Context, subscriptionID string, extra time.Duration) (*subscription.Subscription, error) {
	if extra <= 0 {
		return nil, errors.ValidationError("Renewal duration must be positive", nil)
	}

	for attempt := 0; attempt < s.renewRetries; attempt++ {
		sub, err := s.repo.GetByID(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		if !subscription.CanTransition(sub.Status, subscription.StatusActive) {
			return nil, errors.InvalidTransition(string(sub.Status), string(subscription.StatusActive))
		}

		now := s.clock.Now()
		var startAt *time.Time
		var expiresAt time.Time
		if sub.Status == subscription.StatusActive && sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
			expiresAt = sub.ExpiresAt.Add(extra)
		} else {
			startAt = &now
			expiresAt = now.Add(extra)
		}

		changed, err := s.repo.Extend(ctx, sub, startAt, expiresAt, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			s.logger.WithFields(map[string]interface{}{
				"subscription_id": subscriptionID,
				"attempt":         attempt + 1,
			}).Debug("Renewal lost a race, retrying")
			continue
		}

		metrics.RecordTransition(string(subscription.StatusActive))
		s.logger.WithFields(map[string]interface{}{
			"subscription_id": subscriptionID,
			"previous_status": sub.Status,
			"expires_at":      expiresAt,
			"fresh_window":    startAt != nil,
		}).Info("Subscription renewed")

		return s.repo.GetByID(ctx, subscriptionID)
	}

	return nil, errors.Conflict("Subscription changed while renewing, try again")
}

// ExpireDue expires every active subscription whose deadline is before now
func (s *SubscriptionService) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, now)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to expire subscriptions")
		return 0, err
	}
	if n > 0 {
		s.logger.WithFields(map[string]interface{}{
			"count": n,
			"now":   now,
		}).Info("Expired subscriptions")
	}
	return n, nil
}

// Cancel ends a pending or active subscription
func (s *SubscriptionService) Cancel(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == subscription.StatusCancelled {
		return sub, nil
	}
	if !subscription.CanTransition(sub.Status, subscription.StatusCancelled) {
		return nil, errors.InvalidTransition(string(sub.Status), string(subscription.StatusCancelled))
	}

	changed, err := s.repo.Cancel(ctx, subscriptionID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !changed && current.Status != subscription.StatusCancelled {
		return nil, errors.InvalidTransition(string(current.Status), string(subscription.StatusCancelled))
	}

	if changed {
		metrics.RecordTransition(string(subscription.StatusCancelled))
		s.logger.WithFields(map[string]interface{}{
			"subscription_id": subscriptionID,
			"previous_status": sub.Status,
		}).Info("Subscription cancelled")
	}

	return current, nil
}

// Current returns the user's open subscription, or their latest one if none is open.
// An active subscription found past its deadline is expired before it is returned.
func (s *SubscriptionService) Current(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, err := s.repo.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return s.repo.GetLatestByUser(ctx, userID)
	}

	now := s.clock.Now()
	if sub.Status == subscription.StatusActive && sub.PastDeadline(now) {
		expired, err := s.repo.ExpireOne(ctx, sub.ID, now)
		if err != nil {
			return nil, err
		}
		if expired {
			metrics.RecordTransition(string(subscription.StatusExpired))
			s.logger.WithFields(map[string]interface{}{
				"subscription_id": sub.ID,
				"user_id":         userID,
			}).Info("Subscription expired on lookup")
		}
		return s.repo.GetByID(ctx, sub.ID)
	}

	return sub, nil
}

// Get retrieves a subscription by ID
func (s *SubscriptionService) Get(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	return s.repo.GetByID(ctx, subscriptionID)
}

// List retrieves subscriptions with filters and pagination
func (s *SubscriptionService) List(ctx context.Context, filter subscription.Filter, limit, offset int) ([]*subscription.Subscription, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, errors.ValidationError("Unknown subscription status", map[string]string{"status": string(filter.Status)})
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filter, limit, offset)
}
