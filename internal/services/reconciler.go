package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/metrics"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

const (
	maxStoredPayload    = 16 << 10
	binaryPayloadPrefix = "base64:"
)

// Reconciler implements payment.Reconciler
type Reconciler struct {
	payments  payment.Repository
	entries   payment.ReconciliationRepository
	lifecycle subscription.Service
	gateway   payment.Gateway
	clock     clock.Clock
	logger    *logger.Logger
	cfg       config.ReconcileConfig
}

// NewReconciler creates a new payment reconciler
func NewReconciler(
	payments payment.Repository,
	entries payment.ReconciliationRepository,
	lifecycle subscription.Service,
	gateway payment.Gateway,
	clk clock.Clock,
	log *logger.Logger,
	cfg config.ReconcileConfig,
) payment.Reconciler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Minute
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{
		payments:  payments,
		entries:   entries,
		lifecycle: lifecycle,
		gateway:   gateway,
		clock:     clk,
		logger:    log.Component("reconciler"),
		cfg:       cfg,
	}
}

// HandleCallback applies a gateway callback. Problems end up in the result and,
// when someone has to look at them, in the reconciliation queue.
func (r *Reconciler) HandleCallback(ctx context.Context, raw []byte) payment.ReconciliationResult {
	cb, err := r.gateway.ParseCallback(raw)
	if err != nil {
		r.alert(map[string]interface{}{"reason": payment.ReasonMalformed}).ErrorWithErr(err, "Malformed payment callback")
		r.enqueue(ctx, &payment.Entry{
			Reason:  payment.ReasonMalformed,
			Detail:  err.Error(),
			Payload: truncate(raw),
		})
		return r.finish(payment.ReconciliationResult{Outcome: payment.OutcomeMalformed, Reason: err.Error()})
	}

	log := r.logger.WithFields(map[string]interface{}{
		"checkout_request_id": cb.CheckoutRequestID,
		"result_code":         cb.ResultCode,
		"receipt":             cb.ReceiptNumber,
	})

	if !cb.Succeeded() {
		log.Warn(fmt.Sprintf("Payment not completed: %s", cb.ResultDesc))
		return r.finish(payment.ReconciliationResult{Outcome: payment.OutcomeFailed, Reason: cb.ResultDesc})
	}

	existing, err := r.payments.GetByProviderTxID(ctx, cb.ReceiptNumber)
	switch {
	case err == nil:
		log.Info("Replayed payment callback ignored")
		return r.finish(r.replay(ctx, existing))
	case !errors.HasCode(err, errors.ErrCodeNotFound):
		return r.finish(r.storageFailure(log, err, cb, raw))
	}

	pay, err := r.locate(ctx, cb)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return r.finish(r.unmatched(ctx, cb, raw, "no initiated payment for checkout request or phone number"))
		}
		return r.finish(r.storageFailure(log, err, cb, raw))
	}
	if pay.Status != payment.StatusInitiated {
		return r.finish(r.unmatched(ctx, cb, raw, fmt.Sprintf("payment %s is already %s", pay.ID, pay.Status)))
	}

	now := r.clock.Now()
	changed, err := r.payments.MarkCompleted(ctx, pay.ID, cb.ReceiptNumber, cb.Amount, now)
	if err != nil && !errors.HasCode(err, errors.ErrCodeConflict) {
		return r.finish(r.storageFailure(log, err, cb, raw))
	}
	if err != nil || !changed {
		// Another delivery of the same callback got there first
		stored, getErr := r.payments.GetByProviderTxID(ctx, cb.ReceiptNumber)
		if getErr == nil {
			log.Info("Concurrent payment callback ignored")
			return r.finish(r.replay(ctx, stored))
		}
		return r.finish(r.unmatched(ctx, cb, raw, fmt.Sprintf("payment %s changed while completing", pay.ID)))
	}

	result := payment.ReconciliationResult{
		PaymentID:      pay.ID,
		SubscriptionID: pay.SubscriptionID,
		ProviderTxID:   cb.ReceiptNumber,
	}

	if cb.Amount.LessThan(pay.Amount) {
		detail := fmt.Sprintf("paid %s, expected %s", cb.Amount.String(), pay.Amount.String())
		r.alert(map[string]interface{}{
			"reason":     payment.ReasonAmountMismatch,
			"payment_id": pay.ID,
		}).Error("Underpaid payment: " + detail)
		r.enqueue(ctx, &payment.Entry{
			Reason:         payment.ReasonAmountMismatch,
			PaymentID:      pay.ID,
			SubscriptionID: pay.SubscriptionID,
			ProviderTxID:   cb.ReceiptNumber,
			Detail:         detail,
		})
		result.Outcome = payment.OutcomeDeferred
		result.Reason = detail
		return r.finish(result)
	}

	if _, err := r.lifecycle.Activate(ctx, pay.SubscriptionID, pay.ID); err != nil {
		r.alert(map[string]interface{}{
			"reason":          payment.ReasonActivationFailed,
			"payment_id":      pay.ID,
			"subscription_id": pay.SubscriptionID,
		}).ErrorWithErr(err, "Payment completed but activation failed")
		next := now
		r.enqueue(ctx, &payment.Entry{
			Reason:         payment.ReasonActivationFailed,
			PaymentID:      pay.ID,
			SubscriptionID: pay.SubscriptionID,
			ProviderTxID:   cb.ReceiptNumber,
			Detail:         err.Error(),
			NextAttemptAt:  &next,
		})
		result.Outcome = payment.OutcomeDeferred
		result.Reason = err.Error()
		return r.finish(result)
	}

	log.WithFields(map[string]interface{}{
		"payment_id":      pay.ID,
		"subscription_id": pay.SubscriptionID,
		"amount":          cb.Amount.String(),
	}).Info("Payment reconciled")

	result.Outcome = payment.OutcomeCompleted
	return r.finish(result)
}

// locate finds the payment a callback belongs to: by correlation key first,
// then the newest initiated payment for the paying phone number.
func (r *Reconciler) locate(ctx context.Context, cb *payment.Callback) (*payment.Payment, error) {
	pay, err := r.payments.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err == nil || !errors.HasCode(err, errors.ErrCodeNotFound) {
		return pay, err
	}
	return r.payments.FindLatestInitiatedByPhone(ctx, validator.NormalizeMSISDN(cb.PhoneNumber))
}

// replay reports the stored effect of a callback that was already applied.
func (r *Reconciler) replay(ctx context.Context, stored *payment.Payment) payment.ReconciliationResult {
	result := payment.ReconciliationResult{
		Outcome:        payment.OutcomeDeferred,
		Duplicate:      true,
		PaymentID:      stored.ID,
		SubscriptionID: stored.SubscriptionID,
		ProviderTxID:   stored.ProviderTxID,
	}
	if stored.SubscriptionID == "" {
		return result
	}
	sub, err := r.lifecycle.Get(ctx, stored.SubscriptionID)
	if err == nil && sub.PaymentID == stored.ID {
		result.Outcome = payment.OutcomeCompleted
	}
	return result
}

func (r *Reconciler) unmatched(ctx context.Context, cb *payment.Callback, raw []byte, detail string) payment.ReconciliationResult {
	r.alert(map[string]interface{}{
		"reason":              payment.ReasonUnmatched,
		"checkout_request_id": cb.CheckoutRequestID,
		"receipt":             cb.ReceiptNumber,
		"amount":              cb.Amount.String(),
	}).ErrorWithErr(errors.UnmatchedPayment(cb.CheckoutRequestID), "Unmatched payment: "+detail)
	r.enqueue(ctx, &payment.Entry{
		Reason:       payment.ReasonUnmatched,
		ProviderTxID: cb.ReceiptNumber,
		Detail:       detail,
		Payload:      truncate(raw),
	})
	return payment.ReconciliationResult{
		Outcome:      payment.OutcomeUnmatched,
		ProviderTxID: cb.ReceiptNumber,
		Reason:       detail,
	}
}

// storageFailure is the case where the store cannot tell us what to do. The raw payload
// goes to the error log since the queue lives in the same store.
func (r *Reconciler) storageFailure(log *logger.Logger, err error, cb *payment.Callback, raw []byte) payment.ReconciliationResult {
	log.WithFields(map[string]interface{}{
		"alert":   "reconciliation",
		"payload": truncate(raw),
	}).ErrorWithErr(err, "Payment callback could not be applied")
	return payment.ReconciliationResult{
		Outcome:      payment.OutcomeDeferred,
		ProviderTxID: cb.ReceiptNumber,
		Reason:       err.Error(),
	}
}

func (r *Reconciler) enqueue(ctx context.Context, e *payment.Entry) {
	e.ID = uuid.New().String()
	e.Status = payment.EntryOpen
	e.CreatedAt = r.clock.Now()

	metrics.RecordReconciliationQueued(string(e.Reason))
	if err := r.entries.Create(ctx, e); err != nil {
		r.alert(map[string]interface{}{
			"reason":  e.Reason,
			"detail":  e.Detail,
			"payload": e.Payload,
		}).ErrorWithErr(err, "Failed to queue reconciliation entry")
	}
}

func (r *Reconciler) finish(result payment.ReconciliationResult) payment.ReconciliationResult {
	metrics.RecordCallback(string(result.Outcome), result.Duplicate)
	return result
}

func (r *Reconciler) alert(fields map[string]interface{}) *logger.Logger {
	return r.logger.With("alert", "reconciliation").WithFields(fields)
}

// RetryPending re-runs activations that failed after a confirmed payment
func (r *Reconciler) RetryPending(ctx context.Context) (*payment.RetryReport, error) {
	now := r.clock.Now()
	due, err := r.entries.Due(ctx, payment.ReasonActivationFailed, now, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	delays := &backoff.Backoff{Min: r.cfg.BaseDelay, Max: r.cfg.MaxDelay, Factor: 2}
	report := &payment.RetryReport{}

	for _, e := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		log := r.logger.WithFields(map[string]interface{}{
			"entry_id":        e.ID,
			"payment_id":      e.PaymentID,
			"subscription_id": e.SubscriptionID,
			"attempt":         e.Attempts + 1,
		})

		_, actErr := r.lifecycle.Activate(ctx, e.SubscriptionID, e.PaymentID)
		switch {
		case actErr == nil:
			if err := r.entries.Close(ctx, e.ID, payment.EntryResolved, "activated on retry", now); err != nil {
				log.ErrorWithErr(err, "Failed to resolve reconciliation entry")
				continue
			}
			report.Resolved++
			log.Info("Deferred activation succeeded")

		case !errors.IsRetryable(actErr) && isPermanentActivationError(actErr):
			if err := r.entries.Close(ctx, e.ID, payment.EntryAbandoned, actErr.Error(), now); err != nil {
				log.ErrorWithErr(err, "Failed to abandon reconciliation entry")
				continue
			}
			report.Abandoned++
			log.With("alert", "reconciliation").ErrorWithErr(actErr, "Deferred activation cannot succeed, needs manual review")

		default:
			attempts := e.Attempts + 1
			if attempts >= r.cfg.MaxAttempts {
				if err := r.entries.Close(ctx, e.ID, payment.EntryAbandoned, actErr.Error(), now); err != nil {
					log.ErrorWithErr(err, "Failed to abandon reconciliation entry")
					continue
				}
				report.Abandoned++
				log.With("alert", "reconciliation").ErrorWithErr(actErr, "Deferred activation gave up")
				continue
			}
			next := now.Add(delays.ForAttempt(float64(attempts - 1)))
			if err := r.entries.Reschedule(ctx, e.ID, attempts, next, actErr.Error(), now); err != nil {
				log.ErrorWithErr(err, "Failed to reschedule reconciliation entry")
				continue
			}
			report.Rescheduled++
			log.WithError(actErr).Warn("Deferred activation failed, rescheduled")
		}
	}

	if report.Processed > 0 {
		r.logger.WithFields(map[string]interface{}{
			"processed":   report.Processed,
			"resolved":    report.Resolved,
			"rescheduled": report.Rescheduled,
			"abandoned":   report.Abandoned,
		}).Info("Reconciliation retry pass finished")
	}

	return report, nil
}

func isPermanentActivationError(err error) bool {
	for _, code := range []string{
		errors.ErrCodeAlreadyActive,
		errors.ErrCodeInvalidTransition,
		errors.ErrCodeNotFound,
		errors.ErrCodeValidation,
		errors.ErrCodeUnknownPlan,
	} {
		if errors.HasCode(err, code) {
			return true
		}
	}
	return false
}

// ListEntries lists the reconciliation queue
func (r *Reconciler) ListEntries(ctx context.Context, status payment.EntryStatus, limit, offset int) ([]*payment.Entry, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.entries.List(ctx, status, limit, offset)
}

// truncate makes a raw body safe for a TEXT column. Text is cut on a rune
// boundary; bodies with invalid UTF-8 or NUL bytes are stored base64 encoded.
func truncate(raw []byte) string {
	if !utf8.Valid(raw[:utf8SafeCut(raw, maxStoredPayload)]) || bytes.IndexByte(raw, 0) >= 0 {
		limit := base64.StdEncoding.DecodedLen(maxStoredPayload - len(binaryPayloadPrefix))
		if len(raw) > limit {
			raw = raw[:limit]
		}
		return binaryPayloadPrefix + base64.StdEncoding.EncodeToString(raw)
	}
	return string(raw[:utf8SafeCut(raw, maxStoredPayload)])
}

// utf8SafeCut returns the largest n <= limit that does not split a rune
func utf8SafeCut(b []byte, limit int) int {
	if len(b) <= limit {
		return len(b)
	}
	n := limit
	for n > 0 && n > limit-utf8.UTFMax && !utf8.RuneStart(b[n]) {
		n--
	}
	return n
}
