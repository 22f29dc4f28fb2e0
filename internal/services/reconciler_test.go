package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/providers"
	"github.com/pratik-mahalle/wiman/internal/repository/postgres"
	"github.com/pratik-mahalle/wiman/internal/testutil"
)

const testPhone = 254712345678

type paymentFixture struct {
	*lifecycleFixture
	gateway    *testutil.MockGateway
	payments   payment.Repository
	paySvc     payment.Service
	reconciler payment.Reconciler
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	lf := newLifecycle(t, config.SubscriptionConfig{})
	log := testutil.NewTestLogger()
	gw := testutil.NewMockGateway(providers.ParseSTKCallback)

	payRepo := postgres.NewPaymentRepository(lf.db, time.Second)
	entries := postgres.NewReconciliationRepository(lf.db, time.Second)
	plans := postgres.NewPlanRepository(lf.db, time.Second)

	return &paymentFixture{
		lifecycleFixture: lf,
		gateway:          gw,
		payments:         payRepo,
		paySvc:           NewPaymentService(payRepo, lf.repo, plans, gw, lf.clock, log),
		reconciler: NewReconciler(payRepo, entries, lf.svc, gw, lf.clock, log, config.ReconcileConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Minute,
			MaxDelay:    time.Hour,
			BatchSize:   10,
		}),
	}
}

// charge creates a pending subscription for user 1 and initiates its payment
func (f *paymentFixture) charge(t *testing.T, planID string) (*subscription.Subscription, *payment.Payment) {
	t.Helper()
	ctx := context.Background()

	sub, err := f.svc.Create(ctx, 1, planID, subscription.CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	pay, err := f.paySvc.Initiate(ctx, 1, sub.ID, "0712345678")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	return sub, pay
}

func (f *paymentFixture) entries(t *testing.T, reason payment.Reason) []*payment.Entry {
	t.Helper()
	all, _, err := f.reconciler.ListEntries(context.Background(), payment.EntryOpen, 100, 0)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	var out []*payment.Entry
	for _, e := range all {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

func success(pay *payment.Payment, receipt string, amount float64) []byte {
	return testutil.STKCallback(testutil.STKResult{
		CheckoutRequestID: pay.CheckoutRequestID,
		Receipt:           receipt,
		Amount:            amount,
		Phone:             testPhone,
	})
}

func TestReconciler_CompletesAndIgnoresReplays(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	sub, pay := f.charge(t, "premium-1w")
	body := success(pay, "QKJ41BG1XY", 150)

	first := f.reconciler.HandleCallback(ctx, body)
	if first.Outcome != payment.OutcomeCompleted || first.Duplicate {
		t.Fatalf("first callback = %+v, want completed", first)
	}
	if first.SubscriptionID != sub.ID || first.PaymentID != pay.ID {
		t.Errorf("first callback references %s/%s, want %s/%s", first.SubscriptionID, first.PaymentID, sub.ID, pay.ID)
	}

	activated, _ := f.svc.Get(ctx, sub.ID)
	if activated.Status != subscription.StatusActive || activated.PaymentID != pay.ID {
		t.Fatalf("subscription = %+v, want active with the payment", activated)
	}

	f.clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		again := f.reconciler.HandleCallback(ctx, body)
		if !again.Duplicate || again.Outcome != payment.OutcomeCompleted {
			t.Fatalf("replay %d = %+v, want duplicate completed", i, again)
		}
	}

	after, _ := f.svc.Get(ctx, sub.ID)
	if !after.ExpiresAt.Equal(*activated.ExpiresAt) {
		t.Errorf("replays moved ExpiresAt from %v to %v", activated.ExpiresAt, after.ExpiresAt)
	}

	completed, total, err := f.payments.List(ctx, payment.Filter{Status: payment.StatusCompleted}, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || completed[0].ProviderTxID != "QKJ41BG1XY" {
		t.Fatalf("completed payments = %d, want exactly one with the receipt", total)
	}
	if got := completed[0].PaidAmount; !got.Valid || !got.Decimal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("PaidAmount = %v, want 150", got)
	}
}

func TestReconciler_FailedResultChangesNothing(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	sub, pay := f.charge(t, "basic-1h")
	result := f.reconciler.HandleCallback(ctx, testutil.STKCallback(testutil.STKResult{
		CheckoutRequestID: pay.CheckoutRequestID,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}))
	if result.Outcome != payment.OutcomeFailed {
		t.Fatalf("Outcome = %s, want failed", result.Outcome)
	}

	stored, err := f.payments.GetByID(ctx, pay.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != payment.StatusInitiated {
		t.Errorf("payment Status = %s, want initiated", stored.Status)
	}
	got, _ := f.svc.Get(ctx, sub.ID)
	if got.Status != subscription.StatusPending {
		t.Errorf("subscription Status = %s, want pending", got.Status)
	}
	if all, total, _ := f.reconciler.ListEntries(ctx, "", 10, 0); total != 0 {
		t.Errorf("queued %d entries for a failed payment: %+v", total, all)
	}
}

func TestReconciler_MalformedAndUnmatched(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		body    []byte
		outcome payment.Outcome
		reason  payment.Reason
	}{
		{"not json", []byte("nope"), payment.OutcomeMalformed, payment.ReasonMalformed},
		{"missing receipt", testutil.STKCallback(testutil.STKResult{CheckoutRequestID: "ws_CO_9", Amount: 20, Phone: testPhone}), payment.OutcomeMalformed, payment.ReasonMalformed},
		{"no such payment", testutil.STKCallback(testutil.STKResult{CheckoutRequestID: "ws_CO_9", Receipt: "R404", Amount: 20, Phone: 254799999999}), payment.OutcomeUnmatched, payment.ReasonUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.entries(t, tt.reason))
			result := f.reconciler.HandleCallback(ctx, tt.body)
			if result.Outcome != tt.outcome {
				t.Fatalf("Outcome = %s, want %s", result.Outcome, tt.outcome)
			}
			if got := len(f.entries(t, tt.reason)); got != before+1 {
				t.Errorf("%s entries = %d, want %d", tt.reason, got, before+1)
			}
		})
	}
}

func TestReconciler_FallsBackToPhoneNumber(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	sub, _ := f.charge(t, "basic-1h")
	result := f.reconciler.HandleCallback(ctx, testutil.STKCallback(testutil.STKResult{
		CheckoutRequestID: "ws_CO_unknown",
		Receipt:           "QPHONE1",
		Amount:            20,
		Phone:             testPhone,
	}))
	if result.Outcome != payment.OutcomeCompleted || result.SubscriptionID != sub.ID {
		t.Fatalf("result = %+v, want completed for %s", result, sub.ID)
	}
}

func TestReconciler_UnderpaymentIsNotActivated(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	sub, pay := f.charge(t, "premium-1w")
	result := f.reconciler.HandleCallback(ctx, success(pay, "QLOW1", 100))
	if result.Outcome != payment.OutcomeDeferred {
		t.Fatalf("Outcome = %s, want deferred", result.Outcome)
	}

	got, _ := f.svc.Get(ctx, sub.ID)
	if got.Status != subscription.StatusPending {
		t.Errorf("subscription Status = %s, want pending", got.Status)
	}
	if n := len(f.entries(t, payment.ReasonAmountMismatch)); n != 1 {
		t.Errorf("amount_mismatch entries = %d, want 1", n)
	}

	// The receipt is recorded so the replay is a duplicate, not a second charge
	replay := f.reconciler.HandleCallback(ctx, success(pay, "QLOW1", 100))
	if !replay.Duplicate || replay.Outcome != payment.OutcomeDeferred {
		t.Errorf("replay = %+v, want duplicate deferred", replay)
	}
}

func TestReconciler_RetriesFailedActivation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	sub, pay := f.charge(t, "basic-3h")

	f.repo.SetActivateError(errors.StorageUnavailable(context.DeadlineExceeded))
	result := f.reconciler.HandleCallback(ctx, success(pay, "QRETRY1", 50))
	if result.Outcome != payment.OutcomeDeferred || result.PaymentID != pay.ID {
		t.Fatalf("result = %+v, want deferred for the payment", result)
	}
	if n := len(f.entries(t, payment.ReasonActivationFailed)); n != 1 {
		t.Fatalf("activation_failed entries = %d, want 1", n)
	}

	// Still failing: rescheduled one base delay out
	report, err := f.reconciler.RetryPending(ctx)
	if err != nil {
		t.Fatalf("RetryPending() error = %v", err)
	}
	if report.Processed != 1 || report.Rescheduled != 1 {
		t.Fatalf("report = %+v, want one rescheduled", report)
	}
	entry := f.entries(t, payment.ReasonActivationFailed)[0]
	if entry.Attempts != 1 || entry.NextAttemptAt == nil || !entry.NextAttemptAt.Equal(f.clock.Now().Add(time.Minute)) {
		t.Errorf("entry = attempts %d next %v, want 1 and now+1m", entry.Attempts, entry.NextAttemptAt)
	}

	// Not due yet
	if report, _ := f.reconciler.RetryPending(ctx); report.Processed != 0 {
		t.Errorf("early retry processed %d entries", report.Processed)
	}

	f.repo.SetActivateError(nil)
	f.clock.Advance(time.Minute)
	report, err = f.reconciler.RetryPending(ctx)
	if err != nil {
		t.Fatalf("RetryPending() error = %v", err)
	}
	if report.Resolved != 1 {
		t.Fatalf("report = %+v, want one resolved", report)
	}

	got, _ := f.svc.Get(ctx, sub.ID)
	if got.Status != subscription.StatusActive || got.PaymentID != pay.ID {
		t.Errorf("subscription = %+v, want active with the payment", got)
	}
	if n := len(f.entries(t, payment.ReasonActivationFailed)); n != 0 {
		t.Errorf("open activation_failed entries = %d, want 0", n)
	}
}

func TestReconciler_AbandonsHopelessActivation(t *testing.T) {
	tests := []struct {
		name   string
		cancel bool
		err    error
	}{
		{name: "subscription cancelled meanwhile", cancel: true},
		{name: "storage keeps failing", err: errors.StorageUnavailable(context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			ctx := context.Background()

			sub, pay := f.charge(t, "basic-1h")
			f.repo.SetActivateError(errors.StorageUnavailable(context.DeadlineExceeded))
			f.reconciler.HandleCallback(ctx, success(pay, "QGONE1", 20))
			f.repo.SetActivateError(tt.err)

			if tt.cancel {
				if _, err := f.svc.Cancel(ctx, sub.ID); err != nil {
					t.Fatalf("Cancel() error = %v", err)
				}
			}

			var abandoned int
			for i := 0; i < 5; i++ {
				report, err := f.reconciler.RetryPending(ctx)
				if err != nil {
					t.Fatalf("RetryPending() error = %v", err)
				}
				abandoned += report.Abandoned
				f.clock.Advance(2 * time.Hour)
			}
			if abandoned != 1 {
				t.Errorf("abandoned = %d, want 1", abandoned)
			}

			closed, _, _ := f.reconciler.ListEntries(ctx, payment.EntryAbandoned, 10, 0)
			if len(closed) != 1 {
				t.Errorf("abandoned entries = %d, want 1", len(closed))
			}
		})
	}
}

func TestReconciler_StoredPayloadIsTextSafe(t *testing.T) {
	atCut := strings.Repeat("a", maxStoredPayload-1) + "é" + "tail"
	binary := []byte{'{', 0xff, 0xfe, 0x00, '}'}

	tests := []struct {
		name     string
		body     []byte
		wantText string
		wantRaw  []byte
	}{
		{"short text kept", []byte("nope"), "nope", nil},
		{"cut on rune boundary", []byte(atCut), strings.Repeat("a", maxStoredPayload-1), nil},
		{"invalid utf8 encoded", binary, "", binary},
		{"nul byte encoded", []byte("ab\x00cd"), "", []byte("ab\x00cd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			result := f.reconciler.HandleCallback(context.Background(), tt.body)
			if result.Outcome != payment.OutcomeMalformed {
				t.Fatalf("Outcome = %s, want malformed", result.Outcome)
			}

			queued := f.entries(t, payment.ReasonMalformed)
			if len(queued) != 1 {
				t.Fatalf("malformed entries = %d, want 1", len(queued))
			}
			stored := queued[0].Payload
			if !utf8.ValidString(stored) || strings.IndexByte(stored, 0) >= 0 || len(stored) > maxStoredPayload {
				t.Fatalf("stored payload is not TEXT safe (len %d)", len(stored))
			}

			if tt.wantRaw == nil {
				if stored != tt.wantText {
					t.Errorf("stored payload len %d, want len %d", len(stored), len(tt.wantText))
				}
				return
			}
			if !strings.HasPrefix(stored, binaryPayloadPrefix) {
				t.Fatalf("stored payload %q lacks %q prefix", stored, binaryPayloadPrefix)
			}
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, binaryPayloadPrefix))
			if err != nil || !bytes.Equal(decoded, tt.wantRaw) {
				t.Errorf("decoded payload = %q, %v, want %q", decoded, err, tt.wantRaw)
			}
		})
	}
}

func TestTruncate_LargeBinaryFits(t *testing.T) {
	raw := bytes.Repeat([]byte{0xff}, 3*maxStoredPayload)
	got := truncate(raw)
	if len(got) > maxStoredPayload || !strings.HasPrefix(got, binaryPayloadPrefix) {
		t.Errorf("truncate() len %d, want <= %d with %q prefix", len(got), maxStoredPayload, binaryPayloadPrefix)
	}
}
