package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/testutil"
)

type stubReconciler struct {
	payment.Reconciler
	report   *payment.RetryReport
	err      error
	deadline bool
}

func (s *stubReconciler) RetryPending(ctx context.Context) (*payment.RetryReport, error) {
	_, s.deadline = ctx.Deadline()
	return s.report, s.err
}

func TestReconciliationRetrier_RunOnce(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubReconciler
		wantErr bool
	}{
		{"pass succeeds", &stubReconciler{report: &payment.RetryReport{Processed: 2, Resolved: 2}}, false},
		{"pass fails", &stubReconciler{err: fmt.Errorf("storage unavailable")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewReconciliationRetrier(tt.stub, "@every 1m", time.Second, testutil.NewTestLogger())
			report, err := w.RunOnce(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunOnce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if report != tt.stub.report {
				t.Errorf("RunOnce() report = %+v, want %+v", report, tt.stub.report)
			}
			if !tt.stub.deadline {
				t.Error("retry pass ran without a deadline")
			}
		})
	}
}

func TestReconciliationRetrier_StartRejectsBadSchedule(t *testing.T) {
	w := NewReconciliationRetrier(&stubReconciler{}, "every minute", time.Second, testutil.NewTestLogger())
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Start() accepted an invalid schedule")
	}
	// Stop on a retrier that never started is a no-op
	w.Stop(context.Background())
}

func TestReconciliationRetrier_StartStop(t *testing.T) {
	w := NewReconciliationRetrier(&stubReconciler{report: &payment.RetryReport{}}, "@every 1h", time.Second, testutil.NewTestLogger())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
