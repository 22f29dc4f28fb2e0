package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
)

// ReconciliationRetrier runs the reconciliation retry pass on a cron schedule
type ReconciliationRetrier struct {
	reconciler payment.Reconciler
	schedule   string
	timeout    time.Duration
	logger     *logger.Logger

	scheduler *cron.Cron
	base      context.Context
}

// NewReconciliationRetrier creates a retry job for deferred activations
func NewReconciliationRetrier(reconciler payment.Reconciler, schedule string, timeout time.Duration, log *logger.Logger) *ReconciliationRetrier {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ReconciliationRetrier{
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    timeout,
		logger:     log.Component("reconciliation-retrier"),
	}
}

// Start schedules the retry pass. Runs never overlap and a panic in one run does
// not stop the schedule.
func (w *ReconciliationRetrier) Start(ctx context.Context) error {
	cl := cronLogger{w.logger}
	w.base = context.WithoutCancel(ctx)
	w.scheduler = cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))

	if _, err := w.scheduler.AddFunc(w.schedule, func() {
		_, _ = w.RunOnce(w.base)
	}); err != nil {
		return fmt.Errorf("invalid reconciliation schedule %q: %w", w.schedule, err)
	}

	w.scheduler.Start()
	w.logger.WithFields(map[string]interface{}{
		"schedule": w.schedule,
	}).Info("Reconciliation retrier started")
	return nil
}

// Stop stops scheduling and waits for a running pass or ctx, whichever comes first
func (w *ReconciliationRetrier) Stop(ctx context.Context) {
	if w.scheduler == nil {
		return
	}
	select {
	case <-w.scheduler.Stop().Done():
		w.logger.Info("Reconciliation retrier stopped")
	case <-ctx.Done():
		w.logger.Warn("Reconciliation retrier did not stop in time")
	}
}

// RunOnce performs a single retry pass bounded by the retrier timeout
func (w *ReconciliationRetrier) RunOnce(ctx context.Context) (*payment.RetryReport, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	report, err := w.reconciler.RetryPending(runCtx)
	if err != nil {
		w.logger.ErrorWithErr(err, "Reconciliation retry pass failed")
	}
	return report, err
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithFields(kvFields(keysAndValues)).ErrorWithErr(err, msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
