package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/metrics"
)

// Expirer is the part of the subscription lifecycle the sweeper drives
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically expires subscriptions whose window has closed
type ExpirySweeper struct {
	expirer  Expirer
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger

	mu sync.Mutex // serialises runs started by the loop and by RunOnce callers
}

// NewExpirySweeper creates a new expiry sweeper worker
func NewExpirySweeper(expirer Expirer, clk clock.Clock, interval, timeout time.Duration, log *logger.Logger) *ExpirySweeper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExpirySweeper{
		expirer:  expirer,
		clock:    clk,
		interval: interval,
		timeout:  timeout,
		logger:   log.Component("expiry-sweeper"),
	}
}

// Start runs a sweep immediately and then on every tick until ctx is cancelled.
// It returns only after the sweep in flight, if any, has finished.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.WithFields(map[string]interface{}{
		"interval": s.interval.String(),
	}).Info("Starting expiry sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		}
	}
}

// RunOnce performs a single sweep. The sweep is detached from ctx cancellation so a
// shutdown never interrupts it halfway; it is bounded by the sweeper timeout instead.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (expired int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	now := s.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("expiry sweep panicked: %v", rec)
		}
		metrics.RecordSweep(expired, time.Since(start), err)
		if err != nil {
			s.logger.ErrorWithErr(err, "Expiry sweep failed")
			return
		}
		s.logger.WithFields(map[string]interface{}{
			"expired":     expired,
			"now":         now,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Expiry sweep finished")
	}()

	return s.expirer.ExpireDue(runCtx, now)
}
