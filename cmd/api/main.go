package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pratik-mahalle/wiman/internal/api/handlers"
	"github.com/pratik-mahalle/wiman/internal/api/middleware"
	"github.com/pratik-mahalle/wiman/internal/api/router"
	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
	"github.com/pratik-mahalle/wiman/internal/providers"
	"github.com/pratik-mahalle/wiman/internal/repository/postgres"
	"github.com/pratik-mahalle/wiman/internal/services"
	"github.com/pratik-mahalle/wiman/internal/worker"
	"github.com/pratik-mahalle/wiman/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	if err := run(cfg, log); err != nil {
		log.ErrorWithErr(err, "Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := postgres.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.RunMigrations(db, migrations.GetFS())
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"driver":  cfg.Database.Driver,
		"applied": applied,
	}).Info("Database ready")

	// Repositories
	timeout := cfg.Database.QueryTimeout
	planRepo := postgres.NewPlanRepository(db, timeout)
	subRepo := postgres.NewSubscriptionRepository(db, timeout)
	paymentRepo := postgres.NewPaymentRepository(db, timeout)
	entryRepo := postgres.NewReconciliationRepository(db, timeout)

	// Services
	clk := clock.System()
	gateway := providers.NewMpesaGateway(cfg.Mpesa, nil, log)
	subService := services.NewSubscriptionService(subRepo, planRepo, clk, log, cfg.Subscription)
	paymentService := services.NewPaymentService(paymentRepo, subRepo, planRepo, gateway, clk, log)
	reconciler := services.NewReconciler(paymentRepo, entryRepo, subService, gateway, clk, log, cfg.Reconcile)

	val := validator.New()
	h := &router.Handlers{
		Health:       handlers.NewHealthHandler(db, log),
		Plan:         handlers.NewPlanHandler(planRepo, log),
		Subscription: handlers.NewSubscriptionHandler(subService, clk, log, val),
		Payment:      handlers.NewPaymentHandler(paymentService, reconciler, cfg.Mpesa.CallbackToken, log, val),
		Admin:        handlers.NewAdminHandler(subService, reconciler, clk, log, val),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.RunCleanup(ctx, 10*time.Minute)
	}()

	if cfg.Sweeper.Enabled {
		sweeper := worker.NewExpirySweeper(subService, clk, cfg.Sweeper.Interval, cfg.Sweeper.Timeout, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(ctx)
		}()
	}

	var retrier *worker.ReconciliationRetrier
	if cfg.Reconcile.Enabled {
		retrier = worker.NewReconciliationRetrier(reconciler, cfg.Reconcile.Schedule, time.Minute, log)
		if err := retrier.Start(ctx); err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	drain := func(ctx context.Context) {
		if retrier != nil {
			retrier.Stop(ctx)
		}
		// The sweeper finishes the run in flight before returning
		wg.Wait()
	}
	return serve(ctx, stop, server, cfg.Server.ShutdownTimeout, drain, log)
}

// serve runs server until ctx is done or listening fails. Either way the server is
// shut down, stop releases the background workers and drain waits for them.
func serve(ctx context.Context, stop context.CancelFunc, server *http.Server, timeout time.Duration, drain func(context.Context), log *logger.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	var listenErr error
	select {
	case listenErr = <-serverErr:
	case <-ctx.Done():
		log.Info("Shutdown signal received, starting graceful shutdown")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "HTTP server shutdown failed")
	}
	drain(shutdownCtx)

	if listenErr != nil {
		return fmt.Errorf("http server failed: %w", listenErr)
	}
	log.Info("Server stopped")
	return nil
}
