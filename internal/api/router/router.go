package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pratik-mahalle/wiman/internal/api/handlers"
	"github.com/pratik-mahalle/wiman/internal/api/middleware"
	"github.com/pratik-mahalle/wiman/internal/auth"
	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/metrics"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Plan         *handlers.PlanHandler
	Subscription *handlers.SubscriptionHandler
	Payment      *handlers.PaymentHandler
	Admin        *handlers.AdminHandler
}

// New builds the HTTP API. limiter may be nil to disable rate limiting.
func New(cfg *config.Config, log *logger.Logger, h *Handlers, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.Server.FrontendURL))

	// API documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Probes and scraping
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway notifications authenticate with the callback token, not a bearer token
		r.Post("/payments/mpesa/callback", h.Payment.MpesaCallback)

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.RateLimit)
			}

			r.Get("/plans", h.Plan.List)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Auth.JWTSecret))
				if limiter != nil {
					// Second pass keys on the user now that the token is verified
					r.Use(limiter.RateLimit)
				}

				r.Post("/subscriptions", h.Subscription.Create)
				r.Get("/subscriptions/current", h.Subscription.Current)
				r.Post("/payments", h.Payment.Initiate)

				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireRole(auth.RoleAdmin))

					r.Get("/subscriptions", h.Admin.ListSubscriptions)
					r.Post("/subscriptions/expire", h.Admin.Expire)
					r.Post("/subscriptions/{id}/renew", h.Admin.Renew)
					r.Post("/subscriptions/{id}/cancel", h.Admin.Cancel)
					r.Get("/reconciliations", h.Admin.ListReconciliations)
					r.Post("/reconciliations/retry", h.Admin.RetryReconciliations)
				})
			})
		})
	})

	return r
}
