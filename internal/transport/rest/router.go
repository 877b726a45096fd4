package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/auth"
	"github.com/metrocheck/crb-service/internal/entitlement"
	"github.com/metrocheck/crb-service/internal/lender"
	"github.com/metrocheck/crb-service/internal/payment"
	"github.com/metrocheck/crb-service/internal/report"
	"github.com/metrocheck/crb-service/internal/transport/middleware"
	"github.com/metrocheck/crb-service/internal/transport/swagger"
)

type Handlers struct {
	Auth        *auth.Handler
	Payment     *payment.Handler
	Webhook     *payment.WebhookHandler
	Entitlement *entitlement.Handler
	Report      *report.Handler
	Lender      *lender.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, cfg *internal.Config, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Metrics)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)
		r.Get("/stats/counter", statsCounterHandler)

		// Provider callback. Signature verification happens inside the
		// handler so it sees the raw body.
		r.Post("/payment/callback", h.Webhook.HandleCallback)

		// Payment lifecycle
		r.Post("/payment/initiate", h.Payment.Initiate)
		r.Post("/check-payment-status", h.Payment.CheckStatus)
		r.Get("/payment/status/{checkoutId}", h.Payment.StatusByCheckoutID)

		// Packages and access
		r.Get("/packages", h.Entitlement.Packages)
		r.Post("/user/access", h.Entitlement.UserAccess)
		r.Post("/upgrade/initiate", h.Entitlement.InitiateUpgrade)

		// Reports
		r.Post("/reports", h.Report.GetReport)
		r.Post("/reports/download", h.Report.Download)

		// Lenders
		r.Get("/lenders", h.Lender.ListPartners)
		r.Post("/lenders/connect", h.Lender.Connect)

		// Admin surface
		r.Post("/auth/login", h.Auth.Login)
		r.Group(func(ar chi.Router) {
			ar.Use(h.Auth.Middleware)
			ar.Get("/payments", h.Payment.ListPayments)
		})
	})
}
