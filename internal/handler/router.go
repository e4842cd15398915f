package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Any service may be nil; the routes it backs are then not mounted.
func NewRouter(
	projSvc *service.ProjectionService,
	reminderSvc *service.DueReminderService,
	authSvc *service.AuthService,
	devSvc *service.DevToolsService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(projSvc, logger))
	r.Get("/readyz", readyzHandler())
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	authEnabled := authSvc != nil && authSvc.Enabled()

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if metrics != nil {
			r.Get("/metrics/engine", engineMetricsHandler(metrics))
		}

		if projSvc != nil {
			r.Get("/rates/cdi", referenceRateHandler(projSvc))

			// =============================================
			// Per-user projections
			// =============================================
			r.Route("/users/{userId}", func(r chi.Router) {
				if authEnabled {
					r.Use(JWTAuthMiddleware(authSvc, logger))
					r.Use(RequireOwnUser(logger))
				}

				r.Get("/months/{month}/report", monthlyReportHandler(projSvc, logger))
				r.Get("/months/{month}/dues", monthlyDuesHandler(projSvc, logger))
				r.Get("/accounts/{accountId}/months/{month}", accountMonthHandler(projSvc, logger))
				r.Get("/cards/{cardId}/invoices/{month}", cardInvoiceHandler(projSvc, logger))
				r.Get("/pockets/yield", pocketYieldsHandler(projSvc, logger))
				r.Get("/pockets/{pocketId}/yield", pocketYieldHandler(projSvc, logger))

				if reminderSvc != nil {
					r.Get("/reminders", pendingRemindersHandler(reminderSvc, logger))
				}
			})
		}

		// =============================================
		// Dev tools (DEV_MODE only)
		// =============================================
		if devSvc != nil {
			r.Group(func(r chi.Router) {
				if authEnabled {
					r.Use(JWTAuthMiddleware(authSvc, logger))
				}
				r.Post("/dev/seed", devSeedHandler(devSvc, logger))
			})
			if authEnabled {
				r.Post("/dev/token", devTokenHandler(authSvc, logger))
			}
		}
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "caixa-api", Status: "healthy", LastChecked: now},
		}

		if projSvc != nil {
			start := time.Now()
			err := projSvc.CheckStore(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("store health check failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
