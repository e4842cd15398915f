package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/app"
	"github.com/boddenberg/caixa-bfa-go/internal/config"
	"github.com/boddenberg/caixa-bfa-go/internal/handler"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "caixa-api")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Float64("cdi_rate", cfg.CDIRate),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "caixa-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Adapters ---
	deps, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build adapters", zap.Error(err))
	}
	defer deps.Close()

	// --- Services ---
	projSvc := deps.ProjectionService(cfg, metrics, logger)
	reminderSvc := service.NewDueReminderService(deps.Store, projSvc, nil, cfg.MaxConcurrency, cfg.ReminderHorizonDays, metrics, logger)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTTTL, logger)
	if !authSvc.Enabled() {
		logger.Warn("JWT_SECRET not set, user routes are unauthenticated")
	}

	var devSvc *service.DevToolsService
	if cfg.DevMode {
		devSvc = service.NewDevToolsService(deps.Store, logger)
		logger.Warn("dev mode enabled, /v1/dev routes exposed")
	}

	// --- Router ---
	router := handler.NewRouter(projSvc, reminderSvc, authSvc, devSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
