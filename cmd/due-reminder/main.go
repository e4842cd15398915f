package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/app"
	"github.com/boddenberg/caixa-bfa-go/internal/config"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/amqp"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel, "caixa-due-reminder")
	defer logger.Sync()

	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "caixa-due-reminder")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build adapters", zap.Error(err))
	}
	defer deps.Close()

	publisher, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer publisher.Close()

	metrics := observability.NewMetrics()
	projSvc := deps.ProjectionService(cfg, metrics, logger)
	reminders := service.NewDueReminderService(deps.Store, projSvc, publisher, cfg.MaxConcurrency, cfg.ReminderHorizonDays, metrics, logger)

	runOnce := func() {
		start := time.Now()
		run, err := reminders.Run(ctx)
		if err != nil {
			logger.Error("due reminder run finished with errors", zap.Error(err))
		}
		if run != nil {
			logger.Info("due reminder run complete",
				zap.Int("users", run.Users),
				zap.Int("published", run.Published),
				zap.Int("failed", run.Failed),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	}

	runOnce()
	if cfg.ReminderInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("due reminder worker stopped")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
