// Package app wires configuration into concrete adapters shared by the
// API server and the reminder worker.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/caixa-bfa-go/internal/config"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/cache"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/client"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/storage"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/caixa-bfa-go/internal/port"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.uber.org/zap"
)

// Store is a backend that can both read and seed user data.
type Store interface {
	port.FinanceStore
	port.SnapshotWriter
}

// Deps are the adapters built from Config. Close releases them.
type Deps struct {
	Store     Store
	Rates     port.RateProvider // nil when RATES_API_URL is unset
	RateCache port.Cache[float64]

	closers []func() error
}

// Build opens the configured store and reference rate adapters.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	d := &Deps{}

	// --- Store ---
	switch cfg.StoreBackend {
	case config.StoreSupabase:
		if cfg.SupabaseURL == "" {
			return nil, fmt.Errorf("STORE_BACKEND=supabase requires SUPABASE_URL")
		}
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sbClient := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
		d.Store = supabase.NewFinanceStore(sbClient)
	case config.StoreSQLite:
		logger.Info("using SQLite as data backend", zap.String("path", cfg.SQLitePath))
		store, err := storage.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		d.Store = store
		d.closers = append(d.closers, store.Close)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// --- Reference rate ---
	if cfg.RatesAPIURL != "" {
		d.Rates = client.NewRatesClient(
			&http.Client{Timeout: cfg.RatesTimeout},
			cfg.RatesAPIURL,
			resilience.NewCircuitBreaker("rates", logger),
			resilienceCfg,
		)
	} else {
		logger.Info("RATES_API_URL not set, using configured CDI rate", zap.Float64("cdi_rate", cfg.CDIRate))
	}

	// --- Cache ---
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr)
		redisCache := cache.NewRedis[float64](rdb, "caixa:rate:", cfg.CacheTTL, logger)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, falling back to in-memory cache", zap.Error(err))
			rdb.Close()
		} else {
			d.RateCache = redisCache
			d.closers = append(d.closers, rdb.Close)
		}
	}
	if d.RateCache == nil {
		mem := cache.New[float64](cfg.CacheTTL)
		d.RateCache = mem
		d.closers = append(d.closers, func() error { mem.Close(); return nil })
	}

	return d, nil
}

// ProjectionService builds the projection service over d.
func (d *Deps) ProjectionService(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *service.ProjectionService {
	return service.NewProjectionService(d.Store, d.Rates, d.RateCache, cfg.CDIRate, metrics, logger)
}

// Close releases every adapter in reverse order of creation.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}
