// Package service provides the business logic layer (use cases).
// ProjectionService loads a user's snapshot and runs the monthly
// projection engine over it.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/port"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var projTracer = otel.Tracer("service/projection")

const (
	rateCacheKey = "cdi"

	RateSourceProvider = "provider"
	RateSourceCache    = "cache"
	RateSourceDefault  = "default"
)

// ProjectionService answers monthly questions about one user's finances.
// Snapshots are reloaded on every call; only the reference rate is cached.
type ProjectionService struct {
	store       port.FinanceStore
	rates       port.RateProvider // optional
	rateCache   port.Cache[float64]
	defaultRate float64
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewProjectionService creates the projection service. rates may be nil, in
// which case defaultRate is always used.
func NewProjectionService(
	store port.FinanceStore,
	rates port.RateProvider,
	rateCache port.Cache[float64],
	defaultRate float64,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProjectionService {
	if defaultRate <= 0 {
		defaultRate = projection.DefaultCDIRate
	}
	return &ProjectionService{
		store:       store,
		rates:       rates,
		rateCache:   rateCache,
		defaultRate: defaultRate,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the clock used to derive "today".
func (s *ProjectionService) WithClock(now func() time.Time) *ProjectionService {
	s.now = now
	return s
}

// Today is the current calendar date according to the service clock.
func (s *ProjectionService) Today() domain.Date {
	return domain.DateOf(s.now())
}

// CheckStore issues a cheap read against the store for health checks.
func (s *ProjectionService) CheckStore(ctx context.Context) error {
	_, err := s.store.ListAccounts(ctx, "health-check")
	return err
}

// ============================================================
// Snapshot loading
// ============================================================

// LoadSnapshot fetches every collection of userID concurrently.
func (s *ProjectionService) LoadSnapshot(ctx context.Context, userID string) (*domain.Snapshot, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.LoadSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "is required"}
	}

	snap := &domain.Snapshot{UserID: userID}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.store.ListAccounts(gCtx, userID)
		snap.Accounts = v
		return wrapLoad("accounts", err)
	})
	g.Go(func() error {
		v, err := s.store.ListTransactions(gCtx, userID)
		snap.Transactions = v
		return wrapLoad("transactions", err)
	})
	g.Go(func() error {
		v, err := s.store.ListDebts(gCtx, userID)
		snap.Debts = v
		return wrapLoad("debts", err)
	})
	g.Go(func() error {
		v, err := s.store.ListCards(gCtx, userID)
		snap.Cards = v
		return wrapLoad("cards", err)
	})
	g.Go(func() error {
		v, err := s.store.ListPurchases(gCtx, userID)
		snap.Purchases = v
		return wrapLoad("purchases", err)
	})
	g.Go(func() error {
		v, err := s.store.ListPockets(gCtx, userID)
		snap.Pockets = v
		return wrapLoad("pockets", err)
	})
	g.Go(func() error {
		v, err := s.store.ListForecasts(gCtx, userID)
		snap.Forecasts = v
		return wrapLoad("forecasts", err)
	})
	g.Go(func() error {
		v, err := s.store.ListFixedExpenses(gCtx, userID)
		snap.FixedExpenses = v
		return wrapLoad("fixed expenses", err)
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load snapshot", zap.String("user_id", userID), zap.Error(err))
		s.metrics.IncrExternalError("store")
		return nil, err
	}

	s.metrics.ObserveSnapshot(snap)
	return snap, nil
}

func wrapLoad(collection string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", collection, err)
	}
	return nil
}

// ============================================================
// Reference rate
// ============================================================

// ReferenceRate returns the annual CDI rate: cached, then fetched from the
// provider, then the configured default. It never fails.
func (s *ProjectionService) ReferenceRate(ctx context.Context) *domain.RateResponse {
	ctx, span := projTracer.Start(ctx, "ProjectionService.ReferenceRate")
	defer span.End()

	resp := &domain.RateResponse{Index: "CDI"}
	defer func() { span.SetAttributes(attribute.String("rate.source", resp.Source)) }()

	if rate, ok := s.rateCache.Get(rateCacheKey); ok {
		s.metrics.IncrCacheHit("rate")
		resp.AnnualRate, resp.Source = rate, RateSourceCache
		return resp
	}
	s.metrics.IncrCacheMiss("rate")

	if s.rates != nil {
		rate, err := s.rates.CurrentCDIRate(ctx)
		if err == nil && rate > 0 {
			s.rateCache.Set(rateCacheKey, rate)
			resp.AnnualRate, resp.Source = rate, RateSourceProvider
			return resp
		}
		s.metrics.IncrExternalError("rates")
		s.logger.Warn("reference rate unavailable, using default",
			zap.Float64("default_rate", s.defaultRate),
			zap.Error(err),
		)
	}

	resp.AnnualRate, resp.Source = s.defaultRate, RateSourceDefault
	return resp
}

// ============================================================
// Projections
// ============================================================

// MonthlyReport composes every projection of userID for month.
func (s *ProjectionService) MonthlyReport(ctx context.Context, userID string, month domain.Month) (*domain.MonthlyReport, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.MonthlyReport")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("month", month.String()))

	start := time.Now()
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	rate := s.ReferenceRate(ctx)
	report := projection.BuildReport(snap, month, s.Today(), rate.AnnualRate)

	s.metrics.RecordRequestDuration("monthly_report", time.Since(start))
	s.metrics.IncrProjection("success")
	s.logger.Debug("monthly report built",
		zap.String("user_id", userID),
		zap.String("month", month.String()),
		zap.Float64("total_due", report.Dues.TotalDue),
	)
	return &report, nil
}

// AccountMonth projects a single account's opening, delta and closing.
func (s *ProjectionService) AccountMonth(ctx context.Context, userID, accountID string, month domain.Month) (*domain.AccountMonth, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.AccountMonth")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.String("month", month.String()))

	start := time.Now()
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	for _, a := range snap.Accounts {
		if a.ID == accountID {
			out := projection.ProjectAccount(a, snap.Transactions, month)
			s.metrics.RecordRequestDuration("account_month", time.Since(start))
			s.metrics.IncrProjection("success")
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
}

// MonthlyDues lists and totals what debts and card purchases ask for in month.
func (s *ProjectionService) MonthlyDues(ctx context.Context, userID string, month domain.Month) (*domain.MonthlyDues, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.MonthlyDues")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("month", month.String()))

	start := time.Now()
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	entries := projection.DueEntries(snap.Debts, snap.Purchases, snap.Transactions, month)
	dues := projection.MonthlyDues(month, entries)

	s.metrics.RecordRequestDuration("monthly_dues", time.Since(start))
	s.metrics.IncrProjection("success")
	return &dues, nil
}

// CardInvoice is one card's bill for month.
func (s *ProjectionService) CardInvoice(ctx context.Context, userID, cardID string, month domain.Month) (*domain.CardInvoice, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.CardInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID), attribute.String("month", month.String()))

	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	for _, c := range snap.Cards {
		if c.ID != cardID {
			continue
		}
		entries := projection.DueEntries(nil, snap.Purchases, snap.Transactions, month)
		inv := projection.CardInvoices([]domain.CreditCard{c}, entries, month)[0]
		s.metrics.IncrProjection("success")
		return &inv, nil
	}
	return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
}

// PocketYields derives the live position of every pocket of userID.
func (s *ProjectionService) PocketYields(ctx context.Context, userID string) ([]domain.PocketYield, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.PocketYields")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	rate := s.ReferenceRate(ctx).AnnualRate
	today := s.Today()
	out := make([]domain.PocketYield, 0, len(snap.Pockets))
	for _, p := range snap.Pockets {
		out = append(out, projection.PocketYield(p, rate, today))
	}
	s.metrics.IncrProjection("success")
	return out, nil
}

// PocketYield derives the live position of a single pocket.
func (s *ProjectionService) PocketYield(ctx context.Context, userID, pocketID string) (*domain.PocketYield, error) {
	ctx, span := projTracer.Start(ctx, "ProjectionService.PocketYield")
	defer span.End()
	span.SetAttributes(attribute.String("pocket.id", pocketID))

	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		s.metrics.IncrProjection("error")
		return nil, err
	}

	for _, p := range snap.Pockets {
		if p.ID == pocketID {
			y := projection.PocketYield(p, s.ReferenceRate(ctx).AnnualRate, s.Today())
			s.metrics.IncrProjection("success")
			return &y, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "pocket", ID: pocketID}
}
