package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/cache"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/port"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

var frozenNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func fixtureSnapshot() *domain.Snapshot {
	march := domain.MustParseMonth("2025-03")
	dueDay := 10
	limit := 1000.0
	return &domain.Snapshot{
		UserID: "u1",
		Accounts: []domain.CashAccount{{
			ID: "a1", Name: "Conta", Kind: domain.AccountChecking,
			InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2025-01"): 1000},
		}},
		Transactions: []domain.Transaction{
			{ID: "t1", AccountID: "a1", Direction: domain.DirectionIn, Amount: 500,
				Date: domain.MustParseDate("2025-02-10"), Origin: domain.ManualOrigin()},
			{ID: "t2", AccountID: "a1", Direction: domain.DirectionOut, Amount: 200,
				Date: domain.MustParseDate("2025-03-05"), Origin: domain.DebtPaymentOrigin("d1", march)},
		},
		Debts: []domain.Debt{{
			ID: "d1", Description: "loan", TotalAmount: 600, InstallmentCount: 3, InstallmentAmount: 200,
			DueDate: domain.MustParseDate("2025-02-15"), Kind: domain.DebtInstallment,
		}},
		Cards: []domain.CreditCard{{ID: "c1", Name: "Visa", DueDay: &dueDay, Limit: &limit}},
		Purchases: []domain.CardPurchase{{
			ID: "p1", CardID: "c1", Description: "tv", TotalAmount: 300, InstallmentCount: 3,
			InstallmentAmount: 100, FirstMonth: march,
		}},
		Pockets: []domain.SavingsPocket{{
			ID: "s1", Name: "Reserva", Kind: domain.PocketCDI, ParticipationPct: 100,
			InitialContribution: domain.Contribution{Date: domain.MustParseDate("2025-01-02"), Amount: 1000},
		}},
	}
}

func newProjectionService(store *mockStore, rates *mockRates) (*service.ProjectionService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	var provider port.RateProvider
	if rates != nil {
		provider = rates
	}
	svc := service.NewProjectionService(store, provider, cache.New[float64](time.Minute), 10.75, metrics, zap.NewNop()).
		WithClock(func() time.Time { return frozenNow })
	return svc, metrics
}

func TestMonthlyReport_Success(t *testing.T) {
	svc, metrics := newProjectionService(newMockStore(fixtureSnapshot()), &mockRates{rate: 14.65})

	report, err := svc.MonthlyReport(context.Background(), "u1", domain.MustParseMonth("2025-03"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.ReferenceRate != 14.65 {
		t.Errorf("expected provider rate 14.65, got %v", report.ReferenceRate)
	}
	if report.Today.String() != "2025-03-15" {
		t.Errorf("expected frozen today, got %s", report.Today)
	}
	if report.TotalOpening != 1500 || report.TotalClosing != 1300 {
		t.Errorf("expected opening 1500 closing 1300, got %v / %v", report.TotalOpening, report.TotalClosing)
	}
	d := report.Dues
	if d.TotalDue != 300 || d.TotalPaid != 200 || d.Remaining != 100 {
		t.Errorf("unexpected dues totals %+v", d)
	}
	if d.Count != 2 || d.PaidCount != 1 {
		t.Errorf("expected 2 entries, 1 paid; got %d / %d", d.Count, d.PaidCount)
	}
	if len(report.CardUsage) != 1 || report.CardUsage[0].Used != 300 || *report.CardUsage[0].Available != 700 {
		t.Errorf("unexpected card usage %+v", report.CardUsage)
	}
	if len(report.Pockets) != 1 || report.Pockets[0].NetYield <= 0 {
		t.Errorf("expected a positive pocket yield, got %+v", report.Pockets)
	}

	snap := metrics.GetEngineSnapshot()
	if snap.Projections != 1 || snap.ProjectionErrs != 0 {
		t.Errorf("expected 1 successful projection, got %+v", snap)
	}
}

func TestMonthlyReport_StoreError(t *testing.T) {
	store := newMockStore()
	store.err = &domain.ErrExternalService{Service: "supabase/accounts", Err: errors.New("boom")}
	svc, metrics := newProjectionService(store, nil)

	_, err := svc.MonthlyReport(context.Background(), "u1", domain.MustParseMonth("2025-03"))
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	snap := metrics.GetEngineSnapshot()
	if snap.ProjectionErrs != 1 || snap.StoreErrors != 1 {
		t.Errorf("expected error counters to move, got %+v", snap)
	}
}

func TestLoadSnapshot_RequiresUser(t *testing.T) {
	svc, _ := newProjectionService(newMockStore(), nil)
	_, err := svc.LoadSnapshot(context.Background(), "")
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLoadSnapshot_ReloadsEveryCall(t *testing.T) {
	store := newMockStore(fixtureSnapshot())
	svc, _ := newProjectionService(store, nil)
	ctx := context.Background()
	march := domain.MustParseMonth("2025-03")

	first, err := svc.MonthlyDues(ctx, "u1", march)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := fixtureSnapshot()
	updated.Transactions = append(updated.Transactions, domain.Transaction{
		ID: "t3", AccountID: "a1", Direction: domain.DirectionOut, Amount: 100,
		Date: domain.MustParseDate("2025-03-11"), Origin: domain.CardPaymentOrigin("c1", march),
	})
	store.ReplaceSnapshot(ctx, updated)

	second, err := svc.MonthlyDues(ctx, "u1", march)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Remaining != 100 || second.Remaining != 0 {
		t.Errorf("expected remaining 100 then 0, got %v then %v", first.Remaining, second.Remaining)
	}
}

func TestReferenceRate_Sources(t *testing.T) {
	ctx := context.Background()

	t.Run("provider then cache", func(t *testing.T) {
		rates := &mockRates{rate: 14.9}
		svc, metrics := newProjectionService(newMockStore(), rates)

		first := svc.ReferenceRate(ctx)
		second := svc.ReferenceRate(ctx)
		if first.Source != service.RateSourceProvider || second.Source != service.RateSourceCache {
			t.Errorf("expected provider then cache, got %s then %s", first.Source, second.Source)
		}
		if second.AnnualRate != 14.9 || second.Index != "CDI" {
			t.Errorf("unexpected rate %+v", second)
		}
		if rates.calls != 1 {
			t.Errorf("expected 1 provider call, got %d", rates.calls)
		}
		if m := metrics.GetEngineSnapshot(); m.RateCacheHits != 1 || m.RateCacheMisses != 1 {
			t.Errorf("unexpected cache counters %+v", m)
		}
	})

	t.Run("provider error falls back to default", func(t *testing.T) {
		rates := &mockRates{err: errors.New("down")}
		svc, _ := newProjectionService(newMockStore(), rates)

		got := svc.ReferenceRate(ctx)
		if got.Source != service.RateSourceDefault || got.AnnualRate != 10.75 {
			t.Errorf("expected default 10.75, got %+v", got)
		}
		svc.ReferenceRate(ctx)
		if rates.calls != 2 {
			t.Errorf("failed fetches should not be cached, got %d calls", rates.calls)
		}
	})

	t.Run("no provider", func(t *testing.T) {
		svc, _ := newProjectionService(newMockStore(), nil)
		if got := svc.ReferenceRate(ctx); got.Source != service.RateSourceDefault {
			t.Errorf("expected default source, got %s", got.Source)
		}
	})
}

func TestAccountMonth(t *testing.T) {
	svc, _ := newProjectionService(newMockStore(fixtureSnapshot()), nil)
	ctx := context.Background()

	got, err := svc.AccountMonth(ctx, "u1", "a1", domain.MustParseMonth("2025-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OpeningBalance != 1500 || got.MonthDelta != -200 || got.ClosingBalance != 1300 {
		t.Errorf("unexpected account month %+v", got)
	}

	_, err = svc.AccountMonth(ctx, "u1", "missing", domain.MustParseMonth("2025-03"))
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Resource != "account" {
		t.Fatalf("expected ErrNotFound for account, got %v", err)
	}
}

func TestCardInvoice(t *testing.T) {
	svc, _ := newProjectionService(newMockStore(fixtureSnapshot()), nil)
	ctx := context.Background()

	inv, err := svc.CardInvoice(ctx, "u1", "c1", domain.MustParseMonth("2025-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Total != 100 || inv.Remaining != 100 || len(inv.Entries) != 1 {
		t.Errorf("unexpected invoice %+v", inv)
	}
	if inv.DueDate == nil || inv.DueDate.String() != "2025-03-10" {
		t.Errorf("expected due date 2025-03-10, got %v", inv.DueDate)
	}

	if _, err := svc.CardInvoice(ctx, "u1", "nope", domain.MustParseMonth("2025-03")); err == nil {
		t.Fatal("expected not found")
	}
}

func TestPocketYields(t *testing.T) {
	svc, _ := newProjectionService(newMockStore(fixtureSnapshot()), &mockRates{rate: 12})
	ctx := context.Background()

	all, err := svc.PocketYields(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 pocket, got %d", len(all))
	}

	one, err := svc.PocketYield(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one.Principal != 1000 || one.LiquidBalance <= 1000 {
		t.Errorf("unexpected pocket yield %+v", one)
	}
	if one.NetYield != all[0].NetYield {
		t.Errorf("single and list views disagree: %v vs %v", one.NetYield, all[0].NetYield)
	}

	_, err = svc.PocketYield(ctx, "u1", "missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

var (
	spansOnce sync.Once
	spans     *tracetest.SpanRecorder
)

// recordSpans installs a recording tracer provider once per test binary;
// package tracers delegate to the first provider set.
func recordSpans() *tracetest.SpanRecorder {
	spansOnce.Do(func() {
		spans = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	return spans
}

func lastRateSources(rec *tracetest.SpanRecorder, n int) []string {
	var out []string
	for _, s := range rec.Ended() {
		if s.Name() != "ProjectionService.ReferenceRate" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "rate.source" {
				out = append(out, kv.Value.AsString())
			}
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func TestReferenceRate_SpanSource(t *testing.T) {
	rec := recordSpans()
	ctx := context.Background()

	svc, _ := newProjectionService(newMockStore(), &mockRates{rate: 14.9})
	svc.ReferenceRate(ctx)
	svc.ReferenceRate(ctx)
	fallback, _ := newProjectionService(newMockStore(), nil)
	fallback.ReferenceRate(ctx)

	got := lastRateSources(rec, 3)
	want := []string{service.RateSourceProvider, service.RateSourceCache, service.RateSourceDefault}
	if len(got) != len(want) {
		t.Fatalf("expected rate.source on every span, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d: expected rate.source %q, got %q", i, want[i], got[i])
		}
	}
}
