package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/cache"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.uber.org/zap"
)

func reminderSnapshot() *domain.Snapshot {
	march := domain.MustParseMonth("2025-03")
	day16, day25 := 16, 25
	return &domain.Snapshot{
		UserID: "u1",
		Debts: []domain.Debt{
			{ID: "due-soon", Description: "loan", TotalAmount: 600, InstallmentCount: 3, InstallmentAmount: 200,
				DueDate: domain.MustParseDate("2025-02-17"), Kind: domain.DebtInstallment},
			{ID: "overdue", Description: "old", TotalAmount: 300, InstallmentCount: 3, InstallmentAmount: 100,
				DueDate: domain.MustParseDate("2025-02-10"), Kind: domain.DebtInstallment},
			{ID: "paid", Description: "paid", TotalAmount: 300, InstallmentCount: 3, InstallmentAmount: 100,
				DueDate: domain.MustParseDate("2025-02-16"), Kind: domain.DebtInstallment},
		},
		Transactions: []domain.Transaction{
			{ID: "t1", AccountID: "a1", Direction: domain.DirectionOut, Amount: 100,
				Date: domain.MustParseDate("2025-03-01"), Origin: domain.DebtPaymentOrigin("paid", march)},
		},
		Cards: []domain.CreditCard{
			{ID: "soon", Name: "Visa", DueDay: &day16},
			{ID: "later", Name: "Master", DueDay: &day25},
			{ID: "nodue", Name: "Elo"},
		},
		Purchases: []domain.CardPurchase{
			{ID: "p-soon", CardID: "soon", Description: "tv", TotalAmount: 300, InstallmentCount: 3,
				InstallmentAmount: 100, FirstMonth: march},
			{ID: "p-later", CardID: "later", Description: "sofa", TotalAmount: 500, InstallmentCount: 1,
				InstallmentAmount: 500, FirstMonth: march},
			{ID: "p-nodue", CardID: "nodue", Description: "misc", TotalAmount: 50, InstallmentCount: 1,
				InstallmentAmount: 50, FirstMonth: march},
		},
	}
}

func TestDueReminders_Horizon(t *testing.T) {
	got := service.DueReminders(reminderSnapshot(), domain.MustParseDate("2025-03-15"), 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 reminders, got %d: %+v", len(got), got)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].EntityID < got[j].EntityID })

	if got[0].EntityID != "due-soon" || got[0].DueDate.String() != "2025-03-17" || got[0].Amount != 200 {
		t.Errorf("unexpected debt reminder %+v", got[0])
	}
	if got[1].EntityID != "p-soon" || got[1].Source != domain.DueFromPurchase || got[1].DueDate.String() != "2025-03-16" {
		t.Errorf("unexpected purchase reminder %+v", got[1])
	}
	for _, r := range got {
		if r.ID == "" || r.UserID != "u1" || r.Month.String() != "2025-03" {
			t.Errorf("incomplete reminder %+v", r)
		}
	}
}

func TestDueReminders_CrossesMonth(t *testing.T) {
	snap := &domain.Snapshot{
		UserID: "u1",
		Debts: []domain.Debt{{
			ID: "d1", TotalAmount: 300, InstallmentCount: 3, InstallmentAmount: 100,
			DueDate: domain.MustParseDate("2025-03-02"), Kind: domain.DebtInstallment,
		}},
	}
	got := service.DueReminders(snap, domain.MustParseDate("2025-03-30"), 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 reminder, got %+v", got)
	}
	if got[0].Month.String() != "2025-04" || got[0].DueDate.String() != "2025-04-02" {
		t.Errorf("expected April installment due 2025-04-02, got %+v", got[0])
	}
}

func newReminderService(store *mockStore, pub *mockPublisher) (*service.DueReminderService, *observability.Metrics) {
	return newReminderServiceN(store, pub, 2)
}

func newReminderServiceN(store *mockStore, pub *mockPublisher, concurrency int) (*service.DueReminderService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	projections := service.NewProjectionService(store, nil, cache.New[float64](time.Minute), 10.75, metrics, zap.NewNop()).
		WithClock(func() time.Time { return frozenNow })
	return service.NewDueReminderService(store, projections, pub, concurrency, 3, metrics, zap.NewNop()), metrics
}

func TestDueReminderService_Run(t *testing.T) {
	store := newMockStore(reminderSnapshot(), &domain.Snapshot{UserID: "u2"})
	pub := &mockPublisher{}
	svc, metrics := newReminderService(store, pub)

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Users != 2 || run.Published != 2 || run.Failed != 0 {
		t.Errorf("unexpected run %+v", run)
	}
	if len(pub.published) != 2 {
		t.Errorf("expected 2 published reminders, got %d", len(pub.published))
	}
	if m := metrics.GetEngineSnapshot(); m.Reminders != 2 {
		t.Errorf("expected reminders counter 2, got %d", m.Reminders)
	}
}

func TestDueReminderService_PublishError(t *testing.T) {
	store := newMockStore(reminderSnapshot())
	pub := &mockPublisher{err: errors.New("broker down")}
	svc, _ := newReminderService(store, pub)

	run, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if run.Published != 0 || run.Failed != 2 {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestDueReminderService_ListUsersError(t *testing.T) {
	store := newMockStore()
	store.usersErr = errors.New("db down")
	svc, _ := newReminderService(store, &mockPublisher{})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// TestDueReminderService_CancelledMidRun stops a run while a worker is still
// publishing. Run it with -race: the failed Acquire and the worker both
// record errors.
func TestDueReminderService_CancelledMidRun(t *testing.T) {
	snaps := make([]*domain.Snapshot, 5)
	for i := range snaps {
		s := reminderSnapshot()
		s.UserID = fmt.Sprintf("u%d", i)
		snaps[i] = s
	}
	store := newMockStore(snaps...)
	pub := &mockPublisher{err: errors.New("broker down"), delay: 30 * time.Millisecond}
	svc, _ := newReminderServiceN(store, pub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	run, err := svc.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in joined error, got %v", err)
	}
	if run == nil {
		t.Fatal("expected partial run")
	}
	if run.Users != 5 || run.Published != 0 {
		t.Errorf("unexpected run %+v", run)
	}
	if run.Failed == 0 {
		t.Errorf("expected the in-flight user to record failures, got %+v", run)
	}
}
