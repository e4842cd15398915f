package projection_test

import (
	"testing"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"
)

func payment(origin domain.Origin, amount float64, date string) domain.Transaction {
	return domain.Transaction{
		AccountID: "acc-1",
		Direction: domain.DirectionOut,
		Amount:    amount,
		Date:      domain.MustParseDate(date),
		Origin:    origin,
	}
}

func sampleDebts() []domain.Debt {
	return []domain.Debt{
		{
			ID:                "car",
			Description:       "Financiamento",
			TotalAmount:       1200,
			InstallmentCount:  12,
			InstallmentAmount: 100,
			DueDate:           domain.MustParseDate("2025-01-10"),
			Kind:              domain.DebtInstallment,
		},
		{
			ID:          "ipva",
			Description: "IPVA",
			TotalAmount: 300,
			DueDate:     domain.MustParseDate("2025-03-15"),
			Kind:        domain.DebtLumpSum,
		},
	}
}

func samplePurchases() []domain.CardPurchase {
	return []domain.CardPurchase{
		{ID: "p-a", CardID: "nubank", Description: "Notebook", TotalAmount: 100, InstallmentCount: 3, FirstMonth: domain.MustParseMonth("2025-02")},
		{ID: "p-b", CardID: "nubank", Description: "Mercado", TotalAmount: 80, InstallmentCount: 1, FirstMonth: domain.MustParseMonth("2025-03")},
		{ID: "p-c", CardID: "inter", Description: "Passagem", TotalAmount: 600, InstallmentCount: 6, InstallmentAmount: 100, FirstMonth: domain.MustParseMonth("2025-01"), InstallmentsPaid: 3},
	}
}

func findEntry(t *testing.T, entries []domain.DueEntry, id string) domain.DueEntry {
	t.Helper()
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entry %s not found", id)
	return domain.DueEntry{}
}

func TestMonthlyTotalDue(t *testing.T) {
	march := domain.MustParseMonth("2025-03")

	// car 100 + ipva 300 + notebook 33.33 + mercado 80 + passagem 100
	got := projection.MonthlyTotalDue(sampleDebts(), samplePurchases(), march)
	if got != 613.33 {
		t.Errorf("expected 613.33, got %v", got)
	}

	dues := projection.MonthlyDues(march, projection.DueEntries(sampleDebts(), samplePurchases(), nil, march))
	if dues.TotalDue != got {
		t.Errorf("expected dues total %v, got %v", got, dues.TotalDue)
	}
	if dues.Count != 5 {
		t.Errorf("expected 5 entries due, got %d", dues.Count)
	}
}

func TestDueEntries_DebtPaymentOnlySettlesItsMonth(t *testing.T) {
	feb := domain.MustParseMonth("2025-02")
	mar := domain.MustParseMonth("2025-03")
	txs := []domain.Transaction{payment(domain.DebtPaymentOrigin("car", feb), 100, "2025-02-09")}

	febDues := projection.MonthlyDues(feb, projection.DueEntries(sampleDebts(), nil, txs, feb))
	car := findEntry(t, febDues.Entries, "car")
	if car.PaidThisMonth != 100 || car.Remaining != 0 {
		t.Errorf("expected February installment paid, got %+v", car)
	}
	if car.Installment != 2 {
		t.Errorf("expected installment 2, got %d", car.Installment)
	}
	if febDues.PaidCount != 1 {
		t.Errorf("expected 1 paid entry, got %d", febDues.PaidCount)
	}

	marEntries := projection.DueEntries(sampleDebts(), nil, txs, mar)
	car = findEntry(t, marEntries, "car")
	if car.PaidThisMonth != 0 || car.Remaining != 100 {
		t.Errorf("expected March installment open, got %+v", car)
	}
}

func TestDueEntries_PartialAndOverpayment(t *testing.T) {
	feb := domain.MustParseMonth("2025-02")
	txs := []domain.Transaction{
		payment(domain.DebtPaymentOrigin("car", feb), 60, "2025-02-09"),
		payment(domain.DebtPaymentOrigin("car", feb), 70, "2025-02-20"),
	}

	dues := projection.MonthlyDues(feb, projection.DueEntries(sampleDebts(), nil, txs, feb))
	if dues.TotalPaid != 100 {
		t.Errorf("expected paid capped at the due amount, got %v", dues.TotalPaid)
	}
	if dues.Remaining != 0 {
		t.Errorf("expected nothing remaining, got %v", dues.Remaining)
	}
}

func TestDueEntries_CardPaymentAllocatedAcrossPurchases(t *testing.T) {
	mar := domain.MustParseMonth("2025-03")
	txs := []domain.Transaction{payment(domain.CardPaymentOrigin("nubank", mar), 50, "2025-03-08")}

	entries := projection.DueEntries(nil, samplePurchases(), txs, mar)

	notebook := findEntry(t, entries, "p-a")
	if notebook.PaidThisMonth != 33.33 || notebook.Remaining != 0 {
		t.Errorf("expected notebook settled first, got %+v", notebook)
	}
	mercado := findEntry(t, entries, "p-b")
	if mercado.PaidThisMonth != 16.67 || mercado.Remaining != 63.33 {
		t.Errorf("expected the rest applied to mercado, got %+v", mercado)
	}
}

func TestDueEntries_InstallmentsPaidCounter(t *testing.T) {
	entries := projection.DueEntries(nil, samplePurchases(), nil, domain.MustParseMonth("2025-03"))
	passagem := findEntry(t, entries, "p-c")
	if passagem.Remaining != 0 || passagem.PaidThisMonth != 100 {
		t.Errorf("expected third installment already paid, got %+v", passagem)
	}

	entries = projection.DueEntries(nil, samplePurchases(), nil, domain.MustParseMonth("2025-04"))
	passagem = findEntry(t, entries, "p-c")
	if passagem.Remaining != 100 {
		t.Errorf("expected fourth installment open, got %+v", passagem)
	}
}

func TestDueEntries_OutsideWindowOmitted(t *testing.T) {
	entries := projection.DueEntries(sampleDebts(), samplePurchases(), nil, domain.MustParseMonth("2024-12"))
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
}

func TestCardInvoices(t *testing.T) {
	mar := domain.MustParseMonth("2025-03")
	dueDay := 31
	cards := []domain.CreditCard{
		{ID: "nubank", Name: "Nubank", DueDay: &dueDay},
		{ID: "inter", Name: "Inter"},
	}
	txs := []domain.Transaction{payment(domain.CardPaymentOrigin("nubank", mar), 50, "2025-03-08")}

	invoices := projection.CardInvoices(cards, projection.DueEntries(nil, samplePurchases(), txs, mar), mar)
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}

	nu := invoices[0]
	if nu.Total != 113.33 || nu.Paid != 50 || nu.Remaining != 63.33 {
		t.Errorf("unexpected nubank invoice: %+v", nu)
	}
	if nu.DueDate == nil || nu.DueDate.String() != "2025-03-31" {
		t.Errorf("expected due date 2025-03-31, got %v", nu.DueDate)
	}
	if invoices[1].DueDate != nil {
		t.Error("expected no due date without a due day")
	}
}

func TestCardLimitUsage(t *testing.T) {
	limit := 1000.0
	card := domain.CreditCard{ID: "inter", Limit: &limit}

	got := projection.CardLimitUsage(card, samplePurchases())
	if got.Used != 300 {
		t.Errorf("expected 300 used, got %v", got.Used)
	}
	if got.Available == nil || *got.Available != 700 {
		t.Errorf("expected 700 available, got %v", got.Available)
	}
}

func TestForecast(t *testing.T) {
	mar := domain.MustParseMonth("2025-03")
	incomes := []domain.ForecastIncome{
		{ID: "f1", Amount: 5000, Received: true, DueDate: domain.MustParseDate("2025-03-05")},
		{ID: "f2", Amount: 800, DueDate: domain.MustParseDate("2025-03-20")},
		{ID: "f3", Amount: 999, DueDate: domain.MustParseDate("2025-04-05")},
		{ID: "f4", Amount: 200, DueDate: domain.MustParseDate("2025-02-27"), Period: &mar},
	}

	got := projection.Forecast(incomes, mar)
	if got.Count != 3 || got.Expected != 6000 || got.Received != 5000 || got.Pending != 1000 {
		t.Errorf("unexpected forecast: %+v", got)
	}
}

func TestFixedExpensesDue(t *testing.T) {
	end := domain.MustParseMonth("2025-02")
	expenses := []domain.FixedExpense{
		{ID: "rent", Amount: 1500, StartMonth: domain.MustParseMonth("2024-01")},
		{ID: "gym", Amount: 99.9, StartMonth: domain.MustParseMonth("2024-06"), EndMonth: &end},
		{ID: "school", Amount: 700, StartMonth: domain.MustParseMonth("2025-04")},
	}

	if got := projection.FixedExpensesDue(expenses, domain.MustParseMonth("2025-03")); got != 1500 {
		t.Errorf("expected 1500, got %v", got)
	}
	if got := projection.FixedExpensesDue(expenses, domain.MustParseMonth("2025-02")); got != 1599.9 {
		t.Errorf("expected 1599.9, got %v", got)
	}
}

func TestBuildReport(t *testing.T) {
	mar := domain.MustParseMonth("2025-03")
	today := domain.MustParseDate("2025-03-15")
	s := &domain.Snapshot{
		UserID: "user-1",
		Accounts: []domain.CashAccount{{
			ID:             "acc-1",
			InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2025-01"): 1000},
		}},
		Transactions: []domain.Transaction{
			tx("acc-1", domain.DirectionIn, 500, "2025-02-05"),
			tx("acc-1", domain.DirectionOut, 200, "2025-02-18"),
			payment(domain.DebtPaymentOrigin("ipva", mar), 300, "2025-03-10"),
		},
		Debts:     sampleDebts(),
		Purchases: samplePurchases(),
		Pockets:   []domain.SavingsPocket{{ID: "reserva", Kind: domain.PocketManual, Balance: 250}},
	}

	r := projection.BuildReport(s, mar, today, projection.DefaultCDIRate)
	if r.TotalOpening != 1300 || r.TotalClosing != 1000 {
		t.Errorf("expected opening 1300 and closing 1000, got %v / %v", r.TotalOpening, r.TotalClosing)
	}
	if r.Dues.TotalDue != 613.33 || r.Dues.TotalPaid != 400 {
		t.Errorf("unexpected dues: %+v", r.Dues)
	}
	if r.PocketsLiquid != 250 {
		t.Errorf("expected pockets liquid 250, got %v", r.PocketsLiquid)
	}
	if r.ReferenceRate != projection.DefaultCDIRate || r.Today != today {
		t.Error("expected report to carry its inputs")
	}
}
