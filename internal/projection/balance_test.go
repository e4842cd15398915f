package projection_test

import (
	"testing"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"
)

func tx(accountID string, dir domain.Direction, amount float64, date string) domain.Transaction {
	return domain.Transaction{
		AccountID: accountID,
		Direction: dir,
		Amount:    amount,
		Date:      domain.MustParseDate(date),
		Origin:    domain.ManualOrigin(),
	}
}

func TestResolveOpeningBalance_ExplicitWins(t *testing.T) {
	acc := domain.CashAccount{
		ID: "acc-1",
		InitialByMonth: domain.OpeningBalances{
			domain.MustParseMonth("2025-01"): 1000,
			domain.MustParseMonth("2025-03"): 500,
		},
	}
	txs := []domain.Transaction{
		tx("acc-1", domain.DirectionIn, 900, "2025-01-15"),
		tx("acc-1", domain.DirectionOut, 40, "2025-02-03"),
		tx("acc-1", domain.DirectionIn, 75, "2025-03-20"),
	}

	got := projection.ResolveOpeningBalance(acc, projection.BuildLedger(acc.ID, txs), domain.MustParseMonth("2025-03"))
	if got != 500 {
		t.Errorf("expected 500, got %v", got)
	}
}

func TestResolveOpeningBalance_PropagatesFromAnchor(t *testing.T) {
	acc := domain.CashAccount{
		ID:             "acc-1",
		InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2025-01"): 1000},
	}
	txs := []domain.Transaction{tx("acc-1", domain.DirectionIn, 200, "2025-02-10")}

	got := projection.ResolveOpeningBalance(acc, projection.BuildLedger(acc.ID, txs), domain.MustParseMonth("2025-03"))
	if got != 1200 {
		t.Errorf("expected 1200, got %v", got)
	}
}

func TestResolveOpeningBalance_NoAnchor(t *testing.T) {
	acc := domain.CashAccount{
		ID:             "acc-1",
		InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2025-06"): 300},
	}
	txs := []domain.Transaction{tx("acc-1", domain.DirectionIn, 200, "2025-02-10")}

	got := projection.ResolveOpeningBalance(acc, projection.BuildLedger(acc.ID, txs), domain.MustParseMonth("2025-03"))
	if got != 0 {
		t.Errorf("expected 0 without an earlier anchor, got %v", got)
	}
}

func TestResolveOpeningBalance_AcrossYearBoundary(t *testing.T) {
	acc := domain.CashAccount{
		ID:             "acc-1",
		InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2024-11"): 100},
	}
	txs := []domain.Transaction{
		tx("acc-1", domain.DirectionIn, 50, "2024-11-02"),
		tx("acc-1", domain.DirectionOut, 30, "2024-12-24"),
		tx("acc-1", domain.DirectionIn, 10, "2025-01-05"),
	}

	got := projection.ResolveOpeningBalance(acc, projection.BuildLedger(acc.ID, txs), domain.MustParseMonth("2025-01"))
	if got != 120 {
		t.Errorf("expected 120, got %v", got)
	}
}

func TestBuildLedger_IgnoresOtherAccounts(t *testing.T) {
	txs := []domain.Transaction{
		tx("acc-1", domain.DirectionIn, 10, "2025-02-01"),
		tx("acc-2", domain.DirectionIn, 999, "2025-02-01"),
	}

	l := projection.BuildLedger("acc-1", txs)
	if got := projection.MonthDelta(l, domain.MustParseMonth("2025-02")); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestProjectAccount_EndToEnd(t *testing.T) {
	acc := domain.CashAccount{
		ID:             "acc-1",
		Name:           "Conta corrente",
		InitialByMonth: domain.OpeningBalances{domain.MustParseMonth("2025-01"): 1000},
	}
	txs := []domain.Transaction{
		tx("acc-1", domain.DirectionIn, 500, "2025-02-05"),
		tx("acc-1", domain.DirectionOut, 200, "2025-02-18"),
	}

	feb := projection.ProjectAccount(acc, txs, domain.MustParseMonth("2025-02"))
	if feb.OpeningBalance != 1000 {
		t.Errorf("expected opening 1000, got %v", feb.OpeningBalance)
	}
	if feb.MonthDelta != 300 {
		t.Errorf("expected delta 300, got %v", feb.MonthDelta)
	}
	if feb.ClosingBalance != 1300 {
		t.Errorf("expected closing 1300, got %v", feb.ClosingBalance)
	}
	if feb.ExplicitAnchor {
		t.Error("expected February to be derived")
	}

	mar := projection.ProjectAccount(acc, txs, domain.MustParseMonth("2025-03"))
	if mar.OpeningBalance != 1300 {
		t.Errorf("expected March opening 1300, got %v", mar.OpeningBalance)
	}
}

func TestProjectAccounts_KeepsInputOrder(t *testing.T) {
	accounts := []domain.CashAccount{{ID: "b"}, {ID: "a"}}

	got := projection.ProjectAccounts(accounts, nil, domain.MustParseMonth("2025-02"))
	if len(got) != 2 || got[0].AccountID != "b" || got[1].AccountID != "a" {
		t.Errorf("unexpected order: %+v", got)
	}
}
