package projection

import (
	"github.com/boddenberg/caixa-bfa-go/internal/domain"
)

// ============================================================
// Balance Propagator
// ============================================================

// Ledger holds one account's net transaction delta per month.
type Ledger map[domain.Month]float64

// BuildLedger folds the account's transactions into monthly deltas.
// Transactions of other accounts are ignored.
func BuildLedger(accountID string, txs []domain.Transaction) Ledger {
	l := make(Ledger)
	for _, t := range txs {
		if t.AccountID != accountID {
			continue
		}
		l[t.Date.Month()] += t.Signed()
	}
	return l
}

// MonthDelta is the net movement of the ledger's account within month.
func MonthDelta(l Ledger, month domain.Month) float64 {
	return roundCents(l[month])
}

// ResolveOpeningBalance returns the account's opening balance for target.
//
// An opening balance set explicitly for target wins. Otherwise the latest
// explicit month before target is the anchor, and its value is carried
// forward month by month, adding each month's delta. Without an anchor the
// account has no history and opens at zero.
func ResolveOpeningBalance(account domain.CashAccount, l Ledger, target domain.Month) float64 {
	if v, ok := account.InitialByMonth[target]; ok {
		return v
	}
	anchor, balance, ok := account.InitialByMonth.Anchor(target)
	if !ok {
		return 0
	}
	for m := anchor; m.Before(target); m = m.Next() {
		balance += l[m]
	}
	return roundCents(balance)
}

// ProjectAccount computes opening, delta and closing balance for month.
func ProjectAccount(account domain.CashAccount, txs []domain.Transaction, month domain.Month) domain.AccountMonth {
	return projectWithLedger(account, BuildLedger(account.ID, txs), month)
}

// ProjectAccounts projects every account for month, in input order.
func ProjectAccounts(accounts []domain.CashAccount, txs []domain.Transaction, month domain.Month) []domain.AccountMonth {
	byAccount := make(map[string][]domain.Transaction, len(accounts))
	for _, t := range txs {
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}

	out := make([]domain.AccountMonth, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, projectWithLedger(a, BuildLedger(a.ID, byAccount[a.ID]), month))
	}
	return out
}

func projectWithLedger(account domain.CashAccount, l Ledger, month domain.Month) domain.AccountMonth {
	_, explicit := account.InitialByMonth[month]
	opening := ResolveOpeningBalance(account, l, month)
	delta := MonthDelta(l, month)
	return domain.AccountMonth{
		AccountID:      account.ID,
		Name:           account.Name,
		Month:          month,
		OpeningBalance: opening,
		MonthDelta:     delta,
		ClosingBalance: roundCents(opening + delta),
		ExplicitAnchor: explicit,
	}
}
