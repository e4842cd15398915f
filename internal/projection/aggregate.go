package projection

import (
	"math"
	"sort"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
)

// ============================================================
// Monthly Aggregator
// ============================================================

type paymentKey struct {
	kind  domain.OriginKind
	id    string
	month domain.Month
}

// paymentsByTarget sums payment transactions by the debt or card and the
// month they settle. A refund (direction in) reduces the paid amount.
func paymentsByTarget(txs []domain.Transaction) map[paymentKey]float64 {
	out := make(map[paymentKey]float64)
	for _, t := range txs {
		switch t.Origin.Kind {
		case domain.OriginDebt:
			out[paymentKey{domain.OriginDebt, t.Origin.DebtID, t.Origin.Month}] -= t.Signed()
		case domain.OriginCard:
			out[paymentKey{domain.OriginCard, t.Origin.CardID, t.Origin.Month}] -= t.Signed()
		}
	}
	return out
}

// DueEntries lists what every debt and card purchase asks for in month,
// reconciled against the payments recorded for that same month.
//
// Debt payments are matched by debt. Card payments settle the card's
// invoice, so they are spread over that card's entries in a stable order.
// Purchase installments already counted in InstallmentsPaid are settled
// without a payment transaction.
func DueEntries(debts []domain.Debt, purchases []domain.CardPurchase, txs []domain.Transaction, month domain.Month) []domain.DueEntry {
	payments := paymentsByTarget(txs)
	entries := make([]domain.DueEntry, 0, len(debts)+len(purchases))

	for _, d := range debts {
		e := dueEntry(d.Plan(), month)
		paid := math.Max(0, payments[paymentKey{domain.OriginDebt, d.ID, month}])
		if e.DueThisMonth == 0 && paid == 0 {
			continue
		}
		e.Source = domain.DueFromDebt
		e.ID = d.ID
		e.Description = d.Description
		e.PaidThisMonth = roundCents(paid)
		e.Remaining = roundCents(math.Max(0, e.DueThisMonth-paid))
		entries = append(entries, e)
	}

	byCard := make(map[string][]domain.DueEntry)
	var cardOrder []string
	for _, p := range purchases {
		e := dueEntry(p.Plan(), month)
		if e.DueThisMonth == 0 {
			continue
		}
		e.Source = domain.DueFromPurchase
		e.ID = p.ID
		e.CardID = p.CardID
		e.Description = p.Description
		e.Remaining = e.DueThisMonth
		if e.Installment > 0 && e.Installment <= p.InstallmentsPaid {
			e.PaidThisMonth = e.DueThisMonth
			e.Remaining = 0
		}
		if _, seen := byCard[p.CardID]; !seen {
			cardOrder = append(cardOrder, p.CardID)
		}
		byCard[p.CardID] = append(byCard[p.CardID], e)
	}

	for _, cardID := range cardOrder {
		cardEntries := byCard[cardID]
		sort.SliceStable(cardEntries, func(i, j int) bool { return cardEntries[i].ID < cardEntries[j].ID })
		available := math.Max(0, payments[paymentKey{domain.OriginCard, cardID, month}])
		for i := range cardEntries {
			if available <= 0 || cardEntries[i].Remaining == 0 {
				continue
			}
			applied := math.Min(available, cardEntries[i].Remaining)
			cardEntries[i].PaidThisMonth = roundCents(cardEntries[i].PaidThisMonth + applied)
			cardEntries[i].Remaining = roundCents(cardEntries[i].Remaining - applied)
			available -= applied
		}
		entries = append(entries, cardEntries...)
	}

	return entries
}

func dueEntry(plan domain.InstallmentPlan, month domain.Month) domain.DueEntry {
	e := domain.DueEntry{Month: month, InstallmentCount: plan.Count}
	if idx, ok := InstallmentIndex(plan, month); ok {
		e.Installment = idx + 1
		e.DueThisMonth = DueAmount(plan, month)
	}
	return e
}

// MonthlyDues totals due entries. Count and PaidCount only consider entries
// with something due; paid amounts beyond an entry's due are not counted.
func MonthlyDues(month domain.Month, entries []domain.DueEntry) domain.MonthlyDues {
	out := domain.MonthlyDues{Month: month, Entries: entries}
	if out.Entries == nil {
		out.Entries = []domain.DueEntry{}
	}
	for _, e := range entries {
		out.TotalDue += e.DueThisMonth
		out.TotalPaid += math.Min(e.PaidThisMonth, e.DueThisMonth)
		out.Remaining += e.Remaining
		if e.DueThisMonth > 0 {
			out.Count++
			if e.Remaining == 0 {
				out.PaidCount++
			}
		}
	}
	out.TotalDue = roundCents(out.TotalDue)
	out.TotalPaid = roundCents(out.TotalPaid)
	out.Remaining = roundCents(out.Remaining)
	return out
}

// MonthlyTotalDue is the sum of what debts and card purchases ask for in month.
func MonthlyTotalDue(debts []domain.Debt, purchases []domain.CardPurchase, month domain.Month) float64 {
	var total float64
	for _, d := range debts {
		total += DueAmount(d.Plan(), month)
	}
	for _, p := range purchases {
		total += DueAmount(p.Plan(), month)
	}
	return roundCents(total)
}

// CardInvoices groups the month's purchase entries by card.
func CardInvoices(cards []domain.CreditCard, entries []domain.DueEntry, month domain.Month) []domain.CardInvoice {
	out := make([]domain.CardInvoice, 0, len(cards))
	for _, c := range cards {
		inv := domain.CardInvoice{
			CardID:   c.ID,
			CardName: c.Name,
			Month:    month,
			Entries:  []domain.DueEntry{},
		}
		if c.DueDay != nil {
			due := month.Day(*c.DueDay)
			inv.DueDate = &due
		}
		for _, e := range entries {
			if e.Source != domain.DueFromPurchase || e.CardID != c.ID {
				continue
			}
			inv.Entries = append(inv.Entries, e)
			inv.Total += e.DueThisMonth
			inv.Paid += e.PaidThisMonth
			inv.Remaining += e.Remaining
		}
		inv.Total = roundCents(inv.Total)
		inv.Paid = roundCents(inv.Paid)
		inv.Remaining = roundCents(inv.Remaining)
		out = append(out, inv)
	}
	return out
}

// CardLimitUsage is the part of the card's limit committed by installments
// not yet paid.
func CardLimitUsage(card domain.CreditCard, purchases []domain.CardPurchase) domain.CardLimitUsage {
	var used float64
	for _, p := range purchases {
		if p.CardID != card.ID {
			continue
		}
		used += RemainingAmount(p.Plan(), p.InstallmentsPaid)
	}
	out := domain.CardLimitUsage{CardID: card.ID, Limit: card.Limit, Used: roundCents(used)}
	if card.Limit != nil {
		available := roundCents(math.Max(0, *card.Limit-used))
		out.Available = &available
	}
	return out
}

// Forecast totals the incomes expected in month.
func Forecast(incomes []domain.ForecastIncome, month domain.Month) domain.ForecastSummary {
	out := domain.ForecastSummary{Month: month}
	for _, f := range incomes {
		if f.ForecastMonth() != month {
			continue
		}
		out.Count++
		out.Expected += f.Amount
		if f.Received {
			out.Received += f.Amount
		} else {
			out.Pending += f.Amount
		}
	}
	out.Expected = roundCents(out.Expected)
	out.Received = roundCents(out.Received)
	out.Pending = roundCents(out.Pending)
	return out
}

// FixedExpensesDue sums the fixed expenses recurring in month.
func FixedExpensesDue(expenses []domain.FixedExpense, month domain.Month) float64 {
	var total float64
	for _, e := range expenses {
		if e.ActiveIn(month) {
			total += e.Amount
		}
	}
	return roundCents(total)
}

// BuildReport composes every projection of the snapshot for month.
func BuildReport(s *domain.Snapshot, month domain.Month, today domain.Date, referenceRate float64) domain.MonthlyReport {
	r := domain.MonthlyReport{
		UserID:        s.UserID,
		Month:         month,
		Today:         today,
		ReferenceRate: referenceRate,
		Accounts:      ProjectAccounts(s.Accounts, s.Transactions, month),
		Pockets:       make([]domain.PocketYield, 0, len(s.Pockets)),
		CardUsage:     make([]domain.CardLimitUsage, 0, len(s.Cards)),
	}

	for _, a := range r.Accounts {
		r.TotalOpening += a.OpeningBalance
		r.TotalClosing += a.ClosingBalance
	}
	r.TotalOpening = roundCents(r.TotalOpening)
	r.TotalClosing = roundCents(r.TotalClosing)

	entries := DueEntries(s.Debts, s.Purchases, s.Transactions, month)
	r.Dues = MonthlyDues(month, entries)
	r.Invoices = CardInvoices(s.Cards, entries, month)
	for _, c := range s.Cards {
		r.CardUsage = append(r.CardUsage, CardLimitUsage(c, s.Purchases))
	}

	for _, p := range s.Pockets {
		y := PocketYield(p, referenceRate, today)
		r.Pockets = append(r.Pockets, y)
		r.PocketsLiquid += y.LiquidBalance
	}
	r.PocketsLiquid = roundCents(r.PocketsLiquid)

	r.Forecast = Forecast(s.Forecasts, month)
	r.FixedExpensesTotal = FixedExpensesDue(s.FixedExpenses, month)
	return r
}
