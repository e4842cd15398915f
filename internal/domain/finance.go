package domain

// ============================================================
// Cash accounts ("caixas") & transactions
// ============================================================

// AccountKind classifies a cash account.
type AccountKind string

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountWallet     AccountKind = "wallet"
	AccountInvestment AccountKind = "investment"
)

// OpeningBalances holds explicitly-set opening balances keyed by month.
// It is sparse: a month is present only when the user edited it.
type OpeningBalances map[Month]float64

// Anchor returns the latest explicitly-set month at or before target.
// ok is false when no such month exists.
func (b OpeningBalances) Anchor(target Month) (month Month, value float64, ok bool) {
	for m, v := range b {
		if m.After(target) {
			continue
		}
		if !ok || m.After(month) {
			month, value, ok = m, v, true
		}
	}
	return month, value, ok
}

// CashAccount is a named money container.
type CashAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           AccountKind     `json:"kind"`
	Balance        float64         `json:"balance"` // legacy running total, superseded by InitialByMonth
	InitialByMonth OpeningBalances `json:"initial_by_month,omitempty"`
}

// Direction is the flow of a transaction relative to its account.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// OriginKind tells where a transaction came from.
type OriginKind string

const (
	OriginManual OriginKind = "manual"
	OriginCard   OriginKind = "card" // payment of a card invoice
	OriginDebt   OriginKind = "debt" // payment of a debt installment
)

// Origin tags a transaction with its provenance. CardID or DebtID is set
// according to Kind, and Month is the period the payment settles.
type Origin struct {
	Kind   OriginKind `json:"kind"`
	CardID string     `json:"card_id,omitempty"`
	DebtID string     `json:"debt_id,omitempty"`
	Month  Month      `json:"month,omitempty"`
}

// ManualOrigin is the origin of user-entered transactions.
func ManualOrigin() Origin { return Origin{Kind: OriginManual} }

// CardPaymentOrigin tags a payment of a card's invoice for month.
func CardPaymentOrigin(cardID string, month Month) Origin {
	return Origin{Kind: OriginCard, CardID: cardID, Month: month}
}

// DebtPaymentOrigin tags a payment of a debt's installment due in month.
func DebtPaymentOrigin(debtID string, month Month) Origin {
	return Origin{Kind: OriginDebt, DebtID: debtID, Month: month}
}

// Transaction is a single movement on a cash account.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Direction   Direction `json:"direction"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Date        Date      `json:"date"`
	Time        string    `json:"time,omitempty"` // HH:MM
	Origin      Origin    `json:"origin"`
}

// Signed returns the amount with the sign implied by the direction.
func (t Transaction) Signed() float64 {
	if t.Direction == DirectionIn {
		return t.Amount
	}
	return -t.Amount
}

// ============================================================
// Debts, credit cards & card purchases
// ============================================================

// DebtKind distinguishes installment debts from one-off bills.
type DebtKind string

const (
	DebtInstallment DebtKind = "installment"
	DebtLumpSum     DebtKind = "lump_sum"
)

// Debt is money owed, either split in installments or due at once.
type Debt struct {
	ID                string   `json:"id"`
	Description       string   `json:"description"`
	TotalAmount       float64  `json:"total_amount"`
	AmountPaid        float64  `json:"amount_paid"`
	InstallmentCount  int      `json:"installment_count"`
	InstallmentAmount float64  `json:"installment_amount"`
	DueDate           Date     `json:"due_date"`
	Kind              DebtKind `json:"kind"`
	Period            *Month   `json:"period,omitempty"`
}

// FirstDueMonth is the explicit period tag when present, else the due date's month.
func (d Debt) FirstDueMonth() Month {
	if d.Period != nil && !d.Period.IsZero() {
		return *d.Period
	}
	return d.DueDate.Month()
}

// Plan adapts the debt to the shape consumed by the amortizer.
func (d Debt) Plan() InstallmentPlan {
	count := d.InstallmentCount
	per := d.InstallmentAmount
	if d.Kind == DebtLumpSum {
		count = 1
		per = d.TotalAmount
	}
	return InstallmentPlan{
		Total:          d.TotalAmount,
		PerInstallment: per,
		Count:          count,
		First:          d.FirstDueMonth(),
	}
}

// CreditCard is a card whose purchases are billed monthly.
type CreditCard struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	DueDay *int     `json:"due_day,omitempty"`
	Limit  *float64 `json:"limit,omitempty"`
}

// CardPurchase is a purchase billed on a card, possibly in installments.
type CardPurchase struct {
	ID                string  `json:"id"`
	CardID            string  `json:"card_id"`
	Description       string  `json:"description"`
	TotalAmount       float64 `json:"total_amount"`
	InstallmentCount  int     `json:"installment_count"`
	InstallmentAmount float64 `json:"installment_amount"`
	FirstMonth        Month   `json:"first_month"`
	PurchaseDate      Date    `json:"purchase_date"`
	InstallmentsPaid  int     `json:"installments_paid"`
}

// Plan adapts the purchase to the shape consumed by the amortizer.
func (p CardPurchase) Plan() InstallmentPlan {
	return InstallmentPlan{
		Total:          p.TotalAmount,
		PerInstallment: p.InstallmentAmount,
		Count:          p.InstallmentCount,
		First:          p.FirstMonth,
	}
}

// InstallmentPlan is the debt-like shape shared by debts and card purchases.
type InstallmentPlan struct {
	Total          float64
	PerInstallment float64
	Count          int
	First          Month
}

// ============================================================
// Savings pockets ("cofrinhos")
// ============================================================

// PocketKind distinguishes CDI-indexed pockets from manually kept ones.
type PocketKind string

const (
	PocketCDI    PocketKind = "cdi"
	PocketManual PocketKind = "manual"
)

// Contribution is money put into a pocket on a given date.
type Contribution struct {
	Date   Date    `json:"date"`
	Amount float64 `json:"amount"`
}

// SavingsPocket is a sub-account with optional CDI-indexed yield.
// For CDI pockets Balance is not authoritative: the liquid balance is
// always derived from the contributions.
type SavingsPocket struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Kind                PocketKind     `json:"kind"`
	Balance             float64        `json:"balance"`
	Target              *float64       `json:"target,omitempty"`
	ParticipationPct    float64        `json:"participation_pct"` // percent of the CDI rate
	CreatedAt           Date           `json:"created_at"`
	InitialContribution Contribution   `json:"initial_contribution"`
	Contributions       []Contribution `json:"contributions,omitempty"`
}

// AllContributions returns the initial contribution followed by the additional ones.
func (p SavingsPocket) AllContributions() []Contribution {
	out := make([]Contribution, 0, len(p.Contributions)+1)
	out = append(out, p.InitialContribution)
	out = append(out, p.Contributions...)
	return out
}

// Principal is the sum of every contribution.
func (p SavingsPocket) Principal() float64 {
	var total float64
	for _, c := range p.AllContributions() {
		total += c.Amount
	}
	return total
}

// ============================================================
// Forecast incomes & fixed expenses
// ============================================================

// ForecastIncome is money expected to arrive.
type ForecastIncome struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Received    bool    `json:"received"`
	DueDate     Date    `json:"due_date"`
	Period      *Month  `json:"period,omitempty"`
}

// ForecastMonth is the explicit period tag when present, else the due date's month.
func (f ForecastIncome) ForecastMonth() Month {
	if f.Period != nil && !f.Period.IsZero() {
		return *f.Period
	}
	return f.DueDate.Month()
}

// FixedExpense is a recurring monthly expense (rent, subscriptions).
type FixedExpense struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	DueDay      int     `json:"due_day"`
	StartMonth  Month   `json:"start_month"`
	EndMonth    *Month  `json:"end_month,omitempty"`
}

// ActiveIn reports whether the expense recurs in month.
func (e FixedExpense) ActiveIn(month Month) bool {
	if month.Before(e.StartMonth) {
		return false
	}
	if e.EndMonth != nil && !e.EndMonth.IsZero() && month.After(*e.EndMonth) {
		return false
	}
	return true
}

// ============================================================
// Snapshot
// ============================================================

// Snapshot is every entity of one user, read at a point in time.
type Snapshot struct {
	UserID        string           `json:"user_id"`
	Accounts      []CashAccount    `json:"accounts"`
	Transactions  []Transaction    `json:"transactions"`
	Debts         []Debt           `json:"debts"`
	Cards         []CreditCard     `json:"cards"`
	Purchases     []CardPurchase   `json:"purchases"`
	Pockets       []SavingsPocket  `json:"pockets"`
	Forecasts     []ForecastIncome `json:"forecasts"`
	FixedExpenses []FixedExpense   `json:"fixed_expenses"`
}
