package domain

// ============================================================
// Projection outputs (derived, never persisted)
// ============================================================

// AccountMonth is an account's position within one month.
type AccountMonth struct {
	AccountID      string  `json:"accountId"`
	Name           string  `json:"name,omitempty"`
	Month          Month   `json:"month"`
	OpeningBalance float64 `json:"openingBalance"`
	MonthDelta     float64 `json:"monthDelta"`
	ClosingBalance float64 `json:"closingBalance"`
	ExplicitAnchor bool    `json:"explicitAnchor"` // opening balance was set by the user for this month
}

// DueSource tells which kind of entity produced a due entry.
type DueSource string

const (
	DueFromDebt     DueSource = "debt"
	DueFromPurchase DueSource = "card_purchase"
)

// DueEntry is what one debt or card purchase asks for in a month.
type DueEntry struct {
	Source           DueSource `json:"source"`
	ID               string    `json:"id"`
	CardID           string    `json:"cardId,omitempty"`
	Description      string    `json:"description"`
	Month            Month     `json:"month"`
	Installment      int       `json:"installment"` // 1-based; 0 when nothing is due
	InstallmentCount int       `json:"installmentCount"`
	DueThisMonth     float64   `json:"dueThisMonth"`
	PaidThisMonth    float64   `json:"paidThisMonth"`
	Remaining        float64   `json:"remaining"`
}

// MonthlyDues aggregates due entries for one month.
type MonthlyDues struct {
	Month     Month      `json:"month"`
	TotalDue  float64    `json:"totalDue"`
	Count     int        `json:"count"`
	TotalPaid float64    `json:"totalPaid"`
	Remaining float64    `json:"remaining"`
	PaidCount int        `json:"paidCount"`
	Entries   []DueEntry `json:"entries"`
}

// ContributionYield is the accrual of a single contribution up to "today".
type ContributionYield struct {
	Date        Date    `json:"date"`
	Amount      float64 `json:"amount"`
	DaysHeld    int     `json:"daysHeld"`
	BusinessDay int     `json:"businessDays"`
	GrossYield  float64 `json:"grossYield"`
	IOF         float64 `json:"iof"`
	Tax         float64 `json:"tax"`
	NetYield    float64 `json:"netYield"`
}

// PocketYield is the live, tax-adjusted position of a savings pocket.
type PocketYield struct {
	PocketID        string              `json:"pocketId"`
	Name            string              `json:"name,omitempty"`
	Kind            PocketKind          `json:"kind"`
	Principal       float64             `json:"principal"`
	GrossYield      float64             `json:"grossYield"`
	IOF             float64             `json:"iof"`
	Tax             float64             `json:"tax"`
	NetYield        float64             `json:"netYield"`
	LiquidBalance   float64             `json:"liquidBalance"`
	MonthlyEstimate float64             `json:"monthlyEstimate"`
	TargetProgress  *float64            `json:"targetProgress,omitempty"` // liquid balance / target, 0..1+
	Contributions   []ContributionYield `json:"contributions,omitempty"`
}

// CardInvoice is the bill of one card for one month.
type CardInvoice struct {
	CardID    string     `json:"cardId"`
	CardName  string     `json:"cardName"`
	Month     Month      `json:"month"`
	DueDate   *Date      `json:"dueDate,omitempty"`
	Total     float64    `json:"total"`
	Paid      float64    `json:"paid"`
	Remaining float64    `json:"remaining"`
	Entries   []DueEntry `json:"entries"`
}

// CardLimitUsage is how much of a card's limit is committed by unpaid installments.
type CardLimitUsage struct {
	CardID    string   `json:"cardId"`
	Limit     *float64 `json:"limit,omitempty"`
	Used      float64  `json:"used"`
	Available *float64 `json:"available,omitempty"`
}

// ForecastSummary totals the incomes expected for a month.
type ForecastSummary struct {
	Month    Month   `json:"month"`
	Expected float64 `json:"expected"`
	Received float64 `json:"received"`
	Pending  float64 `json:"pending"`
	Count    int     `json:"count"`
}

// MonthlyReport is the dashboard view of one month.
type MonthlyReport struct {
	UserID             string           `json:"userId"`
	Month              Month            `json:"month"`
	Today              Date             `json:"today"`
	ReferenceRate      float64          `json:"referenceRate"`
	Accounts           []AccountMonth   `json:"accounts"`
	TotalOpening       float64          `json:"totalOpening"`
	TotalClosing       float64          `json:"totalClosing"`
	Dues               MonthlyDues      `json:"dues"`
	Invoices           []CardInvoice    `json:"invoices"`
	CardUsage          []CardLimitUsage `json:"cardUsage"`
	Pockets            []PocketYield    `json:"pockets"`
	PocketsLiquid      float64          `json:"pocketsLiquid"`
	Forecast           ForecastSummary  `json:"forecast"`
	FixedExpensesTotal float64          `json:"fixedExpensesTotal"`
}
