// Package projection is the monthly projection and accrual engine.
// Every function is pure: inputs (including "today" and the reference
// rate) are explicit, nothing is cached and nothing is mutated.
package projection

import (
	"github.com/boddenberg/caixa-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Installment Amortizer
// ============================================================

var hundred = decimal.NewFromInt(100)

// Amortizable is anything that can be expressed as an installment plan.
// Debts and card purchases adapt their native fields through Plan().
type Amortizable interface {
	Plan() domain.InstallmentPlan
}

// toCents rounds an amount to whole cents.
func toCents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Mul(hundred).Round(0)
}

func fromCents(c decimal.Decimal) float64 {
	return c.Div(hundred).InexactFloat64()
}

// roundCents rounds a monetary value to two decimal places.
func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SplitInstallment divides total into count parts rounded to cents.
// The rounding difference is absorbed by the last installment.
func SplitInstallment(total float64, count int) float64 {
	if count < 1 {
		return 0
	}
	return decimal.NewFromFloat(total).Div(decimal.NewFromInt(int64(count))).Round(2).InexactFloat64()
}

func perInstallmentCents(plan domain.InstallmentPlan) decimal.Decimal {
	if plan.PerInstallment <= 0 {
		return toCents(SplitInstallment(plan.Total, plan.Count))
	}
	return toCents(plan.PerInstallment)
}

func installmentCents(plan domain.InstallmentPlan, i int) decimal.Decimal {
	if plan.Count < 1 || i < 0 || i >= plan.Count {
		return decimal.Zero
	}
	per := perInstallmentCents(plan)
	if i < plan.Count-1 {
		return per
	}
	remainder := toCents(plan.Total).Sub(per.Mul(decimal.NewFromInt(int64(plan.Count))))
	return per.Add(remainder)
}

// InstallmentAmount returns the value of installment i (0-based). The last
// installment absorbs the rounding remainder so the plan sums to its total.
func InstallmentAmount(plan domain.InstallmentPlan, i int) float64 {
	return fromCents(installmentCents(plan, i))
}

// Installments lists every installment of the plan.
func Installments(plan domain.InstallmentPlan) []float64 {
	if plan.Count < 1 {
		return nil
	}
	out := make([]float64, plan.Count)
	for i := range out {
		out[i] = InstallmentAmount(plan, i)
	}
	return out
}

// InstallmentIndex maps month to the 0-based installment due in it.
// The second result is false outside the plan's window.
func InstallmentIndex(plan domain.InstallmentPlan, month domain.Month) (int, bool) {
	idx := month.Index() - plan.First.Index()
	if idx < 0 || idx >= plan.Count {
		return idx, false
	}
	return idx, true
}

// DueAmount is what the plan asks for in month, never negative.
// Lump-sum plans have a single installment, so they are due only in their
// due month.
func DueAmount(plan domain.InstallmentPlan, month domain.Month) float64 {
	idx, ok := InstallmentIndex(plan, month)
	if !ok {
		return 0
	}
	c := installmentCents(plan, idx)
	if c.IsNegative() {
		return 0
	}
	return fromCents(c)
}

// RemainingAmount sums the installments left after the first paid ones.
func RemainingAmount(plan domain.InstallmentPlan, paid int) float64 {
	if paid < 0 {
		paid = 0
	}
	sum := decimal.Zero
	for i := paid; i < plan.Count; i++ {
		sum = sum.Add(installmentCents(plan, i))
	}
	if sum.IsNegative() {
		return 0
	}
	return fromCents(sum)
}
