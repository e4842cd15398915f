package projection

import (
	"math"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
)

// ============================================================
// Yield Accrual Engine (CDI-indexed pockets)
// ============================================================

const (
	// DefaultCDIRate is the reference annual rate, in percent, used when no
	// provider rate is available.
	DefaultCDIRate = 10.75

	businessDaysPerYear = 252
	calendarDaysPerYear = 365
	iofWindowDays       = 30
)

// DailyRate is the business-day rate equivalent to referenceAnnual percent,
// scaled by the pocket's participation percentage.
func DailyRate(referenceAnnual, participationPct float64) float64 {
	daily := math.Pow(1+referenceAnnual/100, 1.0/businessDaysPerYear) - 1
	return daily * (participationPct / 100)
}

// BusinessDays approximates the trading days between two dates from the
// calendar span. Never negative.
func BusinessDays(from, to domain.Date) int {
	calendar := domain.DaysBetween(from, to)
	bd := int(math.Round(float64(calendar) * businessDaysPerYear / calendarDaysPerYear))
	if bd < 0 {
		return 0
	}
	return bd
}

// IOFRate decays linearly from 100% on day 0 to zero on day 30.
func IOFRate(daysHeld int) float64 {
	if daysHeld < 0 {
		daysHeld = 0
	}
	if daysHeld >= iofWindowDays {
		return 0
	}
	return math.Max(0, float64(iofWindowDays-daysHeld)/iofWindowDays)
}

// IncomeTaxRate is the regressive withholding rate for the holding period.
func IncomeTaxRate(daysHeld int) float64 {
	switch {
	case daysHeld <= 180:
		return 0.225
	case daysHeld <= 360:
		return 0.20
	case daysHeld <= 720:
		return 0.175
	default:
		return 0.15
	}
}

type accrual struct {
	days, businessDays   int
	gross, iof, tax, net float64
}

// accrue yields nothing for an undated contribution; its amount still counts
// as principal.
func accrue(c domain.Contribution, referenceAnnual, participationPct float64, today domain.Date) accrual {
	if c.Date.IsZero() {
		return accrual{}
	}
	days := domain.DaysBetween(c.Date, today)
	if days < 0 {
		days = 0
	}
	bd := BusinessDays(c.Date, today)

	gross := c.Amount * (math.Pow(1+DailyRate(referenceAnnual, participationPct), float64(bd)) - 1)
	iof := IOFRate(days) * gross
	tax := math.Max(0, gross-iof) * IncomeTaxRate(days)

	return accrual{
		days:         days,
		businessDays: bd,
		gross:        gross,
		iof:          iof,
		tax:          tax,
		net:          math.Max(0, gross-iof-tax),
	}
}

// ContributionYield computes the accrual of one contribution up to today.
func ContributionYield(c domain.Contribution, referenceAnnual, participationPct float64, today domain.Date) domain.ContributionYield {
	a := accrue(c, referenceAnnual, participationPct, today)
	return domain.ContributionYield{
		Date:        c.Date,
		Amount:      c.Amount,
		DaysHeld:    a.days,
		BusinessDay: a.businessDays,
		GrossYield:  roundCents(a.gross),
		IOF:         roundCents(a.iof),
		Tax:         roundCents(a.tax),
		NetYield:    roundCents(a.net),
	}
}

// PocketYield derives a pocket's live position. Each contribution accrues
// from its own date. Manual pockets report their stored balance unchanged.
func PocketYield(p domain.SavingsPocket, referenceAnnual float64, today domain.Date) domain.PocketYield {
	if p.Kind != domain.PocketCDI {
		out := domain.PocketYield{
			PocketID:      p.ID,
			Name:          p.Name,
			Kind:          p.Kind,
			Principal:     p.Balance,
			LiquidBalance: p.Balance,
		}
		out.TargetProgress = targetProgress(p.Target, out.LiquidBalance)
		return out
	}

	var principal, gross, iof, tax float64
	contributions := p.AllContributions()
	details := make([]domain.ContributionYield, 0, len(contributions))
	for _, c := range contributions {
		a := accrue(c, referenceAnnual, p.ParticipationPct, today)
		principal += c.Amount
		gross += a.gross
		iof += a.iof
		tax += a.tax
		details = append(details, ContributionYield(c, referenceAnnual, p.ParticipationPct, today))
	}
	net := math.Max(0, gross-iof-tax)

	out := domain.PocketYield{
		PocketID:        p.ID,
		Name:            p.Name,
		Kind:            p.Kind,
		Principal:       roundCents(principal),
		GrossYield:      roundCents(gross),
		IOF:             roundCents(iof),
		Tax:             roundCents(tax),
		NetYield:        roundCents(net),
		LiquidBalance:   roundCents(principal + net),
		MonthlyEstimate: MonthlyYieldEstimate(principal, p.ParticipationPct, referenceAnnual),
		Contributions:   details,
	}
	out.TargetProgress = targetProgress(p.Target, out.LiquidBalance)
	return out
}

// MonthlyYieldEstimate is a linear monthly figure for dashboards, distinct
// from the compounded accrual.
func MonthlyYieldEstimate(principal, participationPct, referenceAnnual float64) float64 {
	return roundCents(principal * (participationPct / 100 * referenceAnnual) / 12 / 100)
}

func targetProgress(target *float64, balance float64) *float64 {
	if target == nil || *target <= 0 {
		return nil
	}
	p := balance / *target
	return &p
}
