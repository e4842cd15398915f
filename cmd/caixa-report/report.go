package main

import (
	"fmt"
	"io"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"
	"golang.org/x/text/message"
)

func brl(p *message.Printer, v float64) string {
	return p.Sprintf("R$ %.2f", v)
}

func fmtLine(w io.Writer, p *message.Printer, descr string, val float64) {
	const formatStr = "  %-44s %16s\n"
	fmt.Fprintf(w, formatStr, descr, brl(p, val))
}

func reportCmd(w io.Writer, p *message.Printer, r domain.MonthlyReport) {
	fmt.Fprintf(w, "RELATÓRIO %s (hoje %s, CDI %s%%)\n\n", r.Month, r.Today, p.Sprintf("%.2f", r.ReferenceRate))

	fmt.Fprintln(w, "CONTAS")
	for _, a := range r.Accounts {
		fmt.Fprintf(w, "  %-28s %16s %16s %16s\n", a.Name,
			brl(p, a.OpeningBalance), brl(p, a.MonthDelta), brl(p, a.ClosingBalance))
	}
	fmtLine(w, p, "Saldo inicial", r.TotalOpening)
	fmtLine(w, p, "Saldo final", r.TotalClosing)

	fmt.Fprintln(w, "\nCOMPROMISSOS")
	fmtLine(w, p, "Total do mês", r.Dues.TotalDue)
	fmtLine(w, p, "Pago", r.Dues.TotalPaid)
	fmtLine(w, p, "A pagar", r.Dues.Remaining)
	fmtLine(w, p, "Despesas fixas", r.FixedExpensesTotal)

	if len(r.Invoices) > 0 {
		fmt.Fprintln(w, "\nFATURAS")
		for _, inv := range r.Invoices {
			fmtLine(w, p, inv.CardName, inv.Total)
		}
	}

	fmt.Fprintln(w, "\nRECEITAS PREVISTAS")
	fmtLine(w, p, "Esperado", r.Forecast.Expected)
	fmtLine(w, p, "Recebido", r.Forecast.Received)
	fmtLine(w, p, "Pendente", r.Forecast.Pending)

	fmt.Fprintln(w, "\nCAIXINHAS")
	fmtLine(w, p, "Saldo líquido", r.PocketsLiquid)
}

func duesCmd(w io.Writer, p *message.Printer, dues domain.MonthlyDues) {
	fmt.Fprintf(w, "COMPROMISSOS %s\n", dues.Month)
	for _, e := range dues.Entries {
		if e.DueThisMonth == 0 {
			continue
		}
		descr := fmt.Sprintf("%s (%d/%d)", e.Description, e.Installment, e.InstallmentCount)
		fmt.Fprintf(w, "  %-44s %16s %16s\n", descr, brl(p, e.DueThisMonth), brl(p, e.Remaining))
	}
	fmt.Fprintln(w)
	fmtLine(w, p, "Total", dues.TotalDue)
	fmtLine(w, p, "A pagar", dues.Remaining)
}

func yieldCmd(w io.Writer, p *message.Printer, snap *domain.Snapshot, rate float64, today domain.Date) {
	fmt.Fprintf(w, "CAIXINHAS em %s\n", today)
	var liquid float64
	for _, pocket := range snap.Pockets {
		y := projection.PocketYield(pocket, rate, today)
		liquid += y.LiquidBalance
		fmt.Fprintf(w, "  %-28s %16s %16s %16s\n", pocket.Name,
			brl(p, y.Principal), brl(p, y.NetYield), brl(p, y.LiquidBalance))
	}
	fmt.Fprintln(w)
	fmtLine(w, p, "Total líquido", liquid)
}
