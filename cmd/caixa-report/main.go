package main

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Lshortfile)

	cmdReport := kingpin.Command("report", "Show the monthly report")
	cmdDues := kingpin.Command("dues", "Show debts and card installments due in the month")
	cmdYield := kingpin.Command("yield", "Show savings pockets with accrued yield")
	infile := kingpin.Flag("input", "Snapshot JSON file (default stdin)").OpenFile(os.O_RDONLY, 0666)
	monthFlag := kingpin.Flag("month", "Month as YYYY-MM (default current month)").String()
	todayFlag := kingpin.Flag("today", "Reference date as YYYY-MM-DD (default today)").String()
	rate := kingpin.Flag("rate", "Annual CDI rate in percent").Default("10.75").Float64()
	cmd := kingpin.Parse()

	input := io.Reader(os.Stdin)
	if *infile != nil {
		input = *infile
		defer (*infile).Close()
	}

	snap, err := readSnapshot(input)
	if err != nil {
		log.Fatal(err)
	}

	today := domain.DateOf(time.Now())
	if *todayFlag != "" {
		if today, err = domain.ParseDate(*todayFlag); err != nil {
			log.Fatal(err)
		}
	}
	month := today.Month()
	if *monthFlag != "" {
		if month, err = domain.ParseMonth(*monthFlag); err != nil {
			log.Fatal(err)
		}
	}

	p := message.NewPrinter(language.BrazilianPortuguese)
	switch cmd {
	case cmdReport.FullCommand():
		reportCmd(os.Stdout, p, projection.BuildReport(snap, month, today, *rate))
	case cmdDues.FullCommand():
		duesCmd(os.Stdout, p, projection.MonthlyDues(month, projection.DueEntries(snap.Debts, snap.Purchases, snap.Transactions, month)))
	case cmdYield.FullCommand():
		yieldCmd(os.Stdout, p, snap, *rate, today)
	}
}

func readSnapshot(r io.Reader) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
