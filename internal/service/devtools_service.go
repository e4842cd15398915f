package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var devTracer = otel.Tracer("service/devtools")

// ============================================================
// Dev Tools
// ============================================================

// DevToolsService writes demo data for local development.
type DevToolsService struct {
	writer port.SnapshotWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewDevToolsService creates a new dev tools service.
func NewDevToolsService(writer port.SnapshotWriter, logger *zap.Logger) *DevToolsService {
	return &DevToolsService{writer: writer, logger: logger, now: time.Now}
}

// Seed replaces every entity of req.UserID with a demo snapshot anchored on
// req.Month (the current month when empty).
func (s *DevToolsService) Seed(ctx context.Context, req *domain.DevSeedRequest) (*domain.DevSeedResponse, error) {
	ctx, span := devTracer.Start(ctx, "DevToolsService.Seed")
	defer span.End()

	if req.UserID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "is required"}
	}

	anchor := domain.MonthOf(s.now())
	if req.Month != "" {
		m, err := domain.ParseMonth(req.Month)
		if err != nil {
			return nil, err
		}
		anchor = m
	}
	span.SetAttributes(attribute.String("user.id", req.UserID), attribute.String("month", anchor.String()))

	snap := DemoSnapshot(req.UserID, anchor)
	if err := s.writer.ReplaceSnapshot(ctx, snap); err != nil {
		s.logger.Error("DEV: failed to seed snapshot", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("DEV: demo snapshot seeded",
		zap.String("user_id", req.UserID),
		zap.String("month", anchor.String()),
		zap.Int("transactions", len(snap.Transactions)),
	)

	return &domain.DevSeedResponse{
		Success:      true,
		UserID:       req.UserID,
		Accounts:     len(snap.Accounts),
		Transactions: len(snap.Transactions),
		Debts:        len(snap.Debts),
		Purchases:    len(snap.Purchases),
		Pockets:      len(snap.Pockets),
		Message:      fmt.Sprintf("demo data seeded around %s", anchor),
	}, nil
}

// DemoSnapshot builds a plausible three-month history ending in anchor.
func DemoSnapshot(userID string, anchor domain.Month) *domain.Snapshot {
	id := func() string { return uuid.NewString() }
	checking := id()
	wallet := id()
	loan := id()
	card := id()
	dueDay := 10
	limit := 8000.0
	target := 6000.0
	tax := anchor.Next()
	start := anchor.AddMonths(-2)

	snap := &domain.Snapshot{
		UserID: userID,
		Accounts: []domain.CashAccount{
			{ID: checking, Name: "Conta corrente", Kind: domain.AccountChecking,
				InitialByMonth: domain.OpeningBalances{start: 2500}},
			{ID: wallet, Name: "Carteira", Kind: domain.AccountWallet,
				InitialByMonth: domain.OpeningBalances{start: 200}},
		},
		Debts: []domain.Debt{
			{ID: loan, Description: "Empréstimo pessoal", TotalAmount: 3000, InstallmentCount: 12,
				InstallmentAmount: 250, DueDate: anchor.AddMonths(-3).Day(15), Kind: domain.DebtInstallment},
			{ID: id(), Description: "IPVA", TotalAmount: 600, InstallmentCount: 1,
				DueDate: tax.Day(20), Kind: domain.DebtLumpSum, Period: &tax},
		},
		Cards: []domain.CreditCard{
			{ID: card, Name: "Nubank", DueDay: &dueDay, Limit: &limit},
		},
		Purchases: []domain.CardPurchase{
			{ID: id(), CardID: card, Description: "Notebook", TotalAmount: 3600, InstallmentCount: 3,
				InstallmentAmount: 1200, FirstMonth: anchor.Prev(), PurchaseDate: anchor.AddMonths(-2).Day(25),
				InstallmentsPaid: 1},
			{ID: id(), CardID: card, Description: "Supermercado", TotalAmount: 450, InstallmentCount: 1,
				InstallmentAmount: 450, FirstMonth: anchor, PurchaseDate: anchor.Prev().Day(28)},
		},
		Pockets: []domain.SavingsPocket{
			{ID: id(), Name: "Reserva de emergência", Kind: domain.PocketCDI, ParticipationPct: 100,
				CreatedAt:           anchor.AddMonths(-6).FirstDay(),
				InitialContribution: domain.Contribution{Date: anchor.AddMonths(-6).FirstDay(), Amount: 5000}},
			{ID: id(), Name: "Viagem", Kind: domain.PocketManual, Balance: 1200, Target: &target,
				CreatedAt: anchor.AddMonths(-4).FirstDay()},
		},
		Forecasts: []domain.ForecastIncome{
			{ID: id(), Description: "Freela", Amount: 1500, DueDate: anchor.Day(20)},
			{ID: id(), Description: "Reembolso", Amount: 320, Received: true, DueDate: anchor.Day(8)},
		},
		FixedExpenses: []domain.FixedExpense{
			{ID: id(), Description: "Aluguel", Amount: 1800, DueDay: 10, StartMonth: anchor.AddMonths(-6)},
			{ID: id(), Description: "Streaming", Amount: 55.9, DueDay: 12, StartMonth: anchor.AddMonths(-6)},
		},
	}

	for i := 1; i <= 5; i++ {
		snap.Pockets[0].Contributions = append(snap.Pockets[0].Contributions,
			domain.Contribution{Date: anchor.AddMonths(-6 + i).FirstDay(), Amount: 500})
	}

	for m := start; !m.After(anchor); m = m.Next() {
		snap.Transactions = append(snap.Transactions,
			domain.Transaction{ID: id(), AccountID: checking, Direction: domain.DirectionIn, Amount: 5000,
				Description: "Salário", Category: "salary", Date: m.Day(5), Time: "08:00", Origin: domain.ManualOrigin()},
			domain.Transaction{ID: id(), AccountID: checking, Direction: domain.DirectionOut, Amount: 1800,
				Description: "Aluguel", Category: "housing", Date: m.Day(10), Time: "09:00", Origin: domain.ManualOrigin()},
			domain.Transaction{ID: id(), AccountID: wallet, Direction: domain.DirectionOut, Amount: 60,
				Description: "Feira", Category: "food", Date: m.Day(14), Time: "10:30", Origin: domain.ManualOrigin()},
		)
		if m.Before(anchor) {
			snap.Transactions = append(snap.Transactions,
				domain.Transaction{ID: id(), AccountID: checking, Direction: domain.DirectionOut, Amount: 250,
					Description: "Parcela empréstimo", Category: "debt", Date: m.Day(15), Time: "12:00",
					Origin: domain.DebtPaymentOrigin(loan, m)},
			)
		}
	}
	snap.Transactions = append(snap.Transactions,
		domain.Transaction{ID: id(), AccountID: checking, Direction: domain.DirectionOut, Amount: 1200,
			Description: "Fatura Nubank", Category: "card", Date: anchor.Prev().Day(10), Time: "11:00",
			Origin: domain.CardPaymentOrigin(card, anchor.Prev())},
	)
	return snap
}
