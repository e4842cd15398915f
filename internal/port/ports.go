// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
)

// FinanceStore reads one user's entities. Each list is independent so the
// service can fetch them concurrently.
type FinanceStore interface {
	ListAccounts(ctx context.Context, userID string) ([]domain.CashAccount, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	ListDebts(ctx context.Context, userID string) ([]domain.Debt, error)
	ListCards(ctx context.Context, userID string) ([]domain.CreditCard, error)
	ListPurchases(ctx context.Context, userID string) ([]domain.CardPurchase, error)
	ListPockets(ctx context.Context, userID string) ([]domain.SavingsPocket, error)
	ListForecasts(ctx context.Context, userID string) ([]domain.ForecastIncome, error)
	ListFixedExpenses(ctx context.Context, userID string) ([]domain.FixedExpense, error)

	// ListUserIDs returns every user that owns at least one entity.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SnapshotWriter replaces every entity of snapshot.UserID with the snapshot's.
// Only the dev seeding flow writes.
type SnapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
}

// RateProvider fetches the current reference (CDI) annual rate, in percent.
type RateProvider interface {
	CurrentCDIRate(ctx context.Context) (float64, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// DueReminderPublisher announces installments that are about to fall due.
type DueReminderPublisher interface {
	PublishDueReminder(ctx context.Context, reminder *domain.DueReminder) error
}
