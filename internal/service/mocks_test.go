package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	mu        sync.Mutex
	snapshots map[string]*domain.Snapshot
	err       error // returned by every list call
	usersErr  error
	writeErr  error
}

func newMockStore(snaps ...*domain.Snapshot) *mockStore {
	m := &mockStore{snapshots: map[string]*domain.Snapshot{}}
	for _, s := range snaps {
		m.snapshots[s.UserID] = s
	}
	return m
}

func (m *mockStore) snap(userID string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.snapshots[userID]; ok {
		return s, nil
	}
	return &domain.Snapshot{UserID: userID}, nil
}

func (m *mockStore) ListAccounts(_ context.Context, userID string) ([]domain.CashAccount, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Accounts, nil
}

func (m *mockStore) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Transactions, nil
}

func (m *mockStore) ListDebts(_ context.Context, userID string) ([]domain.Debt, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Debts, nil
}

func (m *mockStore) ListCards(_ context.Context, userID string) ([]domain.CreditCard, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Cards, nil
}

func (m *mockStore) ListPurchases(_ context.Context, userID string) ([]domain.CardPurchase, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Purchases, nil
}

func (m *mockStore) ListPockets(_ context.Context, userID string) ([]domain.SavingsPocket, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Pockets, nil
}

func (m *mockStore) ListForecasts(_ context.Context, userID string) ([]domain.ForecastIncome, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.Forecasts, nil
}

func (m *mockStore) ListFixedExpenses(_ context.Context, userID string) ([]domain.FixedExpense, error) {
	s, err := m.snap(userID)
	if err != nil {
		return nil, err
	}
	return s.FixedExpenses, nil
}

func (m *mockStore) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usersErr != nil {
		return nil, m.usersErr
	}
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStore) ReplaceSnapshot(_ context.Context, s *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.snapshots[s.UserID] = s
	return nil
}

type mockRates struct {
	mu    sync.Mutex
	rate  float64
	err   error
	calls int
}

func (m *mockRates) CurrentCDIRate(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.rate, m.err
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.DueReminder
	err       error
	delay     time.Duration
}

func (m *mockPublisher) PublishDueReminder(_ context.Context, r *domain.DueReminder) error {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, *r)
	return nil
}
