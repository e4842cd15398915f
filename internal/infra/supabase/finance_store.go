package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Table names. Children come before parents so deletes respect foreign keys.
var snapshotTables = []string{
	"pocket_contributions",
	"savings_pockets",
	"transactions",
	"card_purchases",
	"credit_cards",
	"debts",
	"forecast_incomes",
	"fixed_expenses",
	"accounts",
}

// FinanceStore implements port.FinanceStore and port.SnapshotWriter
// on top of PostgREST.
type FinanceStore struct {
	client *Client
}

// NewFinanceStore creates a FinanceStore.
func NewFinanceStore(client *Client) *FinanceStore {
	return &FinanceStore{client: client}
}

// transactionRow flattens the origin into nullable columns.
type transactionRow struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id,omitempty"`
	AccountID    string           `json:"account_id"`
	Direction    domain.Direction `json:"direction"`
	Amount       float64          `json:"amount"`
	Description  string           `json:"description"`
	Category     string           `json:"category"`
	Date         domain.Date      `json:"date"`
	Time         string           `json:"time"`
	OriginKind   string           `json:"origin_kind"`
	OriginCardID *string          `json:"origin_card_id"`
	OriginDebtID *string          `json:"origin_debt_id"`
	OriginMonth  *domain.Month    `json:"origin_month"`
}

func (r transactionRow) toDomain() domain.Transaction {
	t := domain.Transaction{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Direction:   r.Direction,
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
		Date:        r.Date,
		Time:        r.Time,
		Origin:      domain.ManualOrigin(),
	}
	if r.OriginKind != "" {
		t.Origin.Kind = domain.OriginKind(r.OriginKind)
	}
	if r.OriginCardID != nil {
		t.Origin.CardID = *r.OriginCardID
	}
	if r.OriginDebtID != nil {
		t.Origin.DebtID = *r.OriginDebtID
	}
	if r.OriginMonth != nil {
		t.Origin.Month = *r.OriginMonth
	}
	return t
}

func transactionRowFrom(userID string, t domain.Transaction) transactionRow {
	r := transactionRow{
		ID:          t.ID,
		UserID:      userID,
		AccountID:   t.AccountID,
		Direction:   t.Direction,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
		Time:        t.Time,
		OriginKind:  string(t.Origin.Kind),
	}
	if r.OriginKind == "" {
		r.OriginKind = string(domain.OriginManual)
	}
	if t.Origin.CardID != "" {
		id := t.Origin.CardID
		r.OriginCardID = &id
	}
	if t.Origin.DebtID != "" {
		id := t.Origin.DebtID
		r.OriginDebtID = &id
	}
	if !t.Origin.Month.IsZero() {
		m := t.Origin.Month
		r.OriginMonth = &m
	}
	return r
}

// pocketRow carries the embedded pocket_contributions resource.
type pocketRow struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id,omitempty"`
	Name             string            `json:"name"`
	Kind             domain.PocketKind `json:"kind"`
	Balance          float64           `json:"balance"`
	Target           *float64          `json:"target"`
	ParticipationPct float64           `json:"participation_pct"`
	CreatedAt        domain.Date       `json:"created_at"`
	InitialAmount    float64           `json:"initial_amount"`
	InitialDate      domain.Date       `json:"initial_date"`
	Contributions    []contributionRow `json:"pocket_contributions,omitempty"`
}

type contributionRow struct {
	UserID   string      `json:"user_id,omitempty"`
	PocketID string      `json:"pocket_id,omitempty"`
	Date     domain.Date `json:"date"`
	Amount   float64     `json:"amount"`
}

func (r pocketRow) toDomain() domain.SavingsPocket {
	p := domain.SavingsPocket{
		ID:                  r.ID,
		Name:                r.Name,
		Kind:                r.Kind,
		Balance:             r.Balance,
		Target:              r.Target,
		ParticipationPct:    r.ParticipationPct,
		CreatedAt:           r.CreatedAt,
		InitialContribution: domain.Contribution{Date: r.InitialDate, Amount: r.InitialAmount},
	}
	sort.SliceStable(r.Contributions, func(i, j int) bool {
		return r.Contributions[i].Date.Before(r.Contributions[j].Date.Time)
	})
	for _, c := range r.Contributions {
		p.Contributions = append(p.Contributions, domain.Contribution{Date: c.Date, Amount: c.Amount})
	}
	return p
}

// ============================================================
// Reads
// ============================================================

func (s *FinanceStore) ListAccounts(ctx context.Context, userID string) ([]domain.CashAccount, error) {
	return listRows[domain.CashAccount](ctx, s.client, "accounts", userID, "order=name.asc")
}

func (s *FinanceStore) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := listRows[transactionRow](ctx, s.client, "transactions", userID, "order=date.asc,time.asc")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *FinanceStore) ListDebts(ctx context.Context, userID string) ([]domain.Debt, error) {
	return listRows[domain.Debt](ctx, s.client, "debts", userID, "order=due_date.asc")
}

func (s *FinanceStore) ListCards(ctx context.Context, userID string) ([]domain.CreditCard, error) {
	return listRows[domain.CreditCard](ctx, s.client, "credit_cards", userID, "select=id,name,due_day,limit:credit_limit&order=name.asc")
}

func (s *FinanceStore) ListPurchases(ctx context.Context, userID string) ([]domain.CardPurchase, error) {
	return listRows[domain.CardPurchase](ctx, s.client, "card_purchases", userID, "order=purchase_date.asc")
}

func (s *FinanceStore) ListPockets(ctx context.Context, userID string) ([]domain.SavingsPocket, error) {
	rows, err := listRows[pocketRow](ctx, s.client, "savings_pockets", userID, "select=*,pocket_contributions(date,amount)&order=created_at.asc")
	if err != nil {
		return nil, err
	}
	out := make([]domain.SavingsPocket, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *FinanceStore) ListForecasts(ctx context.Context, userID string) ([]domain.ForecastIncome, error) {
	return listRows[domain.ForecastIncome](ctx, s.client, "forecast_incomes", userID, "order=due_date.asc")
}

func (s *FinanceStore) ListFixedExpenses(ctx context.Context, userID string) ([]domain.FixedExpense, error) {
	return listRows[domain.FixedExpense](ctx, s.client, "fixed_expenses", userID, "order=due_day.asc")
}

// ListUserIDs returns the distinct owners of accounts.
func (s *FinanceStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUserIDs")
	defer span.End()

	var rows []struct {
		UserID string `json:"user_id"`
	}
	err := resilience.Execute(s.client.cb, func() error {
		return resilience.RetryWithBackoff(ctx, s.client.cfg, func() error {
			body, err := s.client.doRequest(ctx, "accounts?select=user_id&order=user_id.asc")
			if err != nil {
				return err
			}
			rows = nil
			if err := json.Unmarshal(body, &rows); err != nil {
				return resilience.Permanent(fmt.Errorf("decode accounts: %w", err))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.UserID == "" || seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		ids = append(ids, r.UserID)
	}
	span.SetAttributes(attribute.Int("users.count", len(ids)))
	return ids, nil
}

// ============================================================
// Writes
// ============================================================

// ReplaceSnapshot deletes every row owned by snapshot.UserID and inserts the
// snapshot's entities. PostgREST has no multi-table transaction, so a failure
// half way leaves a partial snapshot that the next call overwrites.
func (s *FinanceStore) ReplaceSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", snapshot.UserID))

	userID := snapshot.UserID
	if userID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "is required"}
	}

	wrap := func(table string, err error) error {
		return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}

	for _, table := range snapshotTables {
		if err := s.client.doDelete(ctx, fmt.Sprintf("%s?user_id=eq.%s", table, url.QueryEscape(userID))); err != nil {
			return wrap(table, err)
		}
	}

	plain := []struct {
		table string
		items any
		n     int
	}{
		{"accounts", snapshot.Accounts, len(snapshot.Accounts)},
		{"debts", snapshot.Debts, len(snapshot.Debts)},
		{"credit_cards", snapshot.Cards, len(snapshot.Cards)},
		{"card_purchases", snapshot.Purchases, len(snapshot.Purchases)},
		{"forecast_incomes", snapshot.Forecasts, len(snapshot.Forecasts)},
		{"fixed_expenses", snapshot.FixedExpenses, len(snapshot.FixedExpenses)},
	}
	for _, p := range plain {
		if p.n == 0 {
			continue
		}
		rows, err := withUserID(userID, p.items)
		if err != nil {
			return wrap(p.table, err)
		}
		if p.table == "credit_cards" {
			for _, r := range rows {
				if v, ok := r["limit"]; ok {
					r["credit_limit"] = v
					delete(r, "limit")
				}
			}
		}
		if err := s.client.doPost(ctx, p.table, rows); err != nil {
			return wrap(p.table, err)
		}
	}

	if len(snapshot.Transactions) > 0 {
		rows := make([]transactionRow, 0, len(snapshot.Transactions))
		for _, t := range snapshot.Transactions {
			rows = append(rows, transactionRowFrom(userID, t))
		}
		if err := s.client.doPost(ctx, "transactions", rows); err != nil {
			return wrap("transactions", err)
		}
	}

	if len(snapshot.Pockets) > 0 {
		pockets := make([]pocketRow, 0, len(snapshot.Pockets))
		var contributions []contributionRow
		for _, p := range snapshot.Pockets {
			pockets = append(pockets, pocketRow{
				ID:               p.ID,
				UserID:           userID,
				Name:             p.Name,
				Kind:             p.Kind,
				Balance:          p.Balance,
				Target:           p.Target,
				ParticipationPct: p.ParticipationPct,
				CreatedAt:        p.CreatedAt,
				InitialAmount:    p.InitialContribution.Amount,
				InitialDate:      p.InitialContribution.Date,
			})
			for _, c := range p.Contributions {
				contributions = append(contributions, contributionRow{UserID: userID, PocketID: p.ID, Date: c.Date, Amount: c.Amount})
			}
		}
		if err := s.client.doPost(ctx, "savings_pockets", pockets); err != nil {
			return wrap("savings_pockets", err)
		}
		if len(contributions) > 0 {
			if err := s.client.doPost(ctx, "pocket_contributions", contributions); err != nil {
				return wrap("pocket_contributions", err)
			}
		}
	}

	s.client.logger.Info("supabase: snapshot replaced",
		zap.String("user_id", userID),
		zap.Int("transactions", len(snapshot.Transactions)),
		zap.Int("pockets", len(snapshot.Pockets)),
	)
	return nil
}
