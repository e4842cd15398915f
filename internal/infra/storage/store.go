// Package storage is the embedded SQLite backend for the finance entities.
// It implements the same ports as the Supabase adapter and is the default
// store for local runs and the CLI.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("storage")

// SQLiteStore implements port.FinanceStore and port.SnapshotWriter.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) storeErr(op string, err error) error {
	s.logger.Error("sqlite: query failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: "sqlite/" + op, Err: err}
}

// ============================================================
// Column helpers
// ============================================================

func nullMonth(ns sql.NullString) (*domain.Month, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	m, err := domain.ParseMonth(ns.String)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parseDate(s string) (domain.Date, error) {
	if s == "" {
		return domain.Date{}, nil
	}
	return domain.ParseDate(s)
}

func monthArg(m *domain.Month) any {
	if m == nil || m.IsZero() {
		return nil
	}
	return m.String()
}

func dateArg(d domain.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func stringArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ============================================================
// Reads
// ============================================================

func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string) ([]domain.CashAccount, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, balance, initial_by_month FROM accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, s.storeErr("accounts", err)
	}
	defer rows.Close()

	out := []domain.CashAccount{}
	for rows.Next() {
		var (
			a       domain.CashAccount
			kind    string
			initial string
		)
		if err := rows.Scan(&a.ID, &a.Name, &kind, &a.Balance, &initial); err != nil {
			return nil, s.storeErr("accounts", err)
		}
		a.Kind = domain.AccountKind(kind)
		if initial != "" && initial != "{}" {
			if err := json.Unmarshal([]byte(initial), &a.InitialByMonth); err != nil {
				return nil, s.storeErr("accounts", fmt.Errorf("account %s initial_by_month: %w", a.ID, err))
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("accounts", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, direction, amount, description, category, date, time,
		       origin_kind, origin_card_id, origin_debt_id, origin_month
		FROM transactions WHERE user_id = ? ORDER BY date, time, id`, userID)
	if err != nil {
		return nil, s.storeErr("transactions", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t                  domain.Transaction
			direction, date    string
			originKind         string
			cardID, debtID, om sql.NullString
			month              *domain.Month
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &direction, &t.Amount, &t.Description, &t.Category,
			&date, &t.Time, &originKind, &cardID, &debtID, &om); err != nil {
			return nil, s.storeErr("transactions", err)
		}
		t.Direction = domain.Direction(direction)
		if t.Date, err = parseDate(date); err != nil {
			return nil, s.storeErr("transactions", err)
		}
		t.Origin = domain.Origin{Kind: domain.OriginKind(originKind), CardID: cardID.String, DebtID: debtID.String}
		if month, err = nullMonth(om); err != nil {
			return nil, s.storeErr("transactions", err)
		}
		if month != nil {
			t.Origin.Month = *month
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("transactions", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListDebts(ctx context.Context, userID string) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListDebts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, total_amount, amount_paid, installment_count, installment_amount,
		       due_date, kind, period
		FROM debts WHERE user_id = ? ORDER BY due_date, id`, userID)
	if err != nil {
		return nil, s.storeErr("debts", err)
	}
	defer rows.Close()

	out := []domain.Debt{}
	for rows.Next() {
		var (
			d             domain.Debt
			dueDate, kind string
			period        sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Description, &d.TotalAmount, &d.AmountPaid, &d.InstallmentCount,
			&d.InstallmentAmount, &dueDate, &kind, &period); err != nil {
			return nil, s.storeErr("debts", err)
		}
		d.Kind = domain.DebtKind(kind)
		if d.DueDate, err = parseDate(dueDate); err != nil {
			return nil, s.storeErr("debts", err)
		}
		if d.Period, err = nullMonth(period); err != nil {
			return nil, s.storeErr("debts", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("debts", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListCards(ctx context.Context, userID string) ([]domain.CreditCard, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListCards")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, due_day, credit_limit FROM credit_cards WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, s.storeErr("credit_cards", err)
	}
	defer rows.Close()

	out := []domain.CreditCard{}
	for rows.Next() {
		var (
			c      domain.CreditCard
			dueDay sql.NullInt64
			limit  sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.Name, &dueDay, &limit); err != nil {
			return nil, s.storeErr("credit_cards", err)
		}
		if dueDay.Valid {
			day := int(dueDay.Int64)
			c.DueDay = &day
		}
		if limit.Valid {
			l := limit.Float64
			c.Limit = &l
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("credit_cards", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListPurchases(ctx context.Context, userID string) ([]domain.CardPurchase, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListPurchases")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, description, total_amount, installment_count, installment_amount,
		       first_month, purchase_date, installments_paid
		FROM card_purchases WHERE user_id = ? ORDER BY purchase_date, id`, userID)
	if err != nil {
		return nil, s.storeErr("card_purchases", err)
	}
	defer rows.Close()

	out := []domain.CardPurchase{}
	for rows.Next() {
		var (
			p                    domain.CardPurchase
			firstMonth, purchase string
		)
		if err := rows.Scan(&p.ID, &p.CardID, &p.Description, &p.TotalAmount, &p.InstallmentCount,
			&p.InstallmentAmount, &firstMonth, &purchase, &p.InstallmentsPaid); err != nil {
			return nil, s.storeErr("card_purchases", err)
		}
		if p.FirstMonth, err = domain.ParseMonth(firstMonth); err != nil {
			return nil, s.storeErr("card_purchases", err)
		}
		if p.PurchaseDate, err = parseDate(purchase); err != nil {
			return nil, s.storeErr("card_purchases", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("card_purchases", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListPockets(ctx context.Context, userID string) ([]domain.SavingsPocket, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListPockets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, balance, target, participation_pct, created_at, initial_amount, initial_date
		FROM savings_pockets WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, s.storeErr("savings_pockets", err)
	}

	out := []domain.SavingsPocket{}
	index := map[string]int{}
	for rows.Next() {
		var (
			p                    domain.SavingsPocket
			kind                 string
			target               sql.NullFloat64
			createdAt, initialAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &kind, &p.Balance, &target, &p.ParticipationPct,
			&createdAt, &p.InitialContribution.Amount, &initialAt); err != nil {
			rows.Close()
			return nil, s.storeErr("savings_pockets", err)
		}
		p.Kind = domain.PocketKind(kind)
		if target.Valid {
			t := target.Float64
			p.Target = &t
		}
		if p.CreatedAt, err = parseDate(createdAt); err != nil {
			rows.Close()
			return nil, s.storeErr("savings_pockets", err)
		}
		if p.InitialContribution.Date, err = parseDate(initialAt); err != nil {
			rows.Close()
			return nil, s.storeErr("savings_pockets", err)
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, s.storeErr("savings_pockets", err)
	}

	contribs, err := s.db.QueryContext(ctx,
		`SELECT pocket_id, date, amount FROM pocket_contributions WHERE user_id = ? ORDER BY date, id`, userID)
	if err != nil {
		return nil, s.storeErr("pocket_contributions", err)
	}
	defer contribs.Close()

	for contribs.Next() {
		var (
			pocketID, date string
			c              domain.Contribution
		)
		if err := contribs.Scan(&pocketID, &date, &c.Amount); err != nil {
			return nil, s.storeErr("pocket_contributions", err)
		}
		if c.Date, err = parseDate(date); err != nil {
			return nil, s.storeErr("pocket_contributions", err)
		}
		if i, ok := index[pocketID]; ok {
			out[i].Contributions = append(out[i].Contributions, c)
		}
	}
	if err := contribs.Err(); err != nil {
		return nil, s.storeErr("pocket_contributions", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListForecasts(ctx context.Context, userID string) ([]domain.ForecastIncome, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListForecasts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, amount, received, due_date, period
		FROM forecast_incomes WHERE user_id = ? ORDER BY due_date, id`, userID)
	if err != nil {
		return nil, s.storeErr("forecast_incomes", err)
	}
	defer rows.Close()

	out := []domain.ForecastIncome{}
	for rows.Next() {
		var (
			f       domain.ForecastIncome
			dueDate string
			period  sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Description, &f.Amount, &f.Received, &dueDate, &period); err != nil {
			return nil, s.storeErr("forecast_incomes", err)
		}
		if f.DueDate, err = parseDate(dueDate); err != nil {
			return nil, s.storeErr("forecast_incomes", err)
		}
		if f.Period, err = nullMonth(period); err != nil {
			return nil, s.storeErr("forecast_incomes", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("forecast_incomes", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListFixedExpenses(ctx context.Context, userID string) ([]domain.FixedExpense, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListFixedExpenses")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, amount, due_day, start_month, end_month
		FROM fixed_expenses WHERE user_id = ? ORDER BY due_day, id`, userID)
	if err != nil {
		return nil, s.storeErr("fixed_expenses", err)
	}
	defer rows.Close()

	out := []domain.FixedExpense{}
	for rows.Next() {
		var (
			e     domain.FixedExpense
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.DueDay, &start, &end); err != nil {
			return nil, s.storeErr("fixed_expenses", err)
		}
		if e.StartMonth, err = domain.ParseMonth(start); err != nil {
			return nil, s.storeErr("fixed_expenses", err)
		}
		if e.EndMonth, err = nullMonth(end); err != nil {
			return nil, s.storeErr("fixed_expenses", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("fixed_expenses", err)
	}
	return out, nil
}

// ListUserIDs returns the distinct owners of accounts.
func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListUserIDs")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, s.storeErr("accounts", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, s.storeErr("accounts", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("accounts", err)
	}
	return ids, nil
}

// ============================================================
// Writes
// ============================================================

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

// ReplaceSnapshot swaps every entity of snapshot.UserID in one transaction.
func (s *SQLiteStore) ReplaceSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	ctx, span := tracer.Start(ctx, "SQLite.ReplaceSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", snapshot.UserID))

	if snapshot.UserID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "is required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.storeErr("begin", err)
	}
	if err := replaceSnapshot(ctx, tx, snapshot); err != nil {
		tx.Rollback()
		return s.storeErr("replace_snapshot", err)
	}
	if err := tx.Commit(); err != nil {
		return s.storeErr("commit", err)
	}

	s.logger.Info("sqlite: snapshot replaced",
		zap.String("user_id", snapshot.UserID),
		zap.Int("transactions", len(snapshot.Transactions)),
		zap.Int("pockets", len(snapshot.Pockets)),
	)
	return nil
}

func replaceSnapshot(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	uid := snap.UserID
	for _, table := range snapshotTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", uid); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, a := range snap.Accounts {
		initial := []byte("{}")
		if len(a.InitialByMonth) > 0 {
			var err error
			if initial, err = json.Marshal(a.InitialByMonth); err != nil {
				return fmt.Errorf("account %s: %w", a.ID, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, user_id, name, kind, balance, initial_by_month) VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, uid, a.Name, string(a.Kind), a.Balance, string(initial)); err != nil {
			return fmt.Errorf("insert account %s: %w", a.ID, err)
		}
	}

	for _, t := range snap.Transactions {
		kind := t.Origin.Kind
		if kind == "" {
			kind = domain.OriginManual
		}
		month := t.Origin.Month
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, account_id, direction, amount, description, category, date, time,
			                          origin_kind, origin_card_id, origin_debt_id, origin_month)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, uid, t.AccountID, string(t.Direction), t.Amount, t.Description, t.Category, dateArg(t.Date), t.Time,
			string(kind), stringArg(t.Origin.CardID), stringArg(t.Origin.DebtID), monthArg(&month)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for _, d := range snap.Debts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO debts (id, user_id, description, total_amount, amount_paid, installment_count,
			                   installment_amount, due_date, kind, period)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, uid, d.Description, d.TotalAmount, d.AmountPaid, d.InstallmentCount,
			d.InstallmentAmount, dateArg(d.DueDate), string(d.Kind), monthArg(d.Period)); err != nil {
			return fmt.Errorf("insert debt %s: %w", d.ID, err)
		}
	}

	for _, c := range snap.Cards {
		var dueDay, limit any
		if c.DueDay != nil {
			dueDay = *c.DueDay
		}
		if c.Limit != nil {
			limit = *c.Limit
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credit_cards (id, user_id, name, due_day, credit_limit) VALUES (?, ?, ?, ?, ?)`,
			c.ID, uid, c.Name, dueDay, limit); err != nil {
			return fmt.Errorf("insert card %s: %w", c.ID, err)
		}
	}

	for _, p := range snap.Purchases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_purchases (id, user_id, card_id, description, total_amount, installment_count,
			                            installment_amount, first_month, purchase_date, installments_paid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, uid, p.CardID, p.Description, p.TotalAmount, p.InstallmentCount,
			p.InstallmentAmount, p.FirstMonth.String(), dateArg(p.PurchaseDate), p.InstallmentsPaid); err != nil {
			return fmt.Errorf("insert purchase %s: %w", p.ID, err)
		}
	}

	for _, p := range snap.Pockets {
		var target any
		if p.Target != nil {
			target = *p.Target
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO savings_pockets (id, user_id, name, kind, balance, target, participation_pct,
			                             created_at, initial_amount, initial_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, uid, p.Name, string(p.Kind), p.Balance, target, p.ParticipationPct,
			dateArg(p.CreatedAt), p.InitialContribution.Amount, dateArg(p.InitialContribution.Date)); err != nil {
			return fmt.Errorf("insert pocket %s: %w", p.ID, err)
		}
		for _, c := range p.Contributions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pocket_contributions (user_id, pocket_id, date, amount) VALUES (?, ?, ?, ?)`,
				uid, p.ID, dateArg(c.Date), c.Amount); err != nil {
				return fmt.Errorf("insert contribution for %s: %w", p.ID, err)
			}
		}
	}

	for _, f := range snap.Forecasts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_incomes (id, user_id, description, amount, received, due_date, period)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, uid, f.Description, f.Amount, f.Received, dateArg(f.DueDate), monthArg(f.Period)); err != nil {
			return fmt.Errorf("insert forecast %s: %w", f.ID, err)
		}
	}

	for _, e := range snap.FixedExpenses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fixed_expenses (id, user_id, description, amount, due_day, start_month, end_month)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, uid, e.Description, e.Amount, e.DueDay, e.StartMonth.String(), monthArg(e.EndMonth)); err != nil {
			return fmt.Errorf("insert fixed expense %s: %w", e.ID, err)
		}
	}
	return nil
}
