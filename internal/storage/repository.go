// Package storage persists plans, transactions, wallets and categories in
// SQLite. Dates travel as RFC 3339 UTC strings; money as integer cents.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"plata/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
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

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeNullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func decodeNullTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return decodeTime(ns.String)
}

func encodeNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// CreatePlan inserts a new scheduled plan row.
func (r *SQLiteRepository) CreatePlan(ctx context.Context, p core.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_plans
			(id, description, type, amount_cents, currency, category_id, wallet_id,
			 start_date, end_date, frequency, last_execution_date, next_execution_date,
			 is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Description, string(p.Type), p.Amount.Cents, p.Currency,
		encodeNullString(p.CategoryID), encodeNullString(p.WalletID),
		encodeTime(p.StartDate), encodeNullTime(p.EndDate), string(p.Frequency),
		encodeNullTime(p.LastExecutionDate), encodeTime(p.NextExecutionDate),
		p.IsActive, encodeTime(p.CreatedAt), encodeTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	slog.InfoContext(ctx, "Plan saved",
		"plan_id", p.ID,
		"description", p.Description,
		"amount_cents", p.Amount.Cents,
		"frequency", p.Frequency)
	return nil
}

// UpdatePlan rewrites the mutable fields of an existing plan and bumps
// updated_at.
func (r *SQLiteRepository) UpdatePlan(ctx context.Context, p core.Plan) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_plans SET
			description = ?, type = ?, amount_cents = ?, currency = ?,
			category_id = ?, wallet_id = ?, start_date = ?, end_date = ?,
			frequency = ?, last_execution_date = ?, next_execution_date = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.Description, string(p.Type), p.Amount.Cents, p.Currency,
		encodeNullString(p.CategoryID), encodeNullString(p.WalletID),
		encodeTime(p.StartDate), encodeNullTime(p.EndDate), string(p.Frequency),
		encodeNullTime(p.LastExecutionDate), encodeTime(p.NextExecutionDate),
		p.IsActive, encodeTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return requireRow(res, p.ID)
}

// SetPlanActive pauses or resumes a plan.
func (r *SQLiteRepository) SetPlanActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_plans SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, encodeTime(now), id)
	if err != nil {
		return fmt.Errorf("set plan active: %w", err)
	}
	return requireRow(res, id)
}

// AdvancePlanExecution records a firing: sets last_execution_date and the
// freshly computed next_execution_date.
func (r *SQLiteRepository) AdvancePlanExecution(ctx context.Context, id string, lastExecution, nextExecution, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_plans
		SET last_execution_date = ?, next_execution_date = ?, updated_at = ?
		WHERE id = ?`,
		encodeTime(lastExecution), encodeTime(nextExecution), encodeTime(now), id)
	if err != nil {
		return fmt.Errorf("advance plan execution: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) DeletePlan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plan %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

const planColumns = `id, description, type, amount_cents, currency, category_id, wallet_id,
	start_date, end_date, frequency, last_execution_date, next_execution_date,
	is_active, created_at, updated_at`

func (r *SQLiteRepository) GetPlan(ctx context.Context, id string) (core.Plan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM scheduled_plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err != nil {
		return core.Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}
	return p, nil
}

// ListPlans returns all plans ordered by next execution date, the order the
// remote listing query of the original system used.
func (r *SQLiteRepository) ListPlans(ctx context.Context) ([]core.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM scheduled_plans ORDER BY next_execution_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// ListDuePlans returns active plans whose next execution date is at or before
// asOf, oldest first, capped at limit.
func (r *SQLiteRepository) ListDuePlans(ctx context.Context, asOf time.Time, limit int) ([]core.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+` FROM scheduled_plans
		WHERE is_active = 1 AND next_execution_date <= ?
		ORDER BY next_execution_date ASC
		LIMIT ?`,
		encodeTime(asOf), limit)
	if err != nil {
		return nil, fmt.Errorf("list due plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (core.Plan, error) {
	var (
		p                                 core.Plan
		planType, frequency               string
		startDate, nextExecution          string
		categoryID, walletID              sql.NullString
		endDate, lastExecution            sql.NullString
		createdAt, updatedAt              string
	)
	err := row.Scan(&p.ID, &p.Description, &planType, &p.Amount.Cents, &p.Currency,
		&categoryID, &walletID, &startDate, &endDate, &frequency,
		&lastExecution, &nextExecution, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return core.Plan{}, err
	}

	p.Type = core.TransactionType(planType)
	p.Frequency = core.Frequency(frequency)
	p.CategoryID = categoryID.String
	p.WalletID = walletID.String

	if p.StartDate, err = decodeTime(startDate); err != nil {
		return core.Plan{}, fmt.Errorf("parse start_date: %w", err)
	}
	if p.EndDate, err = decodeNullTime(endDate); err != nil {
		return core.Plan{}, fmt.Errorf("parse end_date: %w", err)
	}
	if p.LastExecutionDate, err = decodeNullTime(lastExecution); err != nil {
		return core.Plan{}, fmt.Errorf("parse last_execution_date: %w", err)
	}
	if p.NextExecutionDate, err = decodeTime(nextExecution); err != nil {
		return core.Plan{}, fmt.Errorf("parse next_execution_date: %w", err)
	}
	if p.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Plan{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return core.Plan{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return p, nil
}

func collectPlans(rows *sql.Rows) ([]core.Plan, error) {
	var plans []core.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// CreateTransaction inserts a fired transaction record.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, description, type, amount_cents, currency, category_id, wallet_id,
			 date, is_recurring, recurring_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, string(t.Type), t.Amount.Cents, t.Currency,
		encodeNullString(t.CategoryID), encodeNullString(t.WalletID),
		encodeTime(t.Date), t.IsRecurring, encodeNullString(t.RecurringID),
		encodeTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"description", t.Description,
		"amount_cents", t.Amount.Cents,
		"recurring_id", t.RecurringID)
	return nil
}

// ListTransactions returns the newest transactions first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, type, amount_cents, currency, category_id, wallet_id,
		       date, is_recurring, recurring_id, created_at
		FROM transactions ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                    core.Transaction
			txType, txDate       string
			categoryID, walletID sql.NullString
			recurringID          sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&t.ID, &t.Description, &txType, &t.Amount.Cents, &t.Currency,
			&categoryID, &walletID, &txDate, &t.IsRecurring, &recurringID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(txType)
		t.CategoryID = categoryID.String
		t.WalletID = walletID.String
		t.RecurringID = recurringID.String
		if t.Date, err = decodeTime(txDate); err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		if t.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// ExecutionSummaries aggregates fired transactions per originating plan id,
// restricted to executions at or before asOf.
func (r *SQLiteRepository) ExecutionSummaries(ctx context.Context, asOf time.Time) (map[string]core.ExecutionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recurring_id, COUNT(*), COALESCE(SUM(amount_cents), 0), MAX(date)
		FROM transactions
		WHERE is_recurring = 1 AND recurring_id IS NOT NULL AND date <= ?
		GROUP BY recurring_id`,
		encodeTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("execution summaries: %w", err)
	}
	defer rows.Close()

	summaries := make(map[string]core.ExecutionSummary)
	for rows.Next() {
		var (
			planID   string
			s        core.ExecutionSummary
			lastDate string
		)
		if err := rows.Scan(&planID, &s.Count, &s.TotalCents, &lastDate); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if s.LastDate, err = decodeTime(lastDate); err != nil {
			return nil, fmt.Errorf("parse last date: %w", err)
		}
		summaries[planID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

func (r *SQLiteRepository) CreateWallet(ctx context.Context, w core.Wallet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, name, provider, currency, created_at) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Provider, w.Currency, encodeTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, provider, currency, created_at FROM wallets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		var (
			w         core.Wallet
			createdAt string
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Provider, &w.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		if w.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type, color, icon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.Color, c.Icon, encodeTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, color, icon, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c         core.Category
			catType   string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &catType, &c.Color, &c.Icon, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(catType)
		if c.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
