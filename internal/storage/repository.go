package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"raport/internal/core"
	applog "raport/internal/log"
	ports "raport/internal/sheets"

	_ "modernc.org/sqlite"
)

const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncFailed  = "error"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

var (
	_ ports.Store         = (*SQLiteRepository)(nil)
	_ ports.ExpenseSyncer = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer; serialise access through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements sheets.ExpenseWriter. The returned reference is the row id.
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (date, description, amount_cents, category) VALUES (?, ?, ?, ?)`,
		e.Date.ISO(), e.Description, e.Amount.Cents, e.Category)
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read expense id: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		applog.FieldExpenseID, id,
		applog.FieldCategory, e.Category,
		applog.FieldAmount, e.Amount.Cents,
		applog.FieldMonth, e.Date.Month().String())

	return strconv.FormatInt(id, 10), nil
}

// ListExpenses implements sheets.ExpenseLister.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount_cents, category
		   FROM expenses
		  WHERE substr(date, 1, 7) = ?
		  ORDER BY date, id`, month.String())
	if err != nil {
		return nil, fmt.Errorf("get expenses by month: %w", err)
	}
	return scanExpenses(rows)
}

// GetExpense retrieves a single expense by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, description, amount_cents, category FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// PendingSync returns the oldest expenses not yet mirrored to the spreadsheet.
// Rows that previously failed are retried.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount_cents, category
		   FROM expenses
		  WHERE sync_status IN (?, ?)
		  ORDER BY id
		  LIMIT ?`, SyncPending, SyncFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	return scanExpenses(rows)
}

// MarkSynced records a successful sync and the spreadsheet range written.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, rowRef string) error {
	if err := r.setSyncStatus(ctx,
		`UPDATE expenses
		    SET sync_status = ?, sync_ref = ?, sync_error = '',
		        synced_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		  WHERE id = ?`, SyncDone, rowRef, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	r.logger.InfoContext(ctx, "Expense marked as synced", applog.FieldExpenseID, id)
	return nil
}

// MarkSyncError records a failed sync attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, reason string) error {
	if err := r.setSyncStatus(ctx,
		`UPDATE expenses SET sync_status = ?, sync_error = ? WHERE id = ?`,
		SyncFailed, reason, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Expense marked with sync error", applog.FieldExpenseID, id, applog.FieldError, reason)
	return nil
}

// SyncStatus returns the sync state of one expense.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (status, ref string, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT sync_status, sync_ref FROM expenses WHERE id = ?`, id).Scan(&status, &ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ports.ErrNotFound
	}
	return status, ref, err
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	if err := s.Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &e.Category); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has malformed date %q: %w", e.ID, date, err)
	}
	e.Date = d
	return e, nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
