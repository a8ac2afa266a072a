package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"spendlog/internal/core"

	_ "modernc.org/sqlite"
)

const (
	insertExpenseSQL = `INSERT INTO expenses (date, category, amount, note) VALUES (?, ?, ?, ?)`
	listExpensesSQL  = `SELECT date, category, amount, note FROM expenses ORDER BY id`
	deleteFirstSQL   = `DELETE FROM expenses WHERE id = (
		SELECT id FROM expenses
		WHERE date = ? AND category = ? AND amount = ? AND note = ?
		ORDER BY id LIMIT 1)`
	clearExpensesSQL = `DELETE FROM expenses`
)

// SQLiteRepository keeps the same records as the CSV file in one table,
// ordered by insertion id.
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
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

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

// Append implements ledger.ExpenseWriter
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, insertExpenseSQL, e.Date, e.Category, e.Amount, e.Note)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	id, _ := res.LastInsertId()
	slog.DebugContext(ctx, "Expense saved to SQLite", "id", id, "date", e.Date, "category", e.Category, "amount", e.Amount)
	return nil
}

// ListAll implements ledger.ExpenseLister
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, listExpensesSQL)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.Date, &e.Category, &e.Amount, &e.Note); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// DeleteFirst implements ledger.ExpenseDeleter
func (r *SQLiteRepository) DeleteFirst(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, deleteFirstSQL, e.Date, e.Category, e.Amount, e.Note)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Clear implements ledger.ExpenseDeleter
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, clearExpensesSQL)
	if err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Cleared SQLite expenses", "removed", n)
	return nil
}
