package ledger

import (
	"context"

	"spendlog/internal/core"
)

// Ports for storage adapters.
type (
	ExpenseWriter interface {
		// Append adds one record at the end of storage.
		Append(ctx context.Context, e core.Expense) error
	}

	ExpenseLister interface {
		// ListAll returns every stored record in insertion order.
		ListAll(ctx context.Context) ([]core.Expense, error)
	}

	ExpenseDeleter interface {
		// DeleteFirst removes the first record equal to e field by field.
		// Returns core.ErrNotFound and leaves storage untouched when nothing matches.
		DeleteFirst(ctx context.Context, e core.Expense) error
		// Clear removes every record, keeping the storage header.
		Clear(ctx context.Context) error
	}

	// Repository is everything the expense service needs from storage.
	Repository interface {
		ExpenseWriter
		ExpenseLister
		ExpenseDeleter
	}
)

// RemoveFirst returns rows without the first element equal to target and
// whether one was removed.
func RemoveFirst(rows []core.Expense, target core.Expense) ([]core.Expense, bool) {
	for i, row := range rows {
		if row == target {
			out := make([]core.Expense, 0, len(rows)-1)
			out = append(out, rows[:i]...)
			return append(out, rows[i+1:]...), true
		}
	}
	return rows, false
}
