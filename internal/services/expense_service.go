package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/ledger/csvfile"
	"spendlog/internal/log"
)

// ExpenseService runs the tracker actions against a storage backend.
type ExpenseService struct {
	repo    ledger.Repository
	logger  *log.Logger
	onClose func() error
}

func NewExpenseService(repo ledger.Repository, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExpenseService{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentExpense),
	}
}

// WithCleanup registers a function run by Close, typically the backend's.
func (s *ExpenseService) WithCleanup(fn func() error) *ExpenseService {
	s.onClose = fn
	return s
}

// Add validates the form input and appends one record.
func (s *ExpenseService) Add(ctx context.Context, date, category, amount, note string) (core.Expense, error) {
	e, err := core.NewExpense(date, category, amount, note)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected expense input", log.FieldError, err.Error(), log.FieldOperation, log.OpValidate)
		return core.Expense{}, err
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("append expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense added", log.NewFields().WithExpense(e).WithOperation(log.OpAppend).ToSlice()...)
	return e, nil
}

// List loads every record and the running total.
func (s *ExpenseService) List(ctx context.Context) (core.Listing, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return core.Listing{}, fmt.Errorf("list expenses: %w", err)
	}
	listing, err := core.NewListing(rows)
	if err != nil {
		s.logger.WarnContext(ctx, "Expenses file has a malformed row", log.FieldError, err.Error(), log.FieldOperation, log.OpList)
		return core.Listing{}, err
	}
	return listing, nil
}

// Snapshot is every stored record as read by one call, tagged with
// core.Fingerprint of its contents.
type Snapshot struct {
	Rows    []core.Expense
	Version string
}

// Snapshot re-reads storage. Callers that cache derived results key them
// on Version, so writes from another process are picked up on the next read.
func (s *ExpenseService) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list expenses: %w", err)
	}
	return Snapshot{Rows: rows, Version: core.Fingerprint(rows)}, nil
}

// ClearAll removes every record.
func (s *ExpenseService) ClearAll(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	s.logger.InfoContext(ctx, "All expenses cleared", log.FieldOperation, log.OpClear)
	return nil
}

// Delete removes the first record equal to the selected one. A zero
// selection yields core.ErrNoSelection, a stale one core.ErrNotFound.
func (s *ExpenseService) Delete(ctx context.Context, selected core.Expense) error {
	if selected == (core.Expense{}) {
		return core.ErrNoSelection
	}
	if err := s.repo.DeleteFirst(ctx, selected); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Selected expense no longer stored", log.NewFields().WithExpense(selected).WithOperation(log.OpDelete).ToSlice()...)
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.NewFields().WithExpense(selected).WithOperation(log.OpDelete).ToSlice()...)
	return nil
}

// CategoryTotals aggregates amounts per category for the pie chart.
func (s *ExpenseService) CategoryTotals(ctx context.Context) ([]core.CategoryAmount, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return core.CategoryTotals(rows)
}

// MonthlyReport returns the records of a YYYY-MM month.
func (s *ExpenseService) MonthlyReport(ctx context.Context, month string) (core.MonthReport, error) {
	month, err := core.ParseMonth(month)
	if err != nil {
		return core.MonthReport{}, err
	}
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return core.MonthReport{}, fmt.Errorf("list expenses: %w", err)
	}
	return core.MonthlyReport(rows, month)
}

// Export writes every record in the storage file format.
func (s *ExpenseService) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return csvfile.Encode(w, core.Header, rows)
}

// Close releases the backend.
func (s *ExpenseService) Close() error {
	if s.onClose == nil {
		return nil
	}
	if err := s.onClose(); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
