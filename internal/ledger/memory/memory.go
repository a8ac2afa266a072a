package memory

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/ledger/csvfile"
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

func New(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...)}
}

// NewFromFile seeds the store from a storage-format file. A missing or
// unreadable file yields an empty store.
func NewFromFile(path string) *Store {
	f, err := os.Open(path)
	if err != nil {
		return New()
	}
	defer f.Close()
	_, rows, err := csvfile.Decode(f)
	if err != nil {
		slog.Warn("Ignoring unreadable seed file", "path", path, "error", err)
		return New()
	}
	return New(rows...)
}

// Append stores the expense.
func (s *Store) Append(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return nil
}

// ListAll returns a copy of the stored records.
func (s *Store) ListAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, nil
	}
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) DeleteFirst(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, removed := ledger.RemoveFirst(s.items, e)
	if !removed {
		return core.ErrNotFound
	}
	s.items = rows
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}
