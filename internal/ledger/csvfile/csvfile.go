// Package csvfile stores expenses in a single comma-delimited text file: one
// header row followed by one row per record, in insertion order.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
)

type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store backed by path, creating the file with the header row
// when it does not exist yet.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create expenses directory: %w", err)
		}
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.rewrite(core.Header, nil); err != nil {
			return nil, fmt.Errorf("create expenses file: %w", err)
		}
		slog.Info("Created expenses file", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("stat expenses file: %w", err)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes one row at the end of the file.
func (s *Store) Append(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open expenses file: %w", err)
	}
	defer f.Close()

	// A file edited by hand may lack the final newline.
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				return fmt.Errorf("write expenses file: %w", err)
			}
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(e.Fields()); err != nil {
		return fmt.Errorf("write expense row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush expense row: %w", err)
	}
	return nil
}

// ListAll reads every row after the header.
func (s *Store) ListAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, rows, err := s.read()
	return rows, err
}

// DeleteFirst removes the first row equal to e and rewrites the file.
func (s *Store) DeleteFirst(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.read()
	if err != nil {
		return err
	}
	rows, removed := ledger.RemoveFirst(rows, e)
	if !removed {
		return core.ErrNotFound
	}
	return s.rewrite(header, rows)
}

// Clear truncates the file to the header row.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewrite(core.Header, nil)
}

func (s *Store) read() ([]string, []core.Expense, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open expenses file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// rewrite replaces the file through a temporary sibling and a rename.
func (s *Store) rewrite(header []string, rows []core.Expense) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".expenses-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, header, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace expenses file: %w", err)
	}
	return nil
}

// Decode reads a header row and the records after it. An empty input yields
// the default header and no records.
func Decode(r io.Reader) ([]string, []core.Expense, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.Header, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var rows []core.Expense
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read expenses: %w", err)
		}
		rows = append(rows, core.FromFields(rec))
	}
	return header, rows, nil
}

// Encode writes header and rows in the storage file format.
func Encode(w io.Writer, header []string, rows []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range rows {
		if err := cw.Write(e.Fields()); err != nil {
			return fmt.Errorf("write expense row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush expenses: %w", err)
	}
	return nil
}
