package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "finanze/internal/sheets"
)

// Store is an in-memory raw sheet source. Sheet lookups ignore case.
type Store struct {
	mu     sync.RWMutex
	order  []string
	sheets map[string][][]any
}

var (
	_ ports.Source         = (*Store)(nil)
	_ ports.SnapshotWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{sheets: map[string][][]any{}}
}

// NewFromDir loads every <sheet>.csv file in dir as a sheet named after the file.
// Cells are kept as text, the way a spreadsheet export writes them.
func NewFromDir(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	s := New()
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		values, err := readCSV(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		s.Put(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), values)
	}
	return s, nil
}

// Put replaces the named sheet.
func (s *Store) Put(name string, values [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := ports.MatchName(s.order, name); ok {
		name = existing
	} else {
		s.order = append(s.order, name)
	}
	s.sheets[name] = ports.CloneValues(values)
}

// SaveSnapshot implements ports.SnapshotWriter.
func (s *Store) SaveSnapshot(_ context.Context, sheet string, values [][]any) error {
	s.Put(sheet, values)
	return nil
}

func (s *Store) SheetNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...), nil
}

func (s *Store) ReadSheet(_ context.Context, name string) ([][]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := ports.MatchName(s.order, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrSheetNotFound, name)
	}
	return ports.CloneValues(s.sheets[key]), nil
}

func readCSV(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out [][]any
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		out = append(out, row)
	}
	return out, nil
}
