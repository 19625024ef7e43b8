package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"raport/internal/core"
	ports "raport/internal/sheets"
)

// SeedFile is the name of the optional seed file read by NewFromFiles.
// Each non-comment line is "YYYY-MM-DD;amount;category[;description]".
const SeedFile = "seed_expenses.txt"

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

var (
	_ ports.Store         = (*Store)(nil)
	_ ports.ExpenseSyncer = (*Store)(nil)
)

func New(seed ...core.Expense) *Store {
	s := &Store{}
	for _, e := range seed {
		s.insert(e)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_expenses.txt. Missing files and
// malformed lines are skipped.
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, SeedFile))...)
}

func (s *Store) insert(e core.Expense) int64 {
	s.nextID++
	e.ID = s.nextID
	s.items = append(s.items, e)
	return e.ID
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.insert(e)
	return strconv.FormatInt(id, 10), nil
}

// ListExpenses returns the expenses of month ordered by date then insertion.
func (s *Store) ListExpenses(_ context.Context, month core.MonthKey) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, e := range s.items {
		if month.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("get expense %d: %w", id, ports.ErrNotFound)
}

// The memory backend has nothing to mirror.
func (s *Store) PendingSync(context.Context, int) ([]core.Expense, error) { return nil, nil }

func (s *Store) MarkSynced(context.Context, int64, string) error { return nil }

func (s *Store) MarkSyncError(context.Context, int64, string) error { return nil }

func readSeed(path string) []core.Expense {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []core.Expense
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseSeedLine(line)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

func parseSeedLine(line string) (core.Expense, error) {
	parts := strings.SplitN(line, ";", 4)
	if len(parts) < 3 {
		return core.Expense{}, fmt.Errorf("want at least 3 fields, got %d", len(parts))
	}
	d, err := core.ParseDate(parts[0])
	if err != nil {
		return core.Expense{}, err
	}
	cents, err := core.ParseDecimalToCents(parts[1])
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Date:     d,
		Amount:   core.Money{Cents: cents},
		Category: strings.TrimSpace(parts[2]),
	}
	if len(parts) == 4 {
		e.Description = strings.TrimSpace(parts[3])
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
