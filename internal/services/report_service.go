package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"raport/internal/cache"
	"raport/internal/core"
	applog "raport/internal/log"
	ports "raport/internal/sheets"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ReportService builds monthly reports from an expense backend.
type ReportService struct {
	lister ports.ExpenseLister
	cache  cache.Cache[core.MonthlyReport]
	group  singleflight.Group
	logger *applog.Logger

	// generation is bumped by Invalidate; a build only caches its result
	// when the month's generation did not move while it was reading.
	mu         sync.Mutex
	generation map[string]uint64
}

// NewReportService wires a report builder. A nil cache disables caching.
func NewReportService(lister ports.ExpenseLister, c cache.Cache[core.MonthlyReport], logger *applog.Logger) *ReportService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ReportService{
		lister:     lister,
		cache:      c,
		logger:     logger.WithComponent(applog.ComponentReport),
		generation: make(map[string]uint64),
	}
}

// MonthlyReport returns the report for month. Concurrent requests for the
// same month share one backend read.
func (s *ReportService) MonthlyReport(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error) {
	key := month.String()
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report cache hit", applog.FieldMonth, key)
			return r.Clone(), nil
		}
	}

	// the shared read must outlive any single caller giving up
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		gen := s.currentGeneration(key)
		expenses, err := s.lister.ListExpenses(shared, month)
		if err != nil {
			return nil, fmt.Errorf("list expenses for %s: %w", key, err)
		}
		r := BuildReport(expenses)
		if !s.store(key, gen, r) {
			s.logger.DebugContext(shared, "Report invalidated during build, not cached", applog.FieldMonth, key)
		}
		s.logger.InfoContext(shared, "Report built",
			applog.FieldMonth, key,
			applog.FieldCount, len(r.Expenses))
		return r, nil
	})

	select {
	case <-ctx.Done():
		return core.MonthlyReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.MonthlyReport{}, res.Err
		}
		return res.Val.(core.MonthlyReport).Clone(), nil
	}
}

// Invalidate drops the cached report of month.
func (s *ReportService) Invalidate(month core.MonthKey) {
	key := month.String()
	s.mu.Lock()
	s.generation[key]++
	if s.cache != nil {
		s.cache.Delete(key)
	}
	s.mu.Unlock()
	s.group.Forget(key)
}

func (s *ReportService) currentGeneration(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation[key]
}

// store caches r unless key was invalidated after gen was read.
func (s *ReportService) store(key string, gen uint64, r core.MonthlyReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation[key] != gen {
		return false
	}
	if s.cache != nil {
		s.cache.Set(key, r)
	}
	return true
}

// BuildReport turns stored expenses into the report payload: expenses in date
// order and one total per category, largest first, ties by name.
func BuildReport(expenses []core.Expense) core.MonthlyReport {
	sorted := append([]core.Expense(nil), expenses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	r := core.MonthlyReport{
		Expenses:       make([]core.ExpenseReportItem, 0, len(sorted)),
		CategoryTotals: []core.CategoryTotal{},
	}
	sums := map[string]int64{}
	for _, e := range sorted {
		r.Expenses = append(r.Expenses, core.ExpenseReportItem{
			Date:     e.Date.ISO(),
			Amount:   e.Amount.Float(),
			Category: e.Category,
		})
		sums[e.Category] += e.Amount.Cents
	}

	type total struct {
		name  string
		cents int64
	}
	totals := make([]total, 0, len(sums))
	for name, cents := range sums {
		totals = append(totals, total{name, cents})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].cents != totals[j].cents {
			return totals[i].cents > totals[j].cents
		}
		return totals[i].name < totals[j].name
	})
	for _, t := range totals {
		f, _ := decimal.New(t.cents, -2).Float64()
		r.CategoryTotals = append(r.CategoryTotals, core.CategoryTotal{Category: t.name, Total: f})
	}
	return r
}
