package google

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"raport/internal/core"
)

func toRow(e core.Expense) []any {
	return []any{e.Date.ISO(), e.Description, e.Amount.Float(), e.Category}
}

// parseRows converts a values matrix (as returned by Sheets API) into the
// expenses of month. Rows that are blank, headers, or otherwise malformed are
// counted in skipped. Row numbers become expense IDs.
func parseRows(values [][]any, month core.MonthKey) (out []core.Expense, skipped int) {
	for i, row := range values {
		cols := toStrings(row)
		if isBlank(cols) {
			continue
		}
		if len(cols) < 4 {
			skipped++
			continue
		}
		d, ok := parseDate(cols[0])
		if !ok {
			// the header row lands here too
			if i > 0 {
				skipped++
			}
			continue
		}
		if !month.Contains(d) {
			continue
		}
		cents, ok := parseAmount(row[2])
		if !ok {
			skipped++
			continue
		}
		category := cols[3]
		if category == "" {
			skipped++
			continue
		}
		out = append(out, core.Expense{
			ID:          int64(i + 1),
			Date:        d,
			Description: cols[1],
			Amount:      core.Money{Cents: cents},
			Category:    category,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out, skipped
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006"}

func parseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t}, true
		}
	}
	return core.Date{}, false
}

// parseAmount accepts raw numbers and text such as "1 234,50 zł".
func parseAmount(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		cents := core.CentsFromFloat(x)
		return cents, cents > 0
	case string:
		s := strings.NewReplacer("zł", "", "PLN", "", " ", "", "\u00a0", "").Replace(x)
		cents, err := core.ParseDecimalToCents(s)
		return cents, err == nil
	default:
		return 0, false
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
