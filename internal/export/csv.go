// Package export materializes a monthly report as a downloadable CSV file.
//
// The layout is fixed: an expense section, a blank row, then a category
// summary section. Category fields are always wrapped in double quotes and
// are not escaped, so a category containing a quote yields malformed CSV.
package export

import (
	"strconv"
	"strings"
	"time"

	"raport/internal/core"
)

const (
	// ContentType is sent with the download response.
	ContentType = "text/csv;charset=utf-8;"

	headerExpenses = "Data,Kwota,Kategoria"
	summaryTitle   = "Podsumowanie kategorii"
	headerSummary  = "Kategoria,Suma"
	filenamePrefix = "raport-miesieczny-"
)

// GenerateCSV renders the report rows in source order, joined by "\n"
// without a trailing newline. Expense amounts and category totals share one
// number format, FormatNumber, so an amount of 12.5 is written as "12.5"
// rather than padded to two decimals.
func GenerateCSV(r core.MonthlyReport) string {
	rows := make([]string, 0, len(r.Expenses)+len(r.CategoryTotals)+4)
	rows = append(rows, headerExpenses)
	for _, e := range r.Expenses {
		rows = append(rows, strings.Join([]string{e.Date, FormatNumber(e.Amount), quote(e.Category)}, ","))
	}
	rows = append(rows, "", summaryTitle, headerSummary)
	for _, c := range r.CategoryTotals {
		rows = append(rows, quote(c.Category)+","+FormatNumber(c.Total))
	}
	return strings.Join(rows, "\n")
}

// CanExport reports whether an export action should be enabled for r.
func CanExport(r *core.MonthlyReport) bool {
	return r != nil && r.HasData()
}

// Filename names the download after the export time, not the report month.
func Filename(now time.Time) string {
	return filenamePrefix + core.CurrentMonthKey(now).String() + ".csv"
}

// FormatNumber prints the shortest decimal that round-trips v, so 12.5
// stays "12.5" and 12 stays "12".
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + s + `"`
}
