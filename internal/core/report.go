package core

// ExpenseReportItem is a single expense line of a monthly report.
type ExpenseReportItem struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// CategoryTotal is the sum of all expenses sharing one category label.
// Uniqueness of Category within a report is not enforced.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// MonthlyReport is the payload served for one month.
type MonthlyReport struct {
	Expenses       []ExpenseReportItem `json:"expenses"`
	CategoryTotals []CategoryTotal     `json:"category_totals"`
}

// HasData reports whether the report carries any expense or category row.
func (r MonthlyReport) HasData() bool {
	return len(r.Expenses) > 0 || len(r.CategoryTotals) > 0
}

// Sum returns the aggregate of all category totals.
func (r MonthlyReport) Sum() float64 {
	var cents int64
	for _, c := range r.CategoryTotals {
		cents += CentsFromFloat(c.Total)
	}
	return Money{Cents: cents}.Float()
}

// Clone returns a deep copy so cached reports cannot be mutated by callers.
func (r MonthlyReport) Clone() MonthlyReport {
	out := MonthlyReport{}
	if r.Expenses != nil {
		out.Expenses = append(make([]ExpenseReportItem, 0, len(r.Expenses)), r.Expenses...)
	}
	if r.CategoryTotals != nil {
		out.CategoryTotals = append(make([]CategoryTotal, 0, len(r.CategoryTotals)), r.CategoryTotals...)
	}
	return out
}
