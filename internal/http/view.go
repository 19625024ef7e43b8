package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"raport/internal/core"
	"raport/internal/export"
	"raport/internal/report"
)

// monthOptionCount is how many months the selector offers.
const monthOptionCount = 24

var polishMonths = [...]string{
	"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec",
	"lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień",
}

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Value    core.MonthKey
	Label    string
	Selected bool
}

// MonthOptions returns the month of now and the 23 before it, newest first.
func MonthOptions(now time.Time) []MonthOption {
	opts := make([]MonthOption, 0, monthOptionCount)
	k := core.CurrentMonthKey(now)
	for i := 0; i < monthOptionCount; i++ {
		opts = append(opts, MonthOption{Value: k, Label: MonthLabel(k)})
		k = k.Previous()
	}
	return opts
}

// MonthLabel renders "2024-03" as "marzec 2024". Keys outside 01..12 are
// returned unchanged.
func MonthLabel(k core.MonthKey) string {
	y, m, err := k.YearMonth()
	if err != nil {
		return k.String()
	}
	return polishMonths[m-1] + " " + strconv.Itoa(y)
}

// FormatDate turns an ISO date into DD.MM.YYYY. Anything else is shown as is.
func FormatDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006")
}

// FormatPLN renders an amount with two decimals and the currency code.
func FormatPLN(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + " PLN"
}

type expenseRow struct {
	Date     string
	Amount   string
	Category string
}

type categoryRow struct {
	Category string
	Amount   string
	Percent  string
	// Width is the bar width in percent, never above 100.
	Width string
}

// reportView is the data behind the report partial.
type reportView struct {
	Month      core.MonthKey
	MonthLabel string
	Loading    bool
	Error      string
	HasReport  bool
	HasData    bool
	Expenses   []expenseRow
	Categories []categoryRow
	Total      string
	CanExport  bool
	ExportURL  string
	ReloadURL  string
}

func newReportView(st report.State) reportView {
	v := reportView{
		Month:      st.SelectedMonth,
		MonthLabel: MonthLabel(st.SelectedMonth),
		Loading:    st.Loading,
		Error:      st.Error,
		HasReport:  st.Report != nil,
		CanExport:  st.Error == "" && export.CanExport(st.Report),
		ExportURL:  "/ui/report/export?month=" + st.SelectedMonth.String(),
		ReloadURL:  "/ui/report?month=" + st.SelectedMonth.String(),
	}
	if st.Report == nil {
		return v
	}

	r := st.Report
	v.HasData = r.HasData()
	for _, e := range r.Expenses {
		v.Expenses = append(v.Expenses, expenseRow{
			Date:     FormatDate(e.Date),
			Amount:   FormatPLN(e.Amount),
			Category: e.Category,
		})
	}

	sum := decimal.Zero
	for _, c := range r.CategoryTotals {
		sum = sum.Add(decimal.NewFromFloat(c.Total))
	}
	v.Total = FormatPLN(sum.InexactFloat64())
	for _, c := range r.CategoryTotals {
		pct := percentOf(decimal.NewFromFloat(c.Total), sum)
		v.Categories = append(v.Categories, categoryRow{
			Category: c.Category,
			Amount:   FormatPLN(c.Total),
			Percent:  pct.StringFixed(1) + "%",
			Width:    barWidth(pct),
		})
	}
	return v
}

func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(100))
}

func barWidth(pct decimal.Decimal) string {
	hundred := decimal.NewFromInt(100)
	switch {
	case pct.GreaterThan(hundred):
		pct = hundred
	case pct.IsNegative():
		pct = decimal.Zero
	}
	return pct.StringFixed(1)
}

// pageView is the data behind the full page.
type pageView struct {
	Options  []MonthOption
	Selected core.MonthKey
	Title    string
}

func newPageView(now time.Time, selected core.MonthKey) pageView {
	opts := MonthOptions(now)
	for i := range opts {
		opts[i].Selected = opts[i].Value == selected
	}
	return pageView{
		Options:  opts,
		Selected: selected,
		Title:    fmt.Sprintf("Raport miesięczny: %s", MonthLabel(selected)),
	}
}
