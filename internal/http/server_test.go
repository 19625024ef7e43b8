package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"raport/internal/core"
	"raport/internal/reportclient"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeReports struct {
	reports map[core.MonthKey]core.MonthlyReport
	err     error
	calls   []core.MonthKey
}

func (f *fakeReports) MonthlyReport(_ context.Context, month core.MonthKey) (core.MonthlyReport, error) {
	f.calls = append(f.calls, month)
	if f.err != nil {
		return core.MonthlyReport{}, f.err
	}
	if r, ok := f.reports[month]; ok {
		return r, nil
	}
	return core.MonthlyReport{Expenses: []core.ExpenseReportItem{}, CategoryTotals: []core.CategoryTotal{}}, nil
}

type fakeExpenses struct {
	got []core.Expense
	err error
}

func (f *fakeExpenses) CreateExpense(_ context.Context, e core.Expense) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.got = append(f.got, e)
	return "42", nil
}

func sampleReport() core.MonthlyReport {
	return core.MonthlyReport{
		Expenses:       []core.ExpenseReportItem{{Date: "2024-03-05", Amount: 12.5, Category: "Food"}},
		CategoryTotals: []core.CategoryTotal{{Category: "Food", Total: 12.5}},
	}
}

func newTestServer(t *testing.T, d Deps) *Server {
	t.Helper()
	if d.Now == nil {
		d.Now = func() time.Time { return fixedNow }
	}
	srv := NewServer(":0", d)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	ready := errors.New("db down")
	srv := newTestServer(t, Deps{Ready: func(context.Context) error { return ready }})

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}

	ready = nil
	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}
}

func TestMonthlyReportAPI(t *testing.T) {
	reports := &fakeReports{reports: map[core.MonthKey]core.MonthlyReport{"2024-03": sampleReport()}}

	tests := []struct {
		name       string
		token      string
		path       string
		auth       string
		sourceErr  error
		wantStatus int
	}{
		{"ok without token", "", "/api/reports/monthly/2024-03", "", nil, http.StatusOK},
		{"ok with token", "s3cret", "/api/reports/monthly/2024-03", "Bearer s3cret", nil, http.StatusOK},
		{"missing token", "s3cret", "/api/reports/monthly/2024-03", "", nil, http.StatusUnauthorized},
		{"wrong token", "s3cret", "/api/reports/monthly/2024-03", "Bearer nope", nil, http.StatusUnauthorized},
		{"malformed month", "", "/api/reports/monthly/2024-3", "", nil, http.StatusBadRequest},
		{"lax month passes format", "", "/api/reports/monthly/2024-13", "", nil, http.StatusOK},
		{"backend error", "", "/api/reports/monthly/2024-03", "", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports.err = tt.sourceErr
			srv := newTestServer(t, Deps{Reports: reports, APIToken: tt.token})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := serve(srv, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("request id header missing")
			}
		})
	}
}

func TestMonthlyReportAPI_Body(t *testing.T) {
	srv := newTestServer(t, Deps{Reports: &fakeReports{reports: map[core.MonthKey]core.MonthlyReport{"2024-03": sampleReport()}}})
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/reports/monthly/2024-03", nil))

	want := `{"expenses":[{"date":"2024-03-05","amount":12.5,"category":"Food"}],"category_totals":[{"category":"Food","total":12.5}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s\nwant %s", got, want)
	}
}

func TestCreateExpenseAPI(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantStatus int
	}{
		{"created", `{"date":"2024-03-05","amount":"12.50","category":"Food","description":"lunch"}`, nil, http.StatusCreated},
		{"malformed json", `{"date":`, nil, http.StatusBadRequest},
		{"invalid amount", `{"date":"2024-03-05","amount":0,"category":"Food"}`, nil, http.StatusUnprocessableEntity},
		{"empty category", `{"date":"2024-03-05","amount":3,"category":"  "}`, nil, http.StatusUnprocessableEntity},
		{"store failure", `{"date":"2024-03-05","amount":3,"category":"Food"}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &fakeExpenses{err: tt.storeErr}
			srv := newTestServer(t, Deps{Expenses: exp})

			rec := serve(srv, httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(tt.body)))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var body createdBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ID != "42" || body.Month != "2024-03" {
				t.Errorf("body = %+v", body)
			}
			if len(exp.got) != 1 || exp.got[0].Amount.Cents != 1250 || exp.got[0].Description != "lunch" {
				t.Errorf("stored = %+v", exp.got)
			}
		})
	}
}

func TestCreateExpenseAPI_RateLimited(t *testing.T) {
	srv := newTestServer(t, Deps{Expenses: &fakeExpenses{}, RequestsPerMinute: 2})
	body := `{"date":"2024-03-05","amount":1,"category":"Food"}`

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.9:4000"
		last = serve(srv, req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}

	// Reads are never limited.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	if rec := serve(srv, req); rec.Code != http.StatusOK {
		t.Errorf("GET after limit = %d", rec.Code)
	}
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, Deps{Reports: &fakeReports{}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Raport miesięczny", `value="2024-03" selected`, "marzec 2024", "kwiecień 2022", `/ui/report?month=2024-03`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if strings.Count(body, "<option ") != 24 {
		t.Errorf("options = %d, want 24", strings.Count(body, "<option "))
	}

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}
}

func TestReportPartial(t *testing.T) {
	reports := &fakeReports{reports: map[core.MonthKey]core.MonthlyReport{
		"2024-03": sampleReport(),
		"2024-02": sampleReport(),
	}}
	srv := newTestServer(t, Deps{Reports: reports})

	tests := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "current month by default",
			query:    "",
			contains: []string{"marzec 2024", "05.03.2024", "12.50 PLN", "Food", "100.0%", "Eksportuj CSV", "/ui/report/export?month=2024-03"},
			excludes: []string{"disabled"},
		},
		{
			name:     "selected month",
			query:    "?month=2024-02",
			contains: []string{"luty 2024"},
		},
		{
			name:     "empty month shows no-data state",
			query:    "?month=2023-01",
			contains: []string{"Brak danych za styczeń 2023", "disabled"},
		},
		{
			name:     "invalid month keeps current data under the error",
			query:    "?month=march",
			contains: []string{"Nieprawidłowy format miesiąca", "Spróbuj ponownie", "marzec 2024", "12.50 PLN"},
			excludes: []string{`href="/ui/report/export`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/report"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := rec.Body.String()
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("partial missing %q:\n%s", want, body)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(body, bad) {
					t.Errorf("partial should not contain %q", bad)
				}
			}
		})
	}
}

func TestReportPartial_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", reportclient.ErrUnauthorized, "Brak autoryzacji, zaloguj się ponownie"},
		{"bad month", reportclient.ErrBadMonth, "Nieprawidłowy format miesiąca"},
		{"other", &reportclient.StatusError{Code: 503}, "Wystąpił błąd podczas ładowania danych, spróbuj ponownie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{Reports: &fakeReports{err: tt.err}})
			rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/report?month=2024-03", nil))
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q:\n%s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestReportPartial_OverHTTPClient(t *testing.T) {
	api := newTestServer(t, Deps{
		Reports:  &fakeReports{reports: map[core.MonthKey]core.MonthlyReport{"2024-03": sampleReport()}},
		APIToken: "tok",
	})
	backend := httptest.NewServer(api.Handler)
	defer backend.Close()

	good, err := reportclient.New(backend.URL, reportclient.WithToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	bad, _ := reportclient.New(backend.URL, reportclient.WithToken("wrong"))

	ui := newTestServer(t, Deps{Fetcher: good})
	if body := serve(ui, httptest.NewRequest(http.MethodGet, "/ui/report", nil)).Body.String(); !strings.Contains(body, "12.50 PLN") {
		t.Errorf("authorized body:\n%s", body)
	}

	ui = newTestServer(t, Deps{Fetcher: bad})
	if body := serve(ui, httptest.NewRequest(http.MethodGet, "/ui/report", nil)).Body.String(); !strings.Contains(body, "Brak autoryzacji") {
		t.Errorf("unauthorized body:\n%s", body)
	}
}

func TestExportDownload(t *testing.T) {
	reports := &fakeReports{reports: map[core.MonthKey]core.MonthlyReport{"2024-02": sampleReport()}}
	srv := newTestServer(t, Deps{Reports: reports})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/report/export?month=2024-02", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv;charset=utf-8;" {
		t.Errorf("Content-Type = %q", got)
	}
	// Named after the export date, not the report month.
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="raport-miesieczny-2024-03.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	want := "Data,Kwota,Kategoria\n2024-03-05,12.5,\"Food\"\n\nPodsumowanie kategorii\nKategoria,Suma\n\"Food\",12.5"
	if rec.Body.String() != want {
		t.Errorf("csv = %q\nwant %q", rec.Body.String(), want)
	}
}

func TestExportDownload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
	}{
		{"no data", "?month=2024-01", nil, http.StatusUnprocessableEntity},
		{"invalid month", "?month=2024/01", nil, http.StatusBadRequest},
		{"invalid month does not mask upstream failure", "?month=2024/01", reportclient.ErrUnauthorized, http.StatusUnauthorized},
		{"unauthorized upstream", "?month=2024-03", reportclient.ErrUnauthorized, http.StatusUnauthorized},
		{"upstream failure", "?month=2024-03", errors.New("down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{Reports: &fakeReports{
				reports: map[core.MonthKey]core.MonthlyReport{"2024-03": sampleReport()},
				err:     tt.err,
			}})
			rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/report/export"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Header().Get("Content-Disposition") != "" {
				t.Error("rejected export must not offer a download")
			}
		})
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}
