package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"raport/internal/core"
	"raport/internal/export"
	applog "raport/internal/log"
	"raport/internal/report"
)

// loadReport runs one report view for month within the UI timeout. See
// report.Load for how invalid months and failed loads combine.
func (s *Server) loadReport(ctx context.Context, month string) report.State {
	ctx, cancel := context.WithTimeout(ctx, s.uiTimeout)
	defer cancel()

	return report.Load(ctx, s.fetcher, month,
		report.WithClock(s.now),
		report.WithLogger(applog.FromContext(ctx).WithComponent(applog.ComponentUI)))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentUI)
	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	selected := core.CurrentMonthKey(s.now())
	if m := strings.TrimSpace(r.URL.Query().Get("month")); core.IsValidMonthKey(m) {
		selected = core.MonthKey(m)
	}
	s.render(w, r, "index.html", newPageView(s.now(), selected))
}

// handleReportPartial renders the report section for ?month=.
func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.fetcher == nil {
		http.Error(w, "report source not configured", http.StatusServiceUnavailable)
		return
	}
	if s.templates == nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	st := s.loadReport(ctx, strings.TrimSpace(r.URL.Query().Get("month")))
	s.render(w, r, "report.html", newReportView(st))
}

// handleExport serves the CSV download for ?month=.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentExport)
	if s.fetcher == nil {
		writeText(w, http.StatusServiceUnavailable, "report source not configured")
		return
	}

	st := s.loadReport(ctx, strings.TrimSpace(r.URL.Query().Get("month")))
	switch {
	case st.Loading:
		writeText(w, http.StatusGatewayTimeout, report.MsgLoadFailed)
		return
	case st.Error != "":
		writeText(w, exportErrorStatus(st.Error), st.Error)
		return
	case !export.CanExport(st.Report):
		writeText(w, http.StatusUnprocessableEntity, "Brak danych do eksportu")
		return
	}

	filename := export.Filename(s.now())
	body := export.GenerateCSV(*st.Report)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))

	fields := applog.NewFields().WithOperation(applog.OpExport).WithMonth(st.SelectedMonth.String())
	logger.InfoContext(ctx, "Report exported", fields.ToSlice(
		applog.FieldCount, len(st.Report.Expenses),
		"filename", filename)...)
}

func exportErrorStatus(msg string) int {
	switch msg {
	case report.MsgInvalidMonth:
		return http.StatusBadRequest
	case report.MsgUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// render executes into a buffer so a template failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		fields := applog.NewFields().WithOperation(applog.OpRender).WithError(err)
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			fields.ToSlice("template", name)...)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
