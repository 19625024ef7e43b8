package http

import (
	"errors"
	"net/http"

	"raport/internal/core"
	applog "raport/internal/log"
)

// requireToken rejects requests without the configured bearer token.
// With no token configured every request passes.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" && !tokenMatches(bearerToken(r), s.apiToken) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Unauthorized API request")
			w.Header().Set("WWW-Authenticate", `Bearer realm="raport"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// handleMonthlyReport serves GET /api/reports/monthly/{month}.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAPI)

	raw := r.PathValue("month")
	if !core.IsValidMonthKey(raw) {
		logger.DebugContext(ctx, "Rejected month key", applog.FieldMonth, raw)
		writeError(w, r, http.StatusBadRequest, "invalid month format, expected YYYY-MM")
		return
	}
	month := core.MonthKey(raw)

	if s.reports == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report source not configured")
		return
	}

	rep, err := s.reports.MonthlyReport(ctx, month)
	if err != nil {
		logger.ErrorContext(ctx, "Monthly report failed", applog.FieldMonth, month.String(), applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to build report")
		return
	}

	logger.DebugContext(ctx, "Monthly report served",
		applog.FieldMonth, month.String(),
		applog.FieldCount, len(rep.Expenses))
	writeJSON(w, r, http.StatusOK, rep)
}

// handleCreateExpense serves POST /api/expenses.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAPI)

	if s.expenses == nil {
		writeError(w, r, http.StatusServiceUnavailable, "expense storage not configured")
		return
	}

	exp, err := ParseExpenseRequest(r, w, s.now())
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, errBadRequest) {
			status = http.StatusBadRequest
		}
		logger.DebugContext(ctx, "Rejected expense request", applog.FieldError, err)
		writeError(w, r, status, err.Error())
		return
	}
	if err := exp.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ref, err := s.expenses.CreateExpense(ctx, exp)
	if err != nil {
		logger.ErrorContext(ctx, "Expense create failed",
			applog.FieldError, err,
			applog.FieldCategory, exp.Category,
			applog.FieldAmount, exp.Amount.Cents)
		writeError(w, r, http.StatusInternalServerError, "failed to save expense")
		return
	}

	logger.InfoContext(ctx, "Expense created",
		applog.FieldExpenseID, ref,
		applog.FieldMonth, exp.Date.Month().String(),
		applog.FieldAmount, exp.Amount.Cents)
	writeJSON(w, r, http.StatusCreated, createdBody{ID: ref, Month: exp.Date.Month().String()})
}
