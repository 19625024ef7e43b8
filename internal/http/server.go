// Package http serves the report API and the server-rendered report pages.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"raport/internal/core"
	applog "raport/internal/log"
	"raport/internal/middleware/ratelimit"
	"raport/internal/middleware/security"
	"raport/internal/middleware/trace"
	"raport/internal/report"
	appweb "raport/web"
)

const (
	defaultUITimeout = 10 * time.Second
	readyTimeout     = 2 * time.Second
)

// ReportSource builds the report of one month.
type ReportSource interface {
	MonthlyReport(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error)
}

// ExpenseCreator records a new expense and returns its reference.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e core.Expense) (string, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Reports  ReportSource
	Expenses ExpenseCreator
	// Fetcher loads reports for the UI pages. When nil the pages read
	// Reports in process.
	Fetcher report.Fetcher
	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string
	// UITimeout bounds one report load of a UI page.
	UITimeout time.Duration
	// RequestsPerMinute limits POST requests per client.
	RequestsPerMinute int
	Logger            *applog.Logger
	Now               func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	reports   ReportSource
	expenses  ExpenseCreator
	fetcher   report.Fetcher
	ready     func(ctx context.Context) error
	apiToken  string
	uiTimeout time.Duration
	logger    *applog.Logger
	now       func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	uiTimeout := d.UITimeout
	if uiTimeout <= 0 {
		uiTimeout = defaultUITimeout
	}

	s := &Server{
		reports:   d.Reports,
		expenses:  d.Expenses,
		fetcher:   d.Fetcher,
		ready:     d.Ready,
		apiToken:  d.APIToken,
		uiTimeout: uiTimeout,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		now:       now,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RequestsPerMinute}),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)
	if s.fetcher == nil && s.reports != nil {
		s.fetcher = report.FetcherFunc(s.reports.MonthlyReport)
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssets(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/reports/monthly/{month}", s.requireToken(s.handleMonthlyReport))
	mux.HandleFunc("POST /api/expenses", s.requireToken(s.handleCreateExpense))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/report", s.handleReportPartial)
	mux.HandleFunc("GET /ui/report/export", s.handleExport)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// middleware wraps h, outermost first: tracing, request logger, security
// headers, probe detection, then the POST rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited, http.MethodPost)(h)
	detected := s.detector.Middleware(s.logger)(limited)
	headers := security.Headers(security.DefaultHeadersConfig())(detected)
	logged := applog.Middleware(s.logger, trace.GetRequestID)(headers)
	return s.tracer.Handler(logged)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r))
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics exposes request counters for diagnostics.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeText(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeText(w, http.StatusOK, "ready")
}
