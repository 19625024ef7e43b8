// Package report holds the client-side state of the monthly report view.
//
// A View owns the selected month, the last successfully loaded report,
// a loading flag and a user-facing error message. Every accepted month
// change starts a fetch cycle; cycles are numbered and only the newest
// one is allowed to write state, so a slow response for an old month
// never overwrites the data of the month currently selected.
//
// A failed fetch leaves the previously loaded report in place. Callers
// decide whether to show it underneath the error.
package report

import (
	"context"
	"sync"
	"time"

	"raport/internal/core"
	applog "raport/internal/log"
)

// Fetcher loads the report of one month.
type Fetcher interface {
	FetchMonthlyReport(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error)

func (f FetcherFunc) FetchMonthlyReport(ctx context.Context, month core.MonthKey) (core.MonthlyReport, error) {
	return f(ctx, month)
}

// State is an immutable snapshot of a View.
type State struct {
	SelectedMonth core.MonthKey
	Report        *core.MonthlyReport
	Loading       bool
	Error         string
}

// View is the state container of one report page view.
type View struct {
	fetcher  Fetcher
	logger   *applog.Logger
	onChange func(State)
	now      func() time.Time
	initial  core.MonthKey

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	seq     uint64
	pending int
	idle    chan struct{} // closed while pending == 0
}

// Option configures a View.
type Option func(*View)

// WithClock sets the time source used to pick the initial month.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// WithInitialMonth starts the view on month instead of the current one.
// Invalid keys are ignored.
func WithInitialMonth(month string) Option {
	return func(v *View) {
		if core.IsValidMonthKey(month) {
			v.initial = core.MonthKey(month)
		}
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *applog.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// OnChange registers a callback invoked with every new state. It runs
// outside the view lock and must not block for long.
func OnChange(fn func(State)) Option {
	return func(v *View) { v.onChange = fn }
}

// NewView creates the view for the current calendar month and starts the
// first fetch cycle. ctx bounds every request the view issues.
func NewView(ctx context.Context, f Fetcher, opts ...Option) *View {
	cctx, cancel := context.WithCancel(ctx)
	v := &View{
		fetcher: f,
		logger:  applog.FromContext(ctx).WithComponent(applog.ComponentReport),
		now:     time.Now,
		ctx:     cctx,
		cancel:  cancel,
		idle:    make(chan struct{}),
	}
	close(v.idle)
	for _, opt := range opts {
		opt(v)
	}
	month := v.initial
	if month == "" {
		month = core.CurrentMonthKey(v.now())
	}
	v.startFetch(month)
	return v
}

// Load runs one view to completion and returns its final state. A valid
// month is loaded directly. Any other non-empty month loads the current
// month first and is then rejected, so the state carries MsgInvalidMonth;
// when that first load failed its error is kept instead, since it is the
// one the user can act on. If ctx ends before the fetch does, the returned
// state is still loading.
func Load(ctx context.Context, f Fetcher, month string, opts ...Option) State {
	valid := core.IsValidMonthKey(month)
	if valid {
		opts = append(opts[:len(opts):len(opts)], WithInitialMonth(month))
	}

	v := NewView(ctx, f, opts...)
	defer v.Close()
	if err := v.Wait(ctx); err != nil {
		return v.Snapshot()
	}
	if month != "" && !valid && v.Snapshot().Error == "" {
		v.RequestMonthChange(month)
	}
	return v.Snapshot()
}

// RequestMonthChange selects month and fetches its report. An invalid key
// only sets the error message; the selection stays and nothing is fetched.
func (v *View) RequestMonthChange(month string) {
	if !core.IsValidMonthKey(month) {
		v.mu.Lock()
		v.state.Error = MsgInvalidMonth
		st := v.snapshotLocked()
		v.mu.Unlock()
		v.logger.Debug("Rejected month change", applog.FieldMonth, month)
		v.notify(st)
		return
	}
	v.startFetch(core.MonthKey(month))
}

// Reload fetches the selected month again.
func (v *View) Reload() {
	v.mu.Lock()
	month := v.state.SelectedMonth
	v.mu.Unlock()
	v.startFetch(month)
}

// Snapshot returns the current state. The report is a copy.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Wait blocks until no fetch cycle is in flight or ctx is done.
func (v *View) Wait(ctx context.Context) error {
	v.mu.Lock()
	idle := v.idle
	v.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding requests. Results arriving afterwards are dropped.
func (v *View) Close() {
	v.cancel()
}

func (v *View) startFetch(month core.MonthKey) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.state.SelectedMonth = month
	v.state.Loading = true
	v.state.Error = ""
	st := v.snapshotLocked()
	if v.pending == 0 {
		v.idle = make(chan struct{})
	}
	v.pending++
	v.mu.Unlock()

	v.notify(st)
	go v.fetch(seq, month)
}

func (v *View) fetch(seq uint64, month core.MonthKey) {
	report, err := v.fetcher.FetchMonthlyReport(v.ctx, month)

	v.mu.Lock()
	defer v.finish()
	if seq != v.seq || v.ctx.Err() != nil {
		v.mu.Unlock()
		v.logger.Debug("Discarded stale report response", applog.FieldMonth, month.String(), "seq", seq)
		return
	}
	if err != nil {
		v.state.Error = Message(err)
	} else {
		r := report.Clone()
		v.state.Report = &r
		v.state.Error = ""
	}
	v.state.Loading = false
	st := v.snapshotLocked()
	v.mu.Unlock()

	if err != nil {
		v.logger.Warn("Report fetch failed", applog.FieldMonth, month.String(), applog.FieldError, err)
	}
	v.notify(st)
}

// finish marks one cycle as complete, after its observers were notified.
func (v *View) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending--
	if v.pending == 0 {
		close(v.idle)
	}
}

func (v *View) snapshotLocked() State {
	st := v.state
	if st.Report != nil {
		r := st.Report.Clone()
		st.Report = &r
	}
	return st
}

func (v *View) notify(st State) {
	if v.onChange != nil {
		v.onChange(st)
	}
}
