package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"raport/internal/core"
	applog "raport/internal/log"
	ports "raport/internal/sheets"
)

// Publisher announces a stored expense to the sync worker.
type Publisher interface {
	PublishExpenseSync(ctx context.Context, id int64, month core.MonthKey) error
}

// Invalidator drops derived data for a month after a write.
type Invalidator interface {
	Invalidate(month core.MonthKey)
}

// ExpenseService orchestrates expense writes across the store, the report
// cache and AMQP.
type ExpenseService struct {
	store     ports.ExpenseWriter
	publisher Publisher
	reports   Invalidator
	logger    *applog.Logger
	closers   []func() error
}

type ExpenseOption func(*ExpenseService)

// WithPublisher enables sync messages after each write.
func WithPublisher(p Publisher) ExpenseOption {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithInvalidator registers the report cache to drop after each write.
func WithInvalidator(i Invalidator) ExpenseOption {
	return func(s *ExpenseService) { s.reports = i }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(fn func() error) ExpenseOption {
	return func(s *ExpenseService) { s.closers = append(s.closers, fn) }
}

func WithExpenseLogger(l *applog.Logger) ExpenseOption {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store ports.ExpenseWriter, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.Discard()
	}
	s.logger = s.logger.WithComponent(applog.ComponentExpense)
	return s
}

// CreateExpense validates and stores e. Publishing is best effort: the write
// has already succeeded and the worker sweep picks up anything missed.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	if s.store == nil {
		return "", errors.New("expense store not configured")
	}
	if err := e.Validate(); err != nil {
		return "", err
	}

	ref, err := s.store.Append(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	month := e.Date.Month()
	if s.reports != nil {
		s.reports.Invalidate(month)
	}

	if s.publisher == nil {
		return ref, nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored expense has no numeric id, skipping sync message", "ref", ref)
		return ref, nil
	}
	if err := s.publisher.PublishExpenseSync(ctx, id, month); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldExpenseID, id,
			applog.FieldError, err)
	}
	return ref, nil
}

// Close releases registered resources and joins their errors.
func (s *ExpenseService) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
