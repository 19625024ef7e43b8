package sheets

import (
	"context"
	"errors"

	"raport/internal/core"
)

// ErrNotFound is returned by lookups of an expense that does not exist.
var ErrNotFound = errors.New("expense not found")

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseLister returns the recorded expenses of one month. A month key
	// that matches no stored date yields an empty slice.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error)
	}

	// ExpenseSyncer tracks which locally stored expenses still have to be
	// mirrored to the spreadsheet.
	ExpenseSyncer interface {
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		PendingSync(ctx context.Context, limit int) ([]core.Expense, error)
		MarkSynced(ctx context.Context, id int64, rowRef string) error
		MarkSyncError(ctx context.Context, id int64, reason string) error
	}

	// Store is a backend that can both record and list expenses.
	Store interface {
		ExpenseWriter
		ExpenseLister
	}
)
