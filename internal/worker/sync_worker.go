package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"raport/internal/amqp"
	"raport/internal/core"
	applog "raport/internal/log"
	ports "raport/internal/sheets"
)

// statusReader is implemented by stores that remember whether an expense
// was already mirrored.
type statusReader interface {
	SyncStatus(ctx context.Context, id int64) (status, ref string, err error)
}

const statusSynced = "synced"

// SyncWorker mirrors locally stored expenses to the spreadsheet.
type SyncWorker struct {
	store     ports.ExpenseSyncer
	sheets    ports.ExpenseWriter
	batchSize int
	logger    *applog.Logger

	// serialises appends so a message and a sweep never write the same row twice
	mu sync.Mutex
}

func NewSyncWorker(store ports.ExpenseSyncer, sheets ports.ExpenseWriter, batchSize int, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		sheets:    sheets,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSyncMessage processes a single expense sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		applog.FieldExpenseID, msg.ID,
		applog.FieldMonth, msg.Month.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.alreadySynced(ctx, msg.ID) {
		w.logger.DebugContext(ctx, "Expense already synced, skipping", applog.FieldExpenseID, msg.ID)
		return nil
	}

	e, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, ports.ErrNotFound) {
		// nothing to retry; ack and move on
		w.logger.WarnContext(ctx, "Sync message for unknown expense", applog.FieldExpenseID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}
	return w.syncExpense(ctx, e)
}

// ProcessPendingExpenses syncs one batch of expenses the queue may have
// missed. It returns how many were synced.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch once when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldCount, n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending expenses", applog.FieldCount, len(pending))

	synced := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncExpense(ctx, e); err != nil {
			fields := applog.NewFields().WithOperation(applog.OpSync).WithError(err)
			w.logger.ErrorContext(ctx, "Failed to sync expense", fields.ToSlice(applog.FieldExpenseID, e.ID)...)
			continue
		}
		synced++
	}
	return synced, nil
}

// Run sweeps pending expenses every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPendingExpenses(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", applog.FieldError, err)
			}
		}
	}
}

func (w *SyncWorker) alreadySynced(ctx context.Context, id int64) bool {
	sr, ok := w.store.(statusReader)
	if !ok {
		return false
	}
	status, _, err := sr.SyncStatus(ctx, id)
	return err == nil && status == statusSynced
}

func (w *SyncWorker) syncExpense(ctx context.Context, e core.Expense) error {
	ref, err := w.sheets.Append(ctx, e)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, e.ID, err.Error()); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				applog.FieldExpenseID, e.ID,
				applog.FieldError, markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// the row is written; a failed status update only means a later duplicate
	if err := w.store.MarkSynced(ctx, e.ID, ref); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced expense",
		applog.FieldExpenseID, e.ID,
		"sheets_ref", ref,
		applog.FieldAmount, e.Amount.Cents)
	return nil
}
