package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"raport/internal/amqp"
	"raport/internal/core"
	"raport/internal/storage"
)

type fakeSheets struct {
	appended []core.Expense
	err      error
}

func (f *fakeSheets) Append(_ context.Context, e core.Expense) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, e)
	return fmt.Sprintf("Wydatki!A%d:D%d", len(f.appended)+1, len(f.appended)+1), nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "w.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.Append(context.Background(), core.Expense{
			Date:     core.NewDate(2024, 3, 1+i),
			Amount:   core.Money{Cents: int64(100 * (i + 1))},
			Category: "Food",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSyncWorker_HandleSyncMessage(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo, 1)
	sheets := &fakeSheets{}
	w := NewSyncWorker(repo, sheets, 10, nil)
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(1, "2024-03")); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}
	if len(sheets.appended) != 1 || sheets.appended[0].Amount.Cents != 100 {
		t.Fatalf("appended %+v", sheets.appended)
	}
	status, _, _ := repo.SyncStatus(ctx, 1)
	if status != storage.SyncDone {
		t.Errorf("status = %q, want synced", status)
	}

	// redelivery of the same message must not write a second row
	if err := w.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(1, "2024-03")); err != nil {
		t.Fatalf("HandleSyncMessage() second error = %v", err)
	}
	if len(sheets.appended) != 1 {
		t.Errorf("duplicate append: %d rows", len(sheets.appended))
	}
}

func TestSyncWorker_HandleSyncMessageUnknownExpense(t *testing.T) {
	w := NewSyncWorker(newRepo(t), &fakeSheets{}, 10, nil)
	if err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseSyncMessage(99, "2024-03")); err != nil {
		t.Errorf("unknown expense should be acked, got %v", err)
	}
}

func TestSyncWorker_AppendFailureMarksError(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo, 1)
	w := NewSyncWorker(repo, &fakeSheets{err: errors.New("quota")}, 10, nil)
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(1, "2024-03")); err == nil {
		t.Fatal("expected error when sheets append fails")
	}
	status, _, _ := repo.SyncStatus(ctx, 1)
	if status != storage.SyncFailed {
		t.Errorf("status = %q, want error", status)
	}
}

func TestSyncWorker_ProcessPendingExpenses(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo, 3)
	sheets := &fakeSheets{}
	w := NewSyncWorker(repo, sheets, 2, nil)
	ctx := context.Background()

	n, err := w.ProcessPendingExpenses(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ProcessPendingExpenses() = %d, %v; want 2, nil", n, err)
	}
	n, _ = w.ProcessPendingExpenses(ctx)
	if n != 1 {
		t.Errorf("second batch = %d, want 1", n)
	}
	n, _ = w.ProcessPendingExpenses(ctx)
	if n != 0 {
		t.Errorf("third batch = %d, want 0", n)
	}
	if len(sheets.appended) != 3 {
		t.Errorf("appended %d rows, want 3", len(sheets.appended))
	}
}

func TestSyncWorker_StartupSyncCheck(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo, 4)
	sheets := &fakeSheets{}
	w := NewSyncWorker(repo, sheets, 1, nil)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if len(sheets.appended) != 4 {
		t.Errorf("appended %d rows, want 4", len(sheets.appended))
	}
}

func TestSyncWorker_RunStopsOnCancel(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo, 1)
	sheets := &fakeSheets{}
	w := NewSyncWorker(repo, sheets, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		status, _, _ := repo.SyncStatus(context.Background(), 1)
		if status == storage.SyncDone {
			break
		}
		select {
		case <-deadline:
			t.Fatal("periodic sweep never synced the expense")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
