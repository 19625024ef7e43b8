package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"raport/internal/config"
	"raport/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:              "sheets",
		GoogleSpreadsheetID:      "abc",
		GoogleSheetName:          "Wydatki",
		GoogleServiceAccountFile: "/etc/sa.json",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "abc" || cfg.GoogleServiceAccountFile != "/etc/sa.json" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
	for _, s := range got {
		if !BackendType(s).IsValid() {
			t.Errorf("%q is not a valid backend type", s)
		}
	}
}

func TestFactory_Memory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_expenses.txt"), []byte("2024-03-05;12.50;Food\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	got, err := res.Store.ListExpenses(context.Background(), core.MonthKey("2024-03"))
	if err != nil || len(got) != 1 {
		t.Errorf("ListExpenses() = %v, %v", got, err)
	}
	if res.Publisher != nil {
		t.Error("memory backend must not publish")
	}
}

func TestFactory_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raport.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Ready == nil || res.Ready(context.Background()) != nil {
		t.Error("sqlite backend should report ready")
	}
	if res.Publisher != nil {
		t.Error("publisher should be nil without AMQP_URL")
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SheetsBackend}); err == nil {
		t.Error("expected validation error")
	}
}
