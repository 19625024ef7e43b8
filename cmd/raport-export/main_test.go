package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "raport/internal/log"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

func reportServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/reports/monthly/2024-02":
			_, _ = w.Write([]byte(`{"expenses":[{"date":"2024-02-05","amount":12.5,"category":"Food"}],"category_totals":[{"category":"Food","total":12.5}]}`))
		case "/api/reports/monthly/2024-03":
			_, _ = w.Write([]byte(`{"expenses":[],"category_totals":[]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	srv := reportServer(t)

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "csv to stdout",
			args:       []string{"-month", "2024-02", "-token", "tok", "-out", "-"},
			wantCode:   exitOK,
			wantStdout: "Data,Kwota,Kategoria\n2024-02-05,12.5,\"Food\"\n\nPodsumowanie kategorii\nKategoria,Suma\n\"Food\",12.5",
		},
		{
			name:       "no data",
			args:       []string{"-token", "tok", "-out", "-"},
			wantCode:   exitNoData,
			wantStderr: "Brak danych za 2024-03",
		},
		{
			name:       "unauthorized",
			args:       []string{"-month", "2024-02", "-token", "bad"},
			wantCode:   exitFailed,
			wantStderr: "Brak autoryzacji, zaloguj się ponownie",
		},
		{
			name:       "invalid month",
			args:       []string{"-month", "2024/02", "-token", "tok"},
			wantCode:   exitFailed,
			wantStderr: "Nieprawidłowy format miesiąca",
		},
		{
			name:       "server error",
			args:       []string{"-month", "2023-01", "-token", "tok"},
			wantCode:   exitFailed,
			wantStderr: "Wystąpił błąd podczas ładowania danych, spróbuj ponownie",
		},
		{
			name:     "bad flag",
			args:     []string{"-nope"},
			wantCode: exitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"-api", srv.URL}, tt.args...)
			code := run(context.Background(), args, &stdout, &stderr, fixedNow, applog.Discard())

			if code != tt.wantCode {
				t.Fatalf("exit = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if tt.wantStdout != "" && stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q\nwant %q", stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRun_DefaultFilename(t *testing.T) {
	srv := reportServer(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "x.csv")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-api", srv.URL, "-token", "tok", "-month", "2024-02", "-out", out}, &stdout, &stderr, fixedNow, applog.Discard())
	if code != exitOK {
		t.Fatalf("exit = %d (%s)", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Data,Kwota,Kategoria\n") {
		t.Errorf("file = %q", data)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	code = run(context.Background(), []string{"-api", srv.URL, "-token", "tok", "-month", "2024-02"}, &stdout, &stderr, fixedNow, applog.Discard())
	if code != exitOK {
		t.Fatalf("exit = %d (%s)", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "raport-miesieczny-2024-03.csv")); err != nil {
		t.Errorf("default file not written: %v", err)
	}
}
