package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentReport})
	l.Info("hello", FieldMonth, "2024-03")
	out := buf.String()
	if !strings.Contains(out, "component=report") || !strings.Contains(out, "month=2024-03") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	l.Warn("careful")
	if !strings.Contains(buf.String(), `"component":"app"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Component: ComponentHTTP})
	h := Middleware(base, func(context.Context) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	out := buf.String()
	for _, part := range []string{"request_id=req_1", "path=/x", "component=http"} {
		if !strings.Contains(out, part) {
			t.Errorf("missing %q in %s", part, out)
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
}

func TestLogFields(t *testing.T) {
	got := NewFields().
		WithOperation(OpExport).
		WithMonth("2024-03").
		WithRequestID("").
		WithError(nil).
		WithHTTPResponse(404, 12).
		ToSlice("extra", 1)

	want := []any{
		FieldDuration, int64(12),
		FieldMonth, "2024-03",
		FieldOperation, OpExport,
		FieldStatusCode, 404,
		FieldSuccess, false,
		"extra", 1,
	}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToSlice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
