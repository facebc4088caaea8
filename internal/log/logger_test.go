package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	buf.Reset()
	return rec
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentLedger, Output: &buf})

	l.InfoContext(context.Background(), "payment", FieldAmount, "10.00")
	rec := decodeLine(t, &buf)
	if rec[FieldComponent] != ComponentLedger || rec[FieldAmount] != "10.00" {
		t.Fatalf("unexpected record %v", rec)
	}

	l.WithComponent(ComponentCatalog).Debug("cache miss")
	rec = decodeLine(t, &buf)
	if rec[FieldComponent] != ComponentCatalog {
		t.Fatalf("expected catalog component, got %v", rec[FieldComponent])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Component: ComponentApp, Output: &buf}))

	sl.LogError(context.Background(), "Ledger write failed", errors.New("disk I/O error"),
		ComponentLedger, OpPay, NewFields().WithPrincipal("org-1", "user-1"))
	rec := decodeLine(t, &buf)
	if rec[FieldOrganization] != "org-1" || rec[FieldUser] != "user-1" {
		t.Fatalf("principal missing from %v", rec)
	}
	if rec[FieldOperation] != OpPay || rec[FieldError] != "disk I/O error" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
	l := New(DefaultConfig())
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}
