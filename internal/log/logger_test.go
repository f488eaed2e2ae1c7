package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentTracker, Output: &buf})
	l.Info("goal set", FieldTarget, 6000.0)
	out := buf.String()
	if !strings.Contains(out, "component=tracker") || !strings.Contains(out, "target_rupees=6000") {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentStorage).Warn("slot corrupt")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("component override missing: %s", buf.String())
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
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Component: ComponentHTTP})

	ctx := IntoContext(context.Background(), base.With(FieldRequestID, "req_1"))
	FromContext(ctx).Info("inside")

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id not propagated: %s", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
