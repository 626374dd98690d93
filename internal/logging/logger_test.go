package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"easel/internal/services"
)

type captureWriter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *captureWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	writer := &captureWriter{}
	handler := newConsoleHandler(writer, slog.LevelInfo)
	logger := slog.New(handler).With(String(FieldComponent, "pipeline"))

	logger.Info("stage started", String(FieldStage, "generating"), Int("attempt", 2))

	out := writer.String()
	for _, want := range []string{"INFO", "stage started", "component=pipeline", "stage=generating", "attempt=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	writer := &captureWriter{}
	handler := newConsoleHandler(writer, slog.LevelWarn)
	logger := slog.New(handler)

	logger.Info("hidden")
	logger.Warn("visible")

	out := writer.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be suppressed, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing, got %q", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	writer := &captureWriter{}
	logger := slog.New(newConsoleHandler(writer, slog.LevelDebug))

	ctx := services.WithShortcode(context.Background(), "ABC123")
	ctx = services.WithStage(ctx, "generating")
	ctx = services.WithRequestID(ctx, "req-1")

	WithContext(ctx, logger).Info("hello")

	out := writer.String()
	for _, want := range []string{"shortcode=ABC123", "stage=generating", "correlation_id=req-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestFormatValueQuotesSpaces(t *testing.T) {
	if got := formatValue(slog.StringValue("two words")); got != "\"two words\"" {
		t.Fatalf("unexpected quoting: %q", got)
	}
	if got := formatValue(slog.DurationValue(1500 * time.Millisecond)); got != "1.5s" {
		t.Fatalf("unexpected duration format: %q", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
