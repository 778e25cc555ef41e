package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"price-dashboard/internal/config"
)

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "info", Format: "json"})
	logger.Info("dataset loaded", "rows", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "dataset loaded" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}

	buf.Reset()
	logger = newLogger(&buf, config.LoggerConfig{Level: "warn", Format: "text"})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("msg=shown")) {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if GetRequestID(ctx) != "abc" {
		t.Error("request id not stored in context")
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
	if NewRequestID() == NewRequestID() {
		t.Error("request ids should be unique")
	}
}

func TestStartSpan_Nesting(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "recommendations")
	_, child := StartSpan(ctx, "grid search")

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace id")
	}
	if child.ParentID != parent.SpanID {
		t.Error("child should point at parent span")
	}
	if len(parent.SpanID) != 16 {
		t.Errorf("expected 16 char span id, got %q", parent.SpanID)
	}
}

func TestSpan_End(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "debug", Format: "json"})

	_, span := StartSpan(context.Background(), "reload")
	span.SetTag("rows", "10")
	span.SetError(errors.New("file missing"))
	span.End(logger)

	if span.Duration == nil || span.EndTime == nil {
		t.Fatal("span should be finished")
	}
	if span.Status != SpanStatusError {
		t.Error("span should carry error status")
	}
	if !bytes.Contains(buf.Bytes(), []byte("file missing")) {
		t.Errorf("expected error in log output, got %q", buf.String())
	}
}
