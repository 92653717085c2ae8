package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRun(Background(), "a1b2c3d4")
	ctx = WithAttempt(ctx, 2)

	log := slog.New(handler).With("component", "order")
	log.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "attempt.start"),
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=order", "event=attempt.start", "status=ok", "run_id=a1b2c3d4", "attempt=2"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRun(Background(), "deadbeef")

	log := slog.New(handler).With("component", "order.retry")
	log.LogAttrs(ctx, slog.LevelError, "",
		slog.String("event", "attempt.crashed"),
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "RPC_FAIL"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"order.retry"`, `"event":"attempt.crashed"`, `"status":"fail"`, `"run_id":"deadbeef"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDurationNormalization(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	log := slog.New(handler).With("component", "order.poll")
	log.LogAttrs(Background(), slog.LevelInfo, "",
		slog.String("event", "poll.done"),
		slog.Duration("duration", 1503*1000*1000),
		slog.Duration("backoff", 250*1000*1000),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "duration_ms=1503") {
		t.Fatalf("expected duration_ms=1503, got %s", line)
	}
	if !strings.Contains(line, "backoff_ms=250") {
		t.Fatalf("expected backoff_ms=250, got %s", line)
	}
}

func TestStructuredHandlerEnumNormalization(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	log := slog.New(handler).With("component", "order")
	log.LogAttrs(Background(), slog.LevelWarn, "",
		slog.String("event", "attempt.failed"),
		slog.String("status", " FAIL "),
		slog.String("reason", "Bot_Down"),
		slog.String("kind", "BOT_DOWN"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "status=fail") {
		t.Fatalf("expected normalized status, got %s", line)
	}
	if !strings.Contains(line, "reason=bot_down") {
		t.Fatalf("expected normalized reason, got %s", line)
	}
	if !strings.Contains(line, "kind=bot_down") {
		t.Fatalf("expected normalized kind, got %s", line)
	}
}

func TestSanitizeLimitStripsInvisible(t *testing.T) {
	raw := "Ertangi​ buyurtma\x07"
	got := SanitizeLimit(raw, 32)
	if got != "Ertangi buyurtma" {
		t.Fatalf("unexpected sanitized value: %q", got)
	}
	if SanitizeLimit("abcdef", 3) != "abc" {
		t.Fatalf("expected rune-limited output")
	}
}
