package logging

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	now := time.Now()
	logger.Info("hello world", "foo", "value")

	output := buf.String()
	for _, want := range []string{"INFO", "hello world", "foo=value", now.Format(time.Kitchen)} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %q", want, output)
		}
	}
}

func TestHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).With("common", "attr").WithGroup("ledger")

	logger.Info("message", "size", 5)

	output := buf.String()
	if !strings.Contains(output, "common=attr") {
		t.Errorf("expected common attribute in output, got: %q", output)
	}
	if !strings.Contains(output, "ledger.size=5") {
		t.Errorf("expected grouped attribute in output, got: %q", output)
	}
}

func TestHandler_Enabled(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	ctx := t.Context()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected Info level to be disabled when min level is Warn")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("expected Error level to be enabled")
	}
}

func TestHandler_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})

	r := slog.NewRecord(time.Time{}, LevelTrace, "store get", 0)
	if err := h.Handle(t.Context(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "TRACE") {
		t.Errorf("expected TRACE prefix without time, got %q", buf.String())
	}
}

func TestHandler_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Info("sensitive data", "security.secret", "hunter2-hunter2", "Token", "ghp_abcdef")

	output := buf.String()
	if strings.Contains(output, "hunter2-hunter2") || strings.Contains(output, "ghp_abcdef") {
		t.Errorf("secrets leaked: %q", output)
	}
	if !strings.Contains(output, "security.secret=****ter2") {
		t.Errorf("expected masked secret, got: %q", output)
	}
	if !strings.Contains(output, "Token=****cdef") {
		t.Errorf("expected masked Token, got: %q", output)
	}

	buf.Reset()
	logger.Info("issued", "value", "eyJhbGciOiJIUzI1NiJ9.payload.sig")
	if !strings.Contains(buf.String(), "value=****.sig") {
		t.Errorf("expected JWT-looking value to be masked, got: %q", buf.String())
	}
}

func TestSupportsColor(t *testing.T) {
	t.Setenv("TERM", "xterm")
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	if !supportsColor(true) {
		t.Error("tty should support color")
	}
	if supportsColor(false) {
		t.Error("non-tty should not support color")
	}

	t.Setenv("NO_COLOR", "1")
	if supportsColor(true) {
		t.Error("NO_COLOR should disable color")
	}
}

func TestIsTTY_NonFile(t *testing.T) {
	if IsTTY(&bytes.Buffer{}) {
		t.Error("bytes.Buffer is not a TTY")
	}
}
