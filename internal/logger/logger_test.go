package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe: %v", err)
	}
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	w.Close()
	data := make([]byte, 4096)
	n, _ := r.Read(data)
	return string(data[:n])
}

func TestInitJSONFormatEmitsJSONLines(t *testing.T) {
	out := captureStderr(t, func() {
		Init("debug", "json")
		Info("hello %s", "world")
	})

	line := strings.TrimSpace(out)
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", line, err)
	}
	if rec["msg"] != "hello world" {
		t.Fatalf("expected msg %q, got %v", "hello world", rec["msg"])
	}
	if rec["level"] != "INFO" {
		t.Fatalf("expected level INFO, got %v", rec["level"])
	}
}

func TestInitTextFormatEmitsPlainLines(t *testing.T) {
	out := captureStderr(t, func() {
		Init("debug", "text")
		Warn("disk usage at %d%%", 90)
	})

	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected a plain text line, got %q", out)
	}
	if !strings.Contains(out, "[WARN] disk usage at 90%") {
		t.Fatalf("expected the formatted message, got %q", out)
	}
	if !strings.Contains(out, filepath.Base("logger_test.go")) {
		t.Fatalf("expected text format to include the caller file, got %q", out)
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	out := captureStderr(t, func() {
		Init("warn", "json")
		Info("should be filtered")
		Error("should appear")
	})

	if strings.Contains(out, "should be filtered") {
		t.Fatalf("expected info below the warn threshold to be filtered, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected the error line to appear, got %q", out)
	}
}
