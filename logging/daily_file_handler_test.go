package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyFileHandlerWritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDailyFileHandler(dir, "vibeveed", &slog.HandlerOptions{Level: slog.LevelDebug})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	defer h.Close()

	day := time.Date(2025, 3, 14, 23, 59, 0, 0, time.Local)
	h.file.mutex.Lock()
	h.file.now = func() time.Time { return day }
	h.file.mutex.Unlock()

	logger := slog.New(h).With(slog.String("run_id", "run-1"))
	logger.Info("Step 1: Uploading image", slog.String("path", "/tmp/cat.png"))

	h.file.mutex.Lock()
	h.file.now = func() time.Time { return day.Add(2 * time.Minute) }
	h.file.mutex.Unlock()
	logger.Warn("next day")

	first, err := os.ReadFile(filepath.Join(dir, "vibeveed-2025-03-14.log"))
	if err != nil {
		t.Fatalf("Expected first day log file: %v", err)
	}
	line := string(first)
	if !strings.Contains(line, "INFO  Step 1: Uploading image run_id=run-1 path=/tmp/cat.png") {
		t.Errorf("Unexpected log line: %q", line)
	}

	second, err := os.ReadFile(filepath.Join(dir, "vibeveed-2025-03-15.log"))
	if err != nil {
		t.Fatalf("Expected rotated log file: %v", err)
	}
	if !strings.Contains(string(second), "WARN  next day run_id=run-1") {
		t.Errorf("Unexpected rotated log line: %q", string(second))
	}
}

func TestDailyFileHandlerGroups(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDailyFileHandler(dir, "vibeveed", nil)
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	defer h.Close()

	slog.New(h).WithGroup("fal").Info("queued", slog.String("request_id", "req-1"))

	data, _ := os.ReadFile(filepath.Join(dir, h.file.currentFileName))
	if !strings.Contains(string(data), "fal.request_id=req-1") {
		t.Errorf("Expected grouped attribute, got %q", string(data))
	}
}
