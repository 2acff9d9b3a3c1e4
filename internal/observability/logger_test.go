package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"elections-scraper/internal/config"
)

func TestNewLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scraper.log")

	logger, err := NewLogger(config.ObservabilityConfig{
		LogPath:       logPath,
		LogLevel:      "info",
		LogMaxSizeMB:  1,
		LogMaxBackups: 1,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Debug("hidden", "code", "506761")
	logger.With("run", 1).Info("Precinct fetched", "code", "506761")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Precinct fetched") || !strings.Contains(content, `"code":"506761"`) {
		t.Errorf("log file missing entry: %s", content)
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug entry written at info level: %s", content)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(config.ObservabilityConfig{LogLevel: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
