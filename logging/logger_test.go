package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heartrisk/config"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger, err := New(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("model loaded")
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "model loaded") {
		t.Fatalf("expected log line in file, got %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Fatal("debug line should be filtered at info level")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewRejectsBadFormat(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for invalid format")
	}
}
