package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", scanner.Text())
		}
		entries = append(entries, entry)
	}
	return entries
}

// Requirement: the file core writes JSON entries at or above the configured level
func TestNew_FileCore(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Directory = dir
	cfg.Console = false
	cfg.Level = "warn"

	// Act
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("dropped")
	log.Warn("kept", zap.String("view", "alerts"))
	log.Close()

	// Assert
	entries := readEntries(t, filepath.Join(dir, "bantay.log"))
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["message"] != "kept" || entries[0]["view"] != "alerts" || entries[0]["level"] != "WARN" {
		t.Errorf("Unexpected entry %v", entries[0])
	}
}

// Requirement: SetLevel applies to a running logger
func TestLogger_SetLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Directory = dir
	cfg.Console = false

	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Debug("before")
	if err := log.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	log.Debug("after")
	log.Close()

	if log.Level() != zapcore.DebugLevel {
		t.Errorf("Expected debug level, got %v", log.Level())
	}
	entries := readEntries(t, filepath.Join(dir, "bantay.log"))
	if len(entries) != 1 || entries[0]["message"] != "after" {
		t.Errorf("Expected only the entry after SetLevel, got %v", entries)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"

	if _, err := New(cfg); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNew_NoCores(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("nowhere")
	if err := log.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
