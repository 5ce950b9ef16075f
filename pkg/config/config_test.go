package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lborres/bantay/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bantay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// Requirement: every setting has a usable default
func TestLoad_Defaults(t *testing.T) {
	// Arrange
	t.Chdir(t.TempDir())

	// Act
	l, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := l.Config()

	// Assert
	if cfg.Backend.URL != "http://localhost:8000" || cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Unexpected backend defaults %+v", cfg.Backend)
	}
	if cfg.Media.URL != "http://localhost:5001" {
		t.Errorf("Unexpected media url %q", cfg.Media.URL)
	}
	if cfg.PollIntervals() != core.DefaultPollIntervals() {
		t.Errorf("Expected default intervals, got %+v", cfg.PollIntervals())
	}
	if cfg.AlertFilter() != core.DefaultAlertFilter() {
		t.Errorf("Expected default filter, got %+v", cfg.AlertFilter())
	}
	if cfg.Stats.SessionID != 1 {
		t.Errorf("Expected stats session 1, got %d", cfg.Stats.SessionID)
	}
	if cfg.SessionConfig().ResolveTimeout != core.DefaultResolveTimeout {
		t.Errorf("Unexpected resolve timeout %v", cfg.SessionConfig().ResolveTimeout)
	}
	if l.File() != "" {
		t.Errorf("Expected no config file, got %q", l.File())
	}
}

// Requirement: the file overrides defaults and the environment overrides the file
func TestLoad_FileAndEnv(t *testing.T) {
	// Arrange
	path := writeConfig(t, `
backend:
  url: http://exam-server:8000
poll:
  alerts: 2s
alerts:
  confidence: 0.8
  source: Video
  session_id: 4
`)
	t.Setenv("BANTAY_BACKEND_URL", "http://override:9000")
	t.Setenv("BANTAY_POLL_FEED", "7s")

	// Act
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := l.Config()

	// Assert
	if cfg.Backend.URL != "http://override:9000" {
		t.Errorf("Expected env override, got %q", cfg.Backend.URL)
	}
	if cfg.Poll.Alerts != 2*time.Second || cfg.Poll.Feed != 7*time.Second {
		t.Errorf("Unexpected poll config %+v", cfg.Poll)
	}
	f := cfg.AlertFilter()
	if f.Confidence != 0.8 || f.Source != core.SourceOnlyVideo || f.SessionID == nil || *f.SessionID != 4 {
		t.Errorf("Unexpected filter %+v", f)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "unknown driver", body: "storage:\n  driver: s3\n", want: ErrUnknownStorage},
		{name: "postgres without dsn", body: "storage:\n  driver: postgres\n", want: ErrMissingDSN},
		{name: "redis without url", body: "storage:\n  driver: redis\n", want: ErrMissingRedis},
		{name: "confidence out of range", body: "alerts:\n  confidence: 1.5\n", want: core.ErrInvalidConfidence},
		{name: "bad source", body: "alerts:\n  source: smell\n", want: core.ErrInvalidSource},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.body))
			if !errors.Is(err, test.want) {
				t.Errorf("Expected %v, got %v", test.want, err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}

// Requirement: edits to the config file are applied without a restart
func TestLoader_Watch(t *testing.T) {
	// Arrange
	path := writeConfig(t, "logging:\n  level: info\n")
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	changes := make(chan Config, 4)
	l.Watch(nil, func(c Config) { changes <- c })

	// Act
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// Assert
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Logging.Level == "debug" {
				if l.Config().Logging.Level != "debug" {
					t.Errorf("Expected Config() to reflect the reload")
				}
				return
			}
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}
