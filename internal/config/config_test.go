package config

import (
	"path/filepath"
	"testing"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil error, want failure without OPENAI_API_KEY")
	}
}

func TestLoadRejectsWhitespaceAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "   ")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil error, want failure for a blank OPENAI_API_KEY")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true by default")
	}
	if cfg.LogDir != "logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "logs")
	}
	if !cfg.PersistFiles() {
		t.Error("PersistFiles() = false, want true by default")
	}
	if got, want := cfg.LedgerPath(), filepath.Join("logs", "usage.jsonl"); got != want {
		t.Errorf("LedgerPath() = %q, want %q", got, want)
	}
}

func TestPersistenceSentinel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FATHOM_LOG_DIR", PersistenceDisabled)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.PersistFiles() {
		t.Error("PersistFiles() = true, want false for sentinel")
	}
	if cfg.LedgerPath() != "" {
		t.Errorf("LedgerPath() = %q, want empty", cfg.LedgerPath())
	}
	if cfg.LogFilePath() != "" {
		t.Errorf("LogFilePath() = %q, want empty", cfg.LogFilePath())
	}
}
