// Package config loads Fathom's runtime configuration from the environment.
//
// A .env file in the working directory is applied first when present, then
// the process environment wins. The only hard requirement is the API
// credential; everything else has a workable default.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// PersistenceDisabled is the FATHOM_LOG_DIR sentinel that turns off all file
// persistence. The ledger then lives in memory only and logs go to stderr.
const PersistenceDisabled = "none"

// Config is the full runtime configuration.
type Config struct {
	// APIKey authenticates against the upstream API. The process must not
	// start without it.
	APIKey string `envconfig:"OPENAI_API_KEY" required:"true"`

	// OrgID is the optional upstream organization identifier.
	OrgID string `envconfig:"OPENAI_ORG_ID"`

	// Debug enables debug-level logging. On by default: this server's
	// operations are long and expensive, and the structured log is the only
	// place their lifecycle is visible.
	Debug bool `envconfig:"FATHOM_DEBUG" default:"true"`

	// LogDir is where the usage ledger and the structured log file live.
	// The sentinel "none" disables file persistence entirely.
	LogDir string `envconfig:"FATHOM_LOG_DIR" default:"logs"`

	// MetricsAddr, when set, serves Prometheus metrics on this address
	// (for example ":9090").
	MetricsAddr string `envconfig:"FATHOM_METRICS_ADDR"`
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	// envconfig's required check passes for a variable that is set but
	// empty. An empty credential is as fatal as a missing one.
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("config: OPENAI_API_KEY must not be empty")
	}
	return &cfg, nil
}

// PersistFiles reports whether file persistence is enabled.
func (c *Config) PersistFiles() bool {
	return c.LogDir != PersistenceDisabled
}

// LedgerPath returns the usage ledger file path, or "" when persistence is
// disabled.
func (c *Config) LedgerPath() string {
	if !c.PersistFiles() {
		return ""
	}
	return filepath.Join(c.LogDir, "usage.jsonl")
}

// LogFilePath returns the structured log file path, or "" when persistence
// is disabled.
func (c *Config) LogFilePath() string {
	if !c.PersistFiles() {
		return ""
	}
	return filepath.Join(c.LogDir, "fathom.log")
}
