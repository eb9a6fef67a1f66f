package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime configuration for the Renova client.
//
// Resolution order: built-in defaults, then the optional YAML config file
// (RENOVA_CONFIG, default ~/.config/renova/config.yaml), then RENOVA_*
// environment variables. Env wins.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	OperationID      int           `yaml:"operation_id"`
	DefaultPriceSats int64         `yaml:"default_price_sats"`

	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	PriceTimeout time.Duration `yaml:"price_timeout"`
	RefreshSkew  time.Duration `yaml:"refresh_skew"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "text"

	SessionFile       string `yaml:"session_file"`
	SessionPassphrase string `yaml:"-"` // env-only; never written to disk

	// MaxConfirmAttempts is the view-level soft ceiling on payment
	// confirmation retries. The workflow itself never enforces it.
	MaxConfirmAttempts int `yaml:"max_confirm_attempts"`
}

// DefaultConfig returns defaults suitable for local development against a
// stub backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://localhost:8000",
		OperationID:        1,
		DefaultPriceSats:   10_000,
		HTTPTimeout:        15 * time.Second,
		PriceTimeout:       3 * time.Second,
		RefreshSkew:        30 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
		SessionFile:        defaultSessionFile(),
		MaxConfirmAttempts: 3,
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "renova-session.json"
	}
	return filepath.Join(dir, "renova", "session.json")
}

// LoadConfig resolves the effective configuration.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path := EnvString("RENOVA_CONFIG", "")
	explicit := path != ""
	if !explicit {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "renova", "config.yaml")
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case explicit:
			// An explicitly named file must exist.
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.BaseURL = EnvString("RENOVA_BASE_URL", cfg.BaseURL)
	cfg.OperationID = EnvInt("RENOVA_OPERATION_ID", cfg.OperationID)
	cfg.DefaultPriceSats = EnvInt64("RENOVA_DEFAULT_PRICE_SATS", cfg.DefaultPriceSats)
	cfg.HTTPTimeout = EnvDuration("RENOVA_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.PriceTimeout = EnvDuration("RENOVA_PRICE_TIMEOUT", cfg.PriceTimeout)
	cfg.RefreshSkew = EnvDuration("RENOVA_REFRESH_SKEW", cfg.RefreshSkew)
	cfg.LogLevel = EnvString("RENOVA_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvString("RENOVA_LOG_FORMAT", cfg.LogFormat)
	cfg.SessionFile = EnvString("RENOVA_SESSION_FILE", cfg.SessionFile)
	cfg.SessionPassphrase = EnvString("RENOVA_SESSION_PASSPHRASE", "")
	cfg.MaxConfirmAttempts = EnvInt("RENOVA_MAX_CONFIRM_ATTEMPTS", cfg.MaxConfirmAttempts)

	return cfg, nil
}
