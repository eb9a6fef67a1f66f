package session

import "time"

// Config defines runtime configuration for the session manager.
type Config struct {
	// BaseURL is the auth service origin, without a trailing slash
	// (e.g. "https://api.detran.example"). Paths under /api/v1/auth are
	// appended by the manager.
	BaseURL string

	// HTTPTimeout bounds each auth request.
	HTTPTimeout time.Duration

	// RefreshSkew is how long before the access token's expiry claim a
	// proactive refresh kicks in. Zero disables proactive refresh.
	RefreshSkew time.Duration
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8000",
		HTTPTimeout: 15 * time.Second,
		RefreshSkew: 30 * time.Second,
	}
}

func (c Config) validate() error {
	if c.BaseURL == "" || c.HTTPTimeout <= 0 || c.RefreshSkew < 0 {
		return ErrConfig
	}
	return nil
}
