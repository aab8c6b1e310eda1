package httpclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Config configures the HTTP client transport and observability settings.
//
// There is no total request timeout on the returned client: per-request
// deadlines are carried by the request context so long uploads can opt out.
type Config struct {
	// DialTimeout bounds TCP connection establishment.
	// Default: 10s. Must be > 0.
	DialTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request body has been written. 0 disables it.
	// Default: 0. Must be >= 0.
	ResponseHeaderTimeout time.Duration

	// UserAgent is the User-Agent header value.
	// Required. Must be non-empty.
	UserAgent string

	// Logger receives one record per round trip. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		UserAgent:   "audionote-client/1.0",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be > 0, got %v", c.DialTimeout)
	}

	if c.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("response_header_timeout must be >= 0, got %v", c.ResponseHeaderTimeout)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}

	return nil
}
