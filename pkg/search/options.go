package search

import (
	"log/slog"
	"net/http"
	"time"
)

type config struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a provider.
type Option func(*config)

// WithHTTPClient sets the HTTP client used by Brave.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}
