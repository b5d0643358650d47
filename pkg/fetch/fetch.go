// Package fetch retrieves raw HTML for profile pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/gifted/pkg/httpcache"
)

// UserAgent identifies the fetcher to the sites it visits.
const UserAgent = "gifted/1.0 (+https://github.com/codeGROOVE-dev/gifted; profile preview)"

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 2 << 20
	defaultPace     = 500 * time.Millisecond
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrBodyTooLarge is returned when a page exceeds the size limit.
	ErrBodyTooLarge = httpcache.ErrBodyTooLarge
)

// CookieSource supplies session cookies for a host.
type CookieSource interface {
	Cookies(ctx context.Context, host string) map[string]string
}

type config struct {
	cache     httpcache.Cacher
	cookies   CookieSource
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	pace      time.Duration
	attempts  uint
}

// Option configures a Client.
type Option func(*config)

// WithHTTPCache enables response caching.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithCookieSource attaches session cookies for supported hosts.
func WithCookieSource(s CookieSource) Option {
	return func(cfg *config) { cfg.cookies = s }
}

// WithHTTPClient sets the underlying HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *config) { cfg.userAgent = ua }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.timeout = d }
}

// WithMaxBytes caps the body size. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(cfg *config) { cfg.maxBytes = n }
}

// WithAttempts sets the number of attempts for transient failures.
func WithAttempts(n uint) Option {
	return func(cfg *config) { cfg.attempts = n }
}

// WithHostPace sets the minimum spacing between requests to one host. Zero disables pacing.
func WithHostPace(d time.Duration) Option {
	return func(cfg *config) { cfg.pace = d }
}

// Client fetches pages. It is safe for concurrent use.
type Client struct {
	fetcher   *httpcache.Fetcher
	cookies   CookieSource
	logger    *slog.Logger
	userAgent string
}

// New returns a Client.
func New(opts ...Option) *Client {
	cfg := &config{
		logger:    slog.Default(),
		userAgent: UserAgent,
		timeout:   defaultTimeout,
		maxBytes:  defaultMaxBytes,
		pace:      defaultPace,
		attempts:  1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: cfg.timeout}
	}

	fopts := []httpcache.Option{
		httpcache.WithClient(cfg.client),
		httpcache.WithLogger(cfg.logger),
		httpcache.WithAttempts(cfg.attempts),
		httpcache.WithMaxBytes(cfg.maxBytes),
		httpcache.WithValidator(func(b []byte) bool { return len(b) > 0 }),
	}
	if cfg.cache != nil {
		fopts = append(fopts, httpcache.WithCache(cfg.cache))
	}
	if cfg.pace > 0 {
		fopts = append(fopts, httpcache.WithLimiter(httpcache.NewHostLimiter(cfg.pace, 2)))
	}

	return &Client{
		fetcher:   httpcache.NewFetcher(fopts...),
		cookies:   cfg.cookies,
		logger:    cfg.logger,
		userAgent: cfg.userAgent,
	}
}

// Fetch returns the body of rawURL as a string. Non-2xx responses are errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	if c.cookies != nil {
		for name, value := range c.cookies.Cookies(ctx, u.Hostname()) {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	start := time.Now()
	body, err := c.fetcher.Do(ctx, req)
	if err != nil {
		c.logger.DebugContext(ctx, "fetch failed", "url", rawURL, "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	c.logger.DebugContext(ctx, "fetched", "url", rawURL, "bytes", len(body), "elapsed", time.Since(start))
	return string(body), nil
}
