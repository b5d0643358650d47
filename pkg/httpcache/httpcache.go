// Package httpcache fetches URLs with optional response caching, per-host pacing and retries.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// ErrBodyTooLarge is returned when a response body exceeds the configured size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int64
	Misses int64
}

var (
	hits   atomic.Int64
	misses atomic.Int64
)

// CacheStats returns the current cache statistics.
func CacheStats() Stats {
	return Stats{Hits: hits.Load(), Misses: misses.Load()}
}

// ResetStats resets the cache statistics.
func ResetStats() {
	hits.Store(0)
	misses.Store(0)
}

// Cacher allows external cache implementations.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a Cache with disk persistence at ~/.cache/gifted.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "gifted"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a Cache with disk persistence at cachePath.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("gifted", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL to a cache key using SHA256.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// ResponseValidator reports whether a response body may be cached.
type ResponseValidator func(body []byte) bool

// Fetcher performs requests. The zero value is not usable; use NewFetcher.
type Fetcher struct {
	cache     Cacher
	client    *http.Client
	limiter   *HostLimiter
	logger    *slog.Logger
	validator ResponseValidator
	maxBytes  int64
	attempts  uint
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache enables response caching.
func WithCache(c Cacher) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLimiter paces requests per host.
func WithLimiter(l *HostLimiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithAttempts sets how many times a transient failure is attempted. Values below 1 mean 1.
func WithAttempts(n uint) Option {
	return func(f *Fetcher) { f.attempts = max(n, 1) }
}

// WithMaxBytes caps the response body size. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithValidator skips caching bodies that fail v.
func WithValidator(v ResponseValidator) Option {
	return func(f *Fetcher) { f.validator = v }
}

// NewFetcher returns a Fetcher. Without options it does a single uncached attempt with http.DefaultClient.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   http.DefaultClient,
		logger:   slog.Default(),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do executes req, consulting the cache first when one is configured.
// Concurrent calls for the same URL share a single upstream request.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	// Authenticated responses are cached separately.
	cacheKey := req.URL.String()
	if req.Header.Get("Cookie") != "" || (f.client.Jar != nil && len(f.client.Jar.Cookies(req.URL)) > 0) {
		cacheKey += "|auth"
	}

	if f.cache == nil {
		misses.Add(1)
		return f.doFetch(ctx, req)
	}

	var wasFetched bool
	data, err := f.cache.GetSet(ctx, URLToKey(cacheKey), func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		misses.Add(1)
		f.logger.DebugContext(ctx, "cache miss", "url", req.URL.String())
		body, fetchErr := f.doFetch(ctx, req)
		if fetchErr != nil {
			// Cache HTTP errors to avoid hammering servers.
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) {
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			// Context and size errors are not cached; anything else is a network error.
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) ||
				errors.Is(fetchErr, ErrBodyTooLarge) {
				return nil, fetchErr
			}
			return fmt.Appendf(nil, "NETERR:%s", fetchErr.Error()), nil
		}
		if f.validator != nil && !f.validator(body) {
			f.logger.DebugContext(ctx, "skipping cache due to validation failure", "url", req.URL.String())
			return nil, &validationError{data: body}
		}
		return body, nil
	}, f.cache.TTL())

	if !wasFetched {
		hits.Add(1)
		f.logger.DebugContext(ctx, "cache hit", "url", req.URL.String())
	}

	var validErr *validationError
	if errors.As(err, &validErr) {
		return validErr.data, nil
	}
	if err != nil {
		return nil, err
	}

	s := string(data)
	if errCode, found := strings.CutPrefix(s, "ERROR:"); found {
		code, _ := strconv.Atoi(errCode) //nolint:errcheck // 0 is acceptable default
		return nil, &HTTPError{StatusCode: code, URL: req.URL.String()}
	}
	if errMsg, found := strings.CutPrefix(s, "NETERR:"); found {
		return nil, fmt.Errorf("cached network error: %s", errMsg)
	}

	return data, nil
}

type validationError struct{ data []byte }

func (*validationError) Error() string { return "validation failed" }

func (f *Fetcher) doFetch(ctx context.Context, req *http.Request) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx, req.URL); err != nil {
					return nil, err
				}
			}

			resp, err := f.client.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
			}

			return f.readBody(resp.Body)
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			f.logger.DebugContext(ctx, "retrying HTTP request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
	)
}

func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// isRetryableError returns true for transient errors that should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false // 4xx errors (except 429) are permanent
		}
	}
	// Network errors, timeouts, etc. are retryable
	return true
}
