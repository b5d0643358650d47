package httpcache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests to each host with a token bucket. It is safe for concurrent use.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
	mu       sync.Mutex
}

// NewHostLimiter allows one request per interval to each host, with the given burst.
func NewHostLimiter(every time.Duration, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    max(burst, 1),
	}
}

// Wait blocks until a request to u's host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, u *url.URL) error {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil
	}
	return l.limiter(host).Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[host] = lim
	}
	return lim
}
