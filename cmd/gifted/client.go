package main

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/codeGROOVE-dev/gifted/pkg/catalog"
	"github.com/codeGROOVE-dev/gifted/pkg/fetch"
	"github.com/codeGROOVE-dev/gifted/pkg/gifted"
	"github.com/codeGROOVE-dev/gifted/pkg/httpcache"
	"github.com/codeGROOVE-dev/gifted/pkg/identity"
	"github.com/codeGROOVE-dev/gifted/pkg/search"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

// newClient builds a gifted.Client from the loaded configuration. The returned func releases the cache.
// When traced is set, outbound requests carry trace context.
func (a *app) newClient(ctx context.Context, traced bool) (*gifted.Client, func(), error) {
	cfg := a.cfg
	closer := func() {}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	if traced {
		httpClient.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	provider, err := search.FromConfig(ctx, search.Config{
		BraveKey:  cfg.Search.BraveKey,
		GoogleKey: cfg.Search.GoogleKey,
		GoogleCX:  cfg.Search.GoogleCX,
	}, search.WithHTTPClient(httpClient), search.WithLogger(a.logger))
	if err != nil {
		return nil, closer, fmt.Errorf("search provider: %w", err)
	}
	if _, ok := provider.(search.Null); ok {
		a.logger.WarnContext(ctx, "no search provider configured; identity search will find nothing")
	}

	opts := []gifted.Option{
		gifted.WithLogger(a.logger),
		gifted.WithSearchProvider(provider),
		gifted.WithAffiliateTag(cfg.Recommend.AffiliateTag),
		gifted.WithFetchOptions(
			fetch.WithHTTPClient(httpClient),
			fetch.WithHostPace(cfg.Fetch.HostPace),
			fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetch.WithAttempts(cfg.Fetch.Attempts),
		),
		gifted.WithResolveOptions(
			identity.WithFetchTimeout(cfg.Resolve.FetchTimeout),
			identity.WithConcurrency(cfg.Resolve.Concurrency),
		),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, gifted.WithFetchOptions(fetch.WithUserAgent(cfg.Fetch.UserAgent)))
	}
	if cfg.Fetch.BrowserCookies {
		opts = append(opts, gifted.WithBrowserCookies())
	}

	if cfg.Recommend.CatalogPath != "" {
		c, err := catalog.Load(cfg.Recommend.CatalogPath)
		if err != nil {
			return nil, closer, err
		}
		opts = append(opts, gifted.WithCatalog(c))
	}
	if cfg.Recommend.RulesPath != "" {
		rs, err := signal.LoadRuleset(cfg.Recommend.RulesPath)
		if err != nil {
			return nil, closer, err
		}
		opts = append(opts, gifted.WithRuleset(rs))
	}

	if cfg.Cache.Enabled {
		cache, err := a.openCache()
		if err != nil {
			a.logger.WarnContext(ctx, "failed to initialize cache, continuing without cache", "error", err)
		} else {
			opts = append(opts, gifted.WithHTTPCache(cache))
			closer = func() {
				if err := cache.Close(); err != nil {
					a.logger.Warn("failed to close cache", "error", err)
				}
			}
			a.logger.DebugContext(ctx, "HTTP cache initialized", "ttl", cfg.Cache.TTL.String())
		}
	}

	return gifted.New(opts...), closer, nil
}

func (a *app) openCache() (*httpcache.Cache, error) {
	if a.cfg.Cache.Dir != "" {
		return httpcache.NewWithPath(a.cfg.Cache.TTL, a.cfg.Cache.Dir)
	}
	return httpcache.New(a.cfg.Cache.TTL)
}
