// Package gifted resolves a person to public profiles and suggests gifts from what those profiles reveal.
//
// Basic usage:
//
//	client := gifted.New(gifted.WithSearchProvider(search.NewBrave(key)))
//	report, err := client.Suggest(ctx, "Jane Doe", "Portland")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, idea := range report.Recommendations.Ideas {
//	    fmt.Println(idea.Title, idea.URL)
//	}
//
// Each step is also available on its own: Resolve, Enrich and Recommend.
package gifted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/gifted/pkg/auth"
	"github.com/codeGROOVE-dev/gifted/pkg/catalog"
	"github.com/codeGROOVE-dev/gifted/pkg/fetch"
	"github.com/codeGROOVE-dev/gifted/pkg/httpcache"
	"github.com/codeGROOVE-dev/gifted/pkg/identity"
	"github.com/codeGROOVE-dev/gifted/pkg/ownership"
	"github.com/codeGROOVE-dev/gifted/pkg/page"
	"github.com/codeGROOVE-dev/gifted/pkg/recommend"
	"github.com/codeGROOVE-dev/gifted/pkg/search"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

type (
	// Candidate re-exports identity.Candidate for convenience.
	Candidate = identity.Candidate
	// Resolution re-exports identity.Result for convenience.
	Resolution = identity.Result
	// Request re-exports recommend.Request for convenience.
	Request = recommend.Request
	// Recommendations re-exports recommend.Result for convenience.
	Recommendations = recommend.Result
)

// Re-export common errors.
var (
	ErrEmptyName  = identity.ErrEmptyName
	ErrInvalidURL = fetch.ErrInvalidURL
)

// Profile is what a single page says about its owner.
type Profile struct {
	Summary *page.Summary `json:"summary"`
	Signals signal.Vector `json:"signals"`
	Owns    []string      `json:"owns"`
	Nogos   []string      `json:"nogos"`
}

// Report is the end-to-end result of Suggest.
type Report struct {
	Resolution      Resolution      `json:"resolution"`
	Recommendations Recommendations `json:"recommendations"`
	Profile         *Profile        `json:"profile,omitempty"`
}

// Option configures a Client.
type Option func(*config)

//nolint:govet // fieldalignment: intentional layout for readability
type config struct {
	cache          httpcache.Cacher
	provider       search.Provider
	fetcher        identity.Fetcher
	logger         *slog.Logger
	catalog        *catalog.Catalog
	ruleset        *signal.Ruleset
	ownership      *ownership.Table
	affiliateTag   string
	browserCookies bool
	fetchOpts      []fetch.Option
	resolveOpts    []identity.Option
}

// WithHTTPCache caches fetched pages.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithSearchProvider sets the web search provider. The default finds nothing.
func WithSearchProvider(p search.Provider) Option {
	return func(cfg *config) { cfg.provider = p }
}

// WithFetcher replaces the page fetcher entirely; fetch options are then ignored.
func WithFetcher(f identity.Fetcher) Option {
	return func(cfg *config) { cfg.fetcher = f }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithCatalog replaces the built-in gift catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(cfg *config) { cfg.catalog = c }
}

// WithRuleset replaces the built-in signal rules.
func WithRuleset(rs *signal.Ruleset) Option {
	return func(cfg *config) { cfg.ruleset = rs }
}

// WithOwnershipTable replaces the built-in ownership cues.
func WithOwnershipTable(t *ownership.Table) Option {
	return func(cfg *config) { cfg.ownership = t }
}

// WithAffiliateTag tags storefront links.
func WithAffiliateTag(tag string) Option {
	return func(cfg *config) { cfg.affiliateTag = tag }
}

// WithBrowserCookies sends local browser session cookies to login-walled profile hosts.
func WithBrowserCookies() Option {
	return func(cfg *config) { cfg.browserCookies = true }
}

// WithFetchOptions passes options to the page fetcher.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(cfg *config) { cfg.fetchOpts = append(cfg.fetchOpts, opts...) }
}

// WithResolveOptions passes options to the identity resolver.
func WithResolveOptions(opts ...identity.Option) Option {
	return func(cfg *config) { cfg.resolveOpts = append(cfg.resolveOpts, opts...) }
}

// Client wires search, fetching, inference and recommendation together. It is safe for concurrent use.
type Client struct {
	provider   search.Provider
	fetcher    identity.Fetcher
	resolver   *identity.Resolver
	inferencer *signal.Inferencer
	ownership  *ownership.Table
	engine     *recommend.Engine
	logger     *slog.Logger
	tag        string
}

// New returns a Client.
func New(opts ...Option) *Client {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.provider == nil {
		cfg.provider = search.Null{}
	}
	if cfg.ownership == nil {
		cfg.ownership = ownership.DefaultTable()
	}

	fetcher := cfg.fetcher
	if fetcher == nil {
		fopts := []fetch.Option{fetch.WithLogger(cfg.logger)}
		if cfg.cache != nil {
			fopts = append(fopts, fetch.WithHTTPCache(cfg.cache))
		}
		if cfg.browserCookies {
			fopts = append(fopts, fetch.WithCookieSource(auth.NewBrowserSource(cfg.logger)))
		}
		fetcher = fetch.New(append(fopts, cfg.fetchOpts...)...)
	}

	inf := signal.New(signal.WithRuleset(cfg.ruleset), signal.WithLogger(cfg.logger))
	ropts := append([]identity.Option{identity.WithLogger(cfg.logger), identity.WithInferencer(inf)}, cfg.resolveOpts...)

	return &Client{
		provider:   cfg.provider,
		fetcher:    fetcher,
		resolver:   identity.New(cfg.provider, fetcher, ropts...),
		inferencer: inf,
		ownership:  cfg.ownership,
		engine: recommend.New(
			recommend.WithCatalog(cfg.catalog),
			recommend.WithAffiliateTag(cfg.affiliateTag),
			recommend.WithLogger(cfg.logger),
		),
		logger: cfg.logger,
		tag:    cfg.affiliateTag,
	}
}

// Resolve finds candidate profiles for a person.
func (c *Client) Resolve(ctx context.Context, name, location string) (Resolution, error) {
	return c.resolver.Resolve(ctx, name, location)
}

// Enrich fetches a single page and infers signals and ownership from it.
func (c *Client) Enrich(ctx context.Context, rawURL string) (*Profile, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	html, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c.Analyze(html, rawURL), nil
}

// Analyze infers a Profile from HTML that was already fetched.
func (c *Client) Analyze(html, baseURL string) *Profile {
	s := page.Extract(html, baseURL)
	v := c.inferencer.Infer(s)
	own := c.ownership.Infer(s, v)
	return &Profile{Summary: s, Signals: v, Owns: own.Owns, Nogos: own.Nogos}
}

// Recommend ranks gift ideas for the given signals and constraints.
func (c *Client) Recommend(req Request) Recommendations {
	return c.engine.Recommend(req)
}

// Suggest resolves name, profiles the automatic pick's cluster and recommends gifts for it.
// Signals and ownership are merged across every cluster member with a fetched page.
// When no identity is found the recommendations fall back to requirement-free ideas.
func (c *Client) Suggest(ctx context.Context, name, location string) (*Report, error) {
	res, err := c.Resolve(ctx, name, location)
	if err != nil {
		return nil, err
	}

	req := Request{Subject: strings.ToLower(strings.TrimSpace(name))}
	var prof *Profile
	if res.Auto != nil {
		prof = c.clusterProfile(ctx, res.Auto, res.Cluster)
		req.Signals = prof.Signals
		req.Owns = prof.Owns
		req.Nogos = prof.Nogos
	}

	return &Report{Resolution: res, Recommendations: c.Recommend(req), Profile: prof}, nil
}

// clusterProfile merges what the cluster's pages say. The summary is the automatic pick's.
func (c *Client) clusterProfile(ctx context.Context, auto *Candidate, members []Candidate) *Profile {
	if len(members) == 0 {
		members = []Candidate{*auto}
	}

	vs := make([]signal.Vector, 0, len(members))
	for _, m := range members {
		vs = append(vs, m.Signals)
	}
	v := signal.Merge(vs...)

	owns := make([]ownership.Profile, 0, len(members))
	for _, m := range members {
		owns = append(owns, c.ownership.Infer(m.Summary, v))
	}
	own := ownership.Merge(owns...)

	c.logger.DebugContext(ctx, "profiled cluster", "auto", auto.URL, "members", len(members), "signals", len(v))
	return &Profile{Summary: auto.Summary, Signals: v, Owns: own.Owns, Nogos: own.Nogos}
}

// registrySites are gift registry and wishlist hosts worth checking before buying anything.
var registrySites = []string{
	"amazon.com/hz/wishlist",
	"theknot.com/registry",
	"zola.com/registry",
	"babylist.com",
	"myregistry.com",
	"target.com/gift-registry",
}

// RegistryQuery returns the search query used by FindRegistries.
func RegistryQuery(name, location string) string {
	sites := make([]string, len(registrySites))
	for i, s := range registrySites {
		sites[i] = "site:" + s
	}
	q := fmt.Sprintf(`"%s" (%s)`, name, strings.Join(sites, " OR "))
	if location != "" {
		q += " " + location
	}
	return q
}

// FindRegistries searches public gift registries and wishlists for a person.
func (c *Client) FindRegistries(ctx context.Context, name, location string) ([]search.Hit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	hits, err := c.provider.Search(ctx, RegistryQuery(name, strings.TrimSpace(location)))
	if err != nil {
		return nil, fmt.Errorf("registry search: %w", err)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return hits, nil
}

// AffiliateURL rewrites an Amazon URL to carry the configured affiliate tag.
func (c *Client) AffiliateURL(rawURL string) (string, error) {
	u, err := recommend.AffiliateURL(rawURL, c.tag)
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}
	return u, nil
}
