// Package identity resolves a person's name to candidate public profiles.
//
// Search hits are deduplicated, the top hits are fetched and scored, and candidates that share a
// handle, a sameAs link or a hostname are clustered. The best cluster's strongest member becomes
// the automatic pick; every enriched candidate is also returned for manual selection.
package identity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/gifted/pkg/htmlutil"
	"github.com/codeGROOVE-dev/gifted/pkg/page"
	"github.com/codeGROOVE-dev/gifted/pkg/search"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

// ErrEmptyName is returned when Resolve is called without a name.
var ErrEmptyName = errors.New("name is required")

const (
	maxEnriched       = 8
	maxCandidates     = 12
	maxConfidence     = 0.98
	failedConfidence  = 0.2
	clusterBonusStep  = 0.03
	clusterBonusLimit = 0.15

	defaultFetchTimeout = 8 * time.Second
)

// Fetcher returns the raw HTML of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Candidate is a search hit, enriched with what its page revealed.
type Candidate struct {
	Summary      *page.Summary `json:"summary,omitempty"`
	Signals      signal.Vector `json:"signals,omitempty"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	URL          string        `json:"url"`
	Source       string        `json:"source"`
	Snippet      string        `json:"snippet,omitempty"`
	Image        string        `json:"image,omitempty"`
	LocationHint string        `json:"locationHint,omitempty"`
	Handles      []string      `json:"handles"`
	SameAs       []string      `json:"sameAs"`
	Confidence   float64       `json:"confidence"`
}

// Result is the outcome of Resolve. Auto is nil when nothing was found.
// Cluster holds the members of the cluster Auto was picked from, in discovery order.
type Result struct {
	Auto       *Candidate  `json:"auto"`
	Candidates []Candidate `json:"candidates"`
	Cluster    []Candidate `json:"cluster,omitempty"`
}

// Resolver resolves names to candidate profiles. It is safe for concurrent use.
type Resolver struct {
	provider     search.Provider
	fetcher      Fetcher
	inferencer   *signal.Inferencer
	logger       *slog.Logger
	fetchTimeout time.Duration
	concurrency  int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFetchTimeout bounds each page fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithConcurrency bounds how many pages are fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithInferencer sets the signal inferencer used on fetched pages.
func WithInferencer(inf *signal.Inferencer) Option {
	return func(r *Resolver) {
		if inf != nil {
			r.inferencer = inf
		}
	}
}

// New returns a Resolver. A nil provider behaves like search.Null.
func New(provider search.Provider, fetcher Fetcher, opts ...Option) *Resolver {
	if provider == nil {
		provider = search.Null{}
	}
	r := &Resolver{
		provider:     provider,
		fetcher:      fetcher,
		logger:       slog.Default(),
		fetchTimeout: defaultFetchTimeout,
		concurrency:  maxEnriched,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.inferencer == nil {
		r.inferencer = signal.New(signal.WithLogger(r.logger))
	}
	return r
}

// Queries returns the search queries issued for a name and optional location.
func Queries(name, location string) []string {
	qs := []string{
		fmt.Sprintf(`"%s" (site:linkedin.com/in OR site:instagram.com OR site:twitter.com OR site:x.com `+
			`OR site:steamcommunity.com OR site:goodreads.com OR site:about.me OR site:github.com)`, name),
		name + " profile",
		strings.Join(strings.Fields(name+" "+location+" social"), " "),
	}
	if location != "" {
		qs = append(qs, fmt.Sprintf(`"%s" "%s" profile`, name, location))
	}
	return qs
}

// Dedupe drops hits without a URL and repeated (hostname, title) pairs, keeping the first.
func Dedupe(hits []search.Hit) []search.Hit {
	seen := make(map[string]bool)
	var out []search.Hit
	for _, h := range hits {
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		key := htmlutil.Hostname(h.URL) + "|" + h.Title
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

// Resolve searches for name, enriches the top hits and clusters them.
// Search and fetch failures are absorbed; only an empty name is an error.
func (r *Resolver) Resolve(ctx context.Context, name, location string) (Result, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	if name == "" {
		return Result{}, ErrEmptyName
	}

	hits := Dedupe(r.search(ctx, Queries(name, location)))
	if len(hits) > maxEnriched {
		hits = hits[:maxEnriched]
	}
	if len(hits) == 0 {
		r.logger.InfoContext(ctx, "no search results", "name", name, "provider", r.provider.Name())
		return Result{Candidates: []Candidate{}}, nil
	}

	cands := r.enrich(ctx, hits, name, location)
	clusters := Clusters(cands)

	var auto *Candidate
	var members []Candidate
	if b := best(clusters); b != nil {
		pick := *b.top()
		bonus := min(clusterBonusLimit, clusterBonusStep*float64(len(b.Members)))
		pick.Confidence = clamp(pick.Confidence+bonus, 0, maxConfidence)
		auto = &pick
		for _, m := range b.Members {
			members = append(members, *m)
		}
	}

	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, *c)
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}

	r.logger.InfoContext(ctx, "resolved identity",
		"name", name, "candidates", len(out), "clusters", len(clusters), "auto", auto.URL, "confidence", auto.Confidence)
	return Result{Auto: auto, Candidates: out, Cluster: members}, nil
}

// search issues every query concurrently and concatenates the hits in query order.
func (r *Resolver) search(ctx context.Context, queries []string) []search.Hit {
	results := make([][]search.Hit, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			hits, err := r.provider.Search(ctx, q)
			if err != nil {
				r.logger.WarnContext(ctx, "search failed", "provider", r.provider.Name(), "query", q, "error", err)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // search failures are absorbed per query
	return slices.Concat(results...)
}

// enrich fetches and scores every hit with bounded concurrency. Output order matches hits.
func (r *Resolver) enrich(ctx context.Context, hits []search.Hit, name, location string) []*Candidate {
	cands := make([]*Candidate, len(hits))
	var failed atomic.Int32

	g := errgroup.Group{}
	g.SetLimit(r.concurrency)
	for i, h := range hits {
		g.Go(func() error {
			c := r.candidate(h, name, location)
			if err := r.score(ctx, c, h, name, location); err != nil {
				failed.Add(1)
				r.logger.DebugContext(ctx, "enrichment failed", "url", h.URL, "error", err)
			}
			cands[i] = c
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // enrichment failures are isolated per candidate

	r.logger.DebugContext(ctx, "enriched candidates", "count", len(cands), "failed", failed.Load())
	return cands
}

func (r *Resolver) candidate(h search.Hit, name, location string) *Candidate {
	display := strings.TrimSpace(strings.SplitN(h.Title, "|", 2)[0])
	if display == "" {
		display = name
	}
	return &Candidate{
		ID:           h.URL,
		Name:         display,
		Title:        h.Title,
		URL:          h.URL,
		Source:       r.provider.Name(),
		Snippet:      h.Snippet,
		Image:        h.Image,
		LocationHint: location,
		Handles:      []string{},
		SameAs:       []string{},
		Confidence:   failedConfidence,
	}
}

// score fetches the candidate's page and fills in evidence and confidence.
// On error the candidate keeps the failure confidence and empty evidence.
func (r *Resolver) score(ctx context.Context, c *Candidate, h search.Hit, name, location string) error {
	if r.fetcher == nil {
		return errors.New("no fetcher configured")
	}

	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	html, err := r.fetcher.Fetch(fctx, h.URL)
	if err != nil {
		return err
	}

	s := page.Extract(html, h.URL)
	c.Summary = s
	c.Handles = unique(s.Handles)
	c.SameAs = unique(s.SameAs)
	c.Signals = r.inferencer.Infer(s)
	if c.Image == "" {
		c.Image = s.Image
	}

	title := h.Title
	if title == "" {
		title = s.Title
	}
	loc := 0.0
	if location != "" {
		loc = locationMatch(location, h.Snippet+" "+s.TextSample+" "+s.Title)
	}
	c.Confidence = confidence(nameMatch(name, title), loc, len(c.Handles)+len(c.SameAs))
	return nil
}

func unique(items []string) []string {
	out := []string{}
	for _, s := range items {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
