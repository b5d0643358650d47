// Package recommend maps signals, ownership and no-gos onto the gift catalog.
package recommend

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/gifted/pkg/catalog"
	"github.com/codeGROOVE-dev/gifted/pkg/seeded"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

const (
	// MaxIdeas caps the number of returned recommendations.
	MaxIdeas = 16

	evidenceThreshold = 0.49
	excludeThreshold  = 0.4
	requireThreshold  = 0.45
	baselineScore     = 0.1
	accessoryBonus    = 0.2

	defaultReason = "Good fit based on signals"
)

var (
	accessoryPattern = regexp.MustCompile(`(?i)dock|stand|case|socks|light|bundle|charg`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Prefs is the legacy preference block; its entries are merged into Owns and Nogos.
type Prefs struct {
	KnownOwns  []string `json:"knownOwns,omitempty"`
	KnownNoGos []string `json:"knownNoGos,omitempty"`
}

// Request is the input to Recommend.
//
// Subject seeds the tie-breaking jitter; the same subject and inputs always give the same order.
// MinPrice and MaxPrice are ignored when zero.
type Request struct {
	Signals  signal.Vector `json:"signals"`
	Prefs    *Prefs        `json:"prefs,omitempty"`
	Subject  string        `json:"subject,omitempty"`
	Owns     []string      `json:"owns,omitempty"`
	Nogos    []string      `json:"nogos,omitempty"`
	MinPrice float64       `json:"minPrice,omitempty"`
	MaxPrice float64       `json:"maxPrice,omitempty"`
}

// Recommendation is a ranked gift idea.
type Recommendation struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Image     string   `json:"image,omitempty"`
	PriceHint string   `json:"priceHint,omitempty"`
	Reason    string   `json:"reason"`
	Tags      []string `json:"tags"`
	Evidence  []string `json:"evidence"`
	Score     float64  `json:"score"`
}

// Result holds the ranked ideas and the evidence shared by all of them.
type Result struct {
	Ideas    []Recommendation `json:"ideas"`
	Evidence []string         `json:"evidence"`
}

// Engine ranks catalog entries. It is safe for concurrent use.
type Engine struct {
	catalog      *catalog.Catalog
	logger       *slog.Logger
	affiliateTag string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithAffiliateTag appends tag to every generated storefront URL.
func WithAffiliateTag(tag string) Option {
	return func(e *Engine) { e.affiliateTag = tag }
}

// WithLogger sets a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Engine using the default catalog unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	return e
}

// Catalog returns the catalog in use.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

type scored struct {
	idea   *catalog.GiftIdea
	score  float64
	jitter float64 // breaks exact score ties only
}

// Recommend filters, scores and ranks the catalog for a request.
// Incoming signals are clamped to [0, 1]; non-positive entries are dropped.
func (e *Engine) Recommend(req Request) Result {
	sig := signal.Merge(req.Signals)
	owns := toSet(req.Owns)
	nogos := toSet(req.Nogos)
	if req.Prefs != nil {
		addAll(owns, req.Prefs.KnownOwns)
		addAll(nogos, req.Prefs.KnownNoGos)
	}

	evidence := Evidence(sig)
	src := seeded.FromKey(req.Subject)

	// Visit the catalog in a subject-keyed order so jitter draws do not depend on catalog position.
	order := make([]int, len(e.catalog.Ideas))
	for i := range order {
		order[i] = i
	}
	src.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	var candidates []scored
	for _, idx := range order {
		idea := &e.catalog.Ideas[idx]
		if excluded(idea, sig, nogos) || !satisfied(idea, sig) || e.suppressed(idea, owns) {
			continue
		}
		candidates = append(candidates, scored{idea: idea, score: score(idea, sig), jitter: src.Float64()})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.jitter, a.jitter)
	})

	ideas := []Recommendation{}
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !inPriceRange(c.idea.PriceHint, req.MinPrice, req.MaxPrice) {
			continue
		}
		key := NormalizeTitle(c.idea.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		ideas = append(ideas, e.recommendation(c, evidence))
		if len(ideas) == MaxIdeas {
			break
		}
	}

	e.logger.Debug("recommendations ranked",
		"subject", req.Subject, "catalog", e.catalog.Version, "candidates", len(candidates), "returned", len(ideas))
	return Result{Ideas: ideas, Evidence: evidence}
}

func (e *Engine) recommendation(c scored, evidence []string) Recommendation {
	reason := c.idea.Reason
	if reason == "" {
		reason = defaultReason
	}
	return Recommendation{
		ID:        c.idea.ID,
		Title:     c.idea.Title,
		URL:       SearchURL(c.idea.SearchQuery, e.affiliateTag),
		PriceHint: c.idea.PriceHint,
		Reason:    reason,
		Tags:      slices.Clone(c.idea.Tags),
		Evidence:  evidence,
		Score:     c.score,
	}
}

func (e *Engine) suppressed(idea *catalog.GiftIdea, owns map[string]bool) bool {
	for i := range e.catalog.Suppressions {
		if e.catalog.Suppressions[i].Matches(owns, idea.Title) {
			return true
		}
	}
	return false
}

func excluded(idea *catalog.GiftIdea, sig signal.Vector, nogos map[string]bool) bool {
	for _, k := range idea.Excludes {
		if sig.Get(k) > excludeThreshold {
			return true
		}
	}
	for _, t := range idea.Tags {
		if nogos[t] {
			return true
		}
	}
	return false
}

func satisfied(idea *catalog.GiftIdea, sig signal.Vector) bool {
	for _, k := range idea.Requires {
		if sig.Get(k) < requireThreshold {
			return false
		}
	}
	return true
}

func score(idea *catalog.GiftIdea, sig signal.Vector) float64 {
	s := baselineScore
	if len(idea.Requires) > 0 {
		s = 0
		for _, k := range idea.Requires {
			s += sig.Get(k)
		}
	}
	if accessoryPattern.MatchString(idea.Title) {
		s += accessoryBonus
	}
	return s
}

func inPriceRange(hint string, lo, hi float64) bool {
	if lo <= 0 && hi <= 0 {
		return true
	}
	plo, phi, ok := catalog.PriceRange(hint)
	if !ok {
		return true
	}
	if lo > 0 && phi < lo {
		return false
	}
	if hi > 0 && plo > hi {
		return false
	}
	return true
}

// Evidence lists every signal above the evidence threshold as "key=NN%", sorted by key.
func Evidence(sig signal.Vector) []string {
	out := []string{}
	for _, k := range sig.Keys() {
		if v := sig[k]; v > evidenceThreshold {
			out = append(out, fmt.Sprintf("%s=%d%%", k, int(math.Round(v*100))))
		}
	}
	return out
}

// NormalizeTitle lower-cases a title and reduces it to alphanumeric tokens separated by single spaces.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(nonAlnumPattern.ReplaceAllString(strings.ToLower(title), " "))
}

func toSet(tags []string) map[string]bool {
	m := make(map[string]bool, len(tags))
	addAll(m, tags)
	return m
}

func addAll(m map[string]bool, tags []string) {
	for _, t := range tags {
		m[t] = true
	}
}
