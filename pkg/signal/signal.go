// Package signal infers interest, ecosystem and account signals from page summaries.
package signal

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/gifted/pkg/page"
)

// Inferencer applies a Ruleset to page summaries. It holds no mutable state and is safe for concurrent use.
type Inferencer struct {
	rules  *Ruleset
	logger *slog.Logger
}

// Option configures an Inferencer.
type Option func(*Inferencer)

// WithRuleset replaces the built-in rule tables.
func WithRuleset(rs *Ruleset) Option {
	return func(i *Inferencer) {
		if rs != nil {
			i.rules = rs
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inferencer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New returns an Inferencer using the default ruleset unless overridden.
func New(opts ...Option) *Inferencer {
	i := &Inferencer{logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	if i.rules == nil {
		i.rules = DefaultRuleset()
	}
	return i
}

// Ruleset returns the rule tables in use.
func (i *Inferencer) Ruleset() *Ruleset {
	return i.rules
}

// Infer derives a signal vector from a single page summary.
func (i *Inferencer) Infer(s *page.Summary) Vector {
	v := Vector{}
	if s == nil {
		return v
	}

	parts := []string{s.Title, s.Description, s.TextSample}
	parts = append(parts, s.Links...)
	parts = append(parts, s.SameAs...)
	text := strings.ToLower(strings.Join(parts, " "))

	for _, r := range i.rules.Text {
		if r.re.MatchString(text) {
			v.Add(r.Key, r.Weight)
		}
	}

	for _, link := range accountLinks(s) {
		for _, r := range i.rules.Links {
			if r.re.MatchString(link) {
				v.Add(r.Key, r.Weight)
			}
		}
	}

	v.prune()
	i.logger.Debug("inferred signals", "url", s.URL, "keys", len(v))
	return v
}

// accountLinks is the deduplicated union of links and sameAs, in first-seen order.
func accountLinks(s *page.Summary) []string {
	out := make([]string, 0, len(s.Links)+len(s.SameAs))
	for _, l := range slices.Concat(s.Links, s.SameAs) {
		l = strings.ToLower(l)
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
