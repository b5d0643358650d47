// Package ownership infers what a person probably already owns and what they should not be given.
package ownership

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/codeGROOVE-dev/gifted/pkg/page"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

const (
	ownThreshold  = 0.6
	nogoThreshold = 0.5
)

// Profile is the set of owned ecosystems and the tags to avoid.
type Profile struct {
	Owns  []string `json:"owns"`
	Nogos []string `json:"nogos"`
}

// Cue marks Tag as owned when Pattern matches the page text or Signal is above the ownership threshold.
type Cue struct {
	re      *regexp.Regexp
	Tag     string `yaml:"tag"`
	Signal  string `yaml:"signal"`
	Pattern string `yaml:"pattern"`
}

// Exclusion adds Tag to the no-gos when Signal is above the exclusion threshold.
type Exclusion struct {
	Signal string `yaml:"signal"`
	Tag    string `yaml:"tag"`
}

// Table holds the ownership cues and exclusions.
type Table struct {
	Cues       []Cue       `yaml:"cues"`
	Exclusions []Exclusion `yaml:"exclusions"`
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	t, err := NewTable(
		[]Cue{
			{Tag: "playstation-ecosystem", Signal: "gaming.playstation", Pattern: `\b(?:my|our)\s+(?:ps5|ps4|playstation|dualsense)\b`},
			{Tag: "xbox-ecosystem", Signal: "gaming.xbox", Pattern: `\b(?:my|our)\s+xbox\b`},
			{Tag: "switch-ecosystem", Signal: "gaming.nintendo", Pattern: `\b(?:my|our)\s+(?:nintendo\s+)?switch\b`},
			{Tag: "iphone/ios", Signal: "ecosystem.apple", Pattern: `\b(?:my|our)\s+(?:iphone|ipad|apple watch)\b`},
			{Tag: "android", Signal: "ecosystem.android", Pattern: `\b(?:my|our)\s+(?:pixel|android(?:\s+phone)?)\b`},
		},
		[]Exclusion{
			{Signal: "gaming.playstation", Tag: "xbox"},
			{Signal: "gaming.xbox", Tag: "playstation"},
			{Signal: "ecosystem.apple", Tag: "random-micro-usb"},
		},
	)
	if err != nil {
		panic("ownership: invalid default table: " + err.Error())
	}
	return t
}

// NewTable compiles cue patterns case-insensitively.
func NewTable(cues []Cue, exclusions []Exclusion) (*Table, error) {
	t := &Table{Cues: cues, Exclusions: exclusions}
	for i := range t.Cues {
		c := &t.Cues[i]
		if c.Tag == "" {
			return nil, fmt.Errorf("cue %d: tag is required", i)
		}
		if c.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("cue %q: %w", c.Tag, err)
		}
		c.re = re
	}
	return t, nil
}

// Infer derives a Profile from a page summary and its signals using the default table.
func Infer(s *page.Summary, v signal.Vector) Profile {
	return DefaultTable().Infer(s, v)
}

// Infer derives a Profile from a page summary and its signals. s may be nil when only signals are known.
func (t *Table) Infer(s *page.Summary, v signal.Vector) Profile {
	text := s.Text()
	p := Profile{Owns: []string{}, Nogos: []string{}}

	for _, c := range t.Cues {
		if (c.re != nil && c.re.MatchString(text)) || v.Get(c.Signal) > ownThreshold {
			p.Owns = append(p.Owns, c.Tag)
		}
	}
	for _, e := range t.Exclusions {
		if v.Get(e.Signal) > nogoThreshold {
			p.Nogos = append(p.Nogos, e.Tag)
		}
	}

	p.Owns = dedupe(p.Owns)
	p.Nogos = dedupe(p.Nogos)
	return p
}

// Merge unions several profiles.
func Merge(profiles ...Profile) Profile {
	p := Profile{Owns: []string{}, Nogos: []string{}}
	for _, q := range profiles {
		p.Owns = append(p.Owns, q.Owns...)
		p.Nogos = append(p.Nogos, q.Nogos...)
	}
	p.Owns = dedupe(p.Owns)
	p.Nogos = dedupe(p.Nogos)
	return p
}

func dedupe(tags []string) []string {
	slices.Sort(tags)
	return slices.Compact(tags)
}
