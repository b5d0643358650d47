package signal

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in rule tables.
const DefaultVersion = "2025.1"

// Rule adds Weight to Key when Pattern matches.
type Rule struct {
	re      *regexp.Regexp
	Key     string  `yaml:"key"`
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// Ruleset is a versioned pair of rule tables.
// Text rules are matched once against the page text; link rules are matched against every link.
type Ruleset struct {
	Version string `yaml:"version"`
	Text    []Rule `yaml:"text"`
	Links   []Rule `yaml:"links"`
}

// DefaultRuleset returns the built-in rule tables.
func DefaultRuleset() *Ruleset {
	rs, err := NewRuleset(DefaultVersion, defaultText(), defaultLinks())
	if err != nil {
		panic("signal: invalid default ruleset: " + err.Error())
	}
	return rs
}

func defaultText() []Rule {
	return []Rule{
		// Ecosystems
		{Key: "ecosystem.apple", Pattern: `iphone|ios|macbook|imac|airpods|magsafe|apple watch`, Weight: 0.75},
		{Key: "ecosystem.android", Pattern: `android|pixel`, Weight: 0.75},
		{Key: "ecosystem.samsung", Pattern: `galaxy`, Weight: 0.6},
		// Gaming platforms
		{Key: "gaming.playstation", Pattern: `playstation|ps5|ps4|dualsense`, Weight: 0.8},
		{Key: "gaming.xbox", Pattern: `xbox`, Weight: 0.8},
		{Key: "gaming.nintendo", Pattern: `nintendo|switch`, Weight: 0.8},
		{Key: "gaming.pc", Pattern: `steamcommunity\.com|steam deck|pc gamer`, Weight: 0.7},
		// Hobbies
		{Key: "hobby.running", Pattern: `strava|garmin|half marathon|ultra|trail run|10k`, Weight: 0.7},
		{Key: "hobby.fitness", Pattern: `peloton|fitness|crossfit|weightlifting`, Weight: 0.5},
		{Key: "hobby.photography", Pattern: `fujifilm|sony\s*a[0-9]|canon eos|nikon z`, Weight: 0.7},
		{Key: "hobby.coffee", Pattern: `aeropress|v60|df64|breville barista|espresso`, Weight: 0.6},
		{Key: "hobby.reading", Pattern: `goodreads\.com|storygraph|sci[- ]?fi|fantasy novels`, Weight: 0.5},
		{Key: "hobby.music", Pattern: `spotify\.com|apple music|bandcamp`, Weight: 0.4},
		{Key: "persona.techie", Pattern: `github\.com|docker|kubernetes|open source|neural network|kaggle`, Weight: 0.7},
	}
}

func defaultLinks() []Rule {
	return []Rule{
		{Key: "account.linkedin", Pattern: `linkedin\.com/in/`, Weight: 0.6},
		{Key: "account.instagram", Pattern: `instagram\.com/`, Weight: 0.6},
		{Key: "account.twitter", Pattern: `\b(?:x|twitter)\.com/`, Weight: 0.6},
		{Key: "account.steam", Pattern: `steamcommunity\.com/`, Weight: 0.7},
		{Key: "account.goodreads", Pattern: `goodreads\.com/`, Weight: 0.7},
		{Key: "account.strava", Pattern: `strava\.com/`, Weight: 0.7},
		{Key: "account.github", Pattern: `github\.com/`, Weight: 0.7},
	}
}

// NewRuleset validates and compiles the given tables.
// Text patterns are keyword alternations and get wrapped in word boundaries.
func NewRuleset(version string, text, links []Rule) (*Ruleset, error) {
	rs := &Ruleset{Version: version, Text: text, Links: links}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ParseRuleset decodes a YAML ruleset.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRuleset reads a YAML ruleset from path.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return ParseRuleset(data)
}

func (rs *Ruleset) compile() error {
	if len(rs.Text) == 0 && len(rs.Links) == 0 {
		return errors.New("ruleset has no rules")
	}
	for i := range rs.Text {
		if err := rs.Text[i].compile(`(?i)\b(?:%s)\b`); err != nil {
			return err
		}
	}
	for i := range rs.Links {
		if err := rs.Links[i].compile(`(?i)%s`); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rule) compile(wrap string) error {
	if r.Key == "" || r.Pattern == "" {
		return fmt.Errorf("rule %q: key and pattern are required", r.Key)
	}
	if r.Weight <= 0 || r.Weight > 1 {
		return fmt.Errorf("rule %q: weight %v outside (0, 1]", r.Key, r.Weight)
	}
	re, err := regexp.Compile(fmt.Sprintf(wrap, r.Pattern))
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Key, err)
	}
	r.re = re
	return nil
}
