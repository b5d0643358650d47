// Package catalog holds the versioned gift catalog and its "already solved" suppressions.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in catalog.
const DefaultVersion = "2025.1"

// GiftIdea is a catalog entry.
//
// Requires lists signal keys that must all be present with enough confidence.
// Excludes lists signal keys that disqualify the idea when present.
type GiftIdea struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	SearchQuery string   `yaml:"query" json:"query"`
	PriceHint   string   `yaml:"price,omitempty" json:"priceHint,omitempty"`
	Reason      string   `yaml:"reason,omitempty" json:"reason,omitempty"`
	Tags        []string `yaml:"tags" json:"tags"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	Excludes    []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`
}

// Suppression drops ideas whose title matches TitlePattern when the person already owns Owns.
type Suppression struct {
	re           *regexp.Regexp
	Owns         string `yaml:"owns"`
	TitlePattern string `yaml:"title"`
}

// Matches reports whether the suppression applies to an idea title for the given owned tags.
func (s *Suppression) Matches(owns map[string]bool, title string) bool {
	return owns[s.Owns] && s.re.MatchString(title)
}

// Catalog is an immutable, versioned list of gift ideas.
type Catalog struct {
	Version      string        `yaml:"version"`
	Ideas        []GiftIdea    `yaml:"ideas"`
	Suppressions []Suppression `yaml:"suppressions"`
}

// New validates ideas and compiles suppressions.
func New(version string, ideas []GiftIdea, suppressions []Suppression) (*Catalog, error) {
	c := &Catalog{Version: version, Ideas: ideas, Suppressions: suppressions}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) validate() error {
	if len(c.Ideas) == 0 {
		return errors.New("catalog has no ideas")
	}
	seen := make(map[string]bool, len(c.Ideas))
	for _, idea := range c.Ideas {
		switch {
		case idea.ID == "":
			return fmt.Errorf("idea %q: id is required", idea.Title)
		case seen[idea.ID]:
			return fmt.Errorf("idea %q: duplicate id", idea.ID)
		case idea.Title == "" || idea.SearchQuery == "":
			return fmt.Errorf("idea %q: title and query are required", idea.ID)
		default:
		}
		seen[idea.ID] = true
	}
	for i := range c.Suppressions {
		s := &c.Suppressions[i]
		if s.Owns == "" || s.TitlePattern == "" {
			return fmt.Errorf("suppression %d: owns and title are required", i)
		}
		re, err := regexp.Compile("(?i)" + s.TitlePattern)
		if err != nil {
			return fmt.Errorf("suppression %q: %w", s.Owns, err)
		}
		s.re = re
	}
	return nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultVersion, defaultIdeas(), []Suppression{
		{Owns: "playstation-ecosystem", TitlePattern: `ps5.*controller`},
	})
	if err != nil {
		panic("catalog: invalid default catalog: " + err.Error())
	}
	return c
}

func defaultIdeas() []GiftIdea {
	return []GiftIdea{
		// Platform accessories
		{
			ID: "ps5-charging-dock", Title: "PS5 DualSense Charging Dock",
			SearchQuery: "PS5 DualSense charging dock", PriceHint: "$25–$40",
			Tags: []string{"gaming", "playstation"}, Requires: []string{"gaming.playstation"},
			Excludes: []string{"gaming.xbox", "gaming.nintendo"},
			Reason:   "Useful daily accessory for PS5 owners.",
		},
		{
			ID: "ps5-headset", Title: "PS5-Compatible Wireless Headset",
			SearchQuery: "PlayStation 5 wireless headset", PriceHint: "$70–$180",
			Tags: []string{"gaming", "playstation"}, Requires: []string{"gaming.playstation"},
		},
		{
			ID: "ps5-controller", Title: "Spare PS5 DualSense Controller",
			SearchQuery: "PS5 DualSense wireless controller", PriceHint: "$55–$75",
			Tags: []string{"gaming", "playstation"}, Requires: []string{"gaming.playstation"},
			Excludes: []string{"gaming.xbox"},
		},
		{
			ID: "xbox-quickcharge", Title: "Xbox Controller Quick-Charge Kit",
			SearchQuery: "Xbox controller rechargeable battery and charging station", PriceHint: "$25–$40",
			Tags: []string{"gaming", "xbox"}, Requires: []string{"gaming.xbox"},
		},
		{
			ID: "switch-carry", Title: "Nintendo Switch Carry Case + Glass",
			SearchQuery: "Nintendo Switch OLED carry case tempered glass", PriceHint: "$20–$35",
			Tags: []string{"gaming", "nintendo"}, Requires: []string{"gaming.nintendo"},
		},
		{
			ID: "steamdeck-stand", Title: "Steam Deck Dock/Stand (USB-C)",
			SearchQuery: "Steam Deck dock stand usb c hub", PriceHint: "$30–$90",
			Tags: []string{"gaming", "pc"}, Requires: []string{"gaming.pc"},
		},
		// Phone ecosystems
		{
			ID: "magsafe-stand", Title: "MagSafe 3-in-1 Stand",
			SearchQuery: "magsafe 3 in 1 charging stand", PriceHint: "$50–$120",
			Tags: []string{"apple", "charging"}, Requires: []string{"ecosystem.apple"},
			Excludes: []string{"ecosystem.android"},
			Reason:   "Great if they have iPhone + AirPods/Watch.",
		},
		{
			ID: "android-stand", Title: "USB-C Multi-Device Charging Stand",
			SearchQuery: "usb c charging stand phone earbuds watch", PriceHint: "$40–$100",
			Tags: []string{"android", "charging"}, Requires: []string{"ecosystem.android"},
		},
		// Running and fitness
		{
			ID: "running-headlamp", Title: "Runner’s Lightweight Headlamp (USB-C)",
			SearchQuery: "running headlamp lightweight usb c", PriceHint: "$20–$45",
			Tags: []string{"running"}, Requires: []string{"hobby.running"},
		},
		{
			ID: "balega-socks", Title: "Premium Running Socks (2–6 pack)",
			SearchQuery: "premium running socks blister", PriceHint: "$20–$40",
			Tags: []string{"running"}, Requires: []string{"hobby.running"},
		},
		// Photography
		{
			ID: "sdxc-pro", Title: "UHS-II SDXC Card (High Speed)",
			SearchQuery: "UHS-II SDXC 128GB", PriceHint: "$35–$90",
			Tags: []string{"photography"}, Requires: []string{"hobby.photography"},
		},
		// Coffee
		{
			ID: "aeropress-bundle", Title: "AeroPress Upgrades Bundle",
			SearchQuery: "AeroPress flow control metal filter cap", PriceHint: "$20–$50",
			Tags: []string{"coffee"}, Requires: []string{"hobby.coffee"},
		},
		// Reading
		{
			ID: "clip-light", Title: "Rechargeable Book Clip Light (Warm/Neutral)",
			SearchQuery: "book light rechargeable warm", PriceHint: "$15–$25",
			Tags: []string{"reading"}, Requires: []string{"hobby.reading"},
		},
		// Crowd-pleasers with no requirements; they rank below anything signal-driven.
		{
			ID: "insulated-tumbler", Title: "Insulated Stainless Tumbler (20 oz)",
			SearchQuery: "insulated stainless steel tumbler 20 oz lid", PriceHint: "$20–$35",
			Tags: []string{"home"}, Reason: "Highly-rated classic pick.",
		},
		{
			ID: "hand-warmer", Title: "Rechargeable Hand Warmer",
			SearchQuery: "rechargeable hand warmer", PriceHint: "$20–$30",
			Tags: []string{"gadget", "random-micro-usb"}, Reason: "Highly-rated classic pick.",
		},
		{
			ID: "card-game", Title: "Two-Player Strategy Card Game",
			SearchQuery: "two player strategy card game", PriceHint: "$15–$25",
			Tags: []string{"games"}, Reason: "Highly-rated classic pick.",
		},
	}
}
