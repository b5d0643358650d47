// Package search queries web search providers for candidate profile pages.
package search

import (
	"context"
	"strings"
)

// Hit is a single search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Provider runs a web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Null is a Provider that never returns results.
type Null struct{}

// Name returns "none".
func (Null) Name() string { return "none" }

// Search returns no hits.
func (Null) Search(context.Context, string) ([]Hit, error) { return nil, nil }

// Config selects and configures a provider.
type Config struct {
	BraveKey  string
	GoogleKey string
	GoogleCX  string
	BraveURL  string // override for tests
	GoogleURL string // override for tests
}

// FromConfig returns Brave when a key is set, else Google CSE when both key and engine id are set, else Null.
func FromConfig(ctx context.Context, cfg Config, opts ...Option) (Provider, error) {
	switch {
	case strings.TrimSpace(cfg.BraveKey) != "":
		b := NewBrave(cfg.BraveKey, opts...)
		if cfg.BraveURL != "" {
			b.endpoint = cfg.BraveURL
		}
		return b, nil
	case strings.TrimSpace(cfg.GoogleKey) != "" && strings.TrimSpace(cfg.GoogleCX) != "":
		return NewGoogle(ctx, cfg.GoogleKey, cfg.GoogleCX, cfg.GoogleURL, opts...)
	default:
		return Null{}, nil
	}
}
