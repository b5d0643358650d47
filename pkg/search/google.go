package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Google queries a Google Programmable Search Engine.
type Google struct {
	svc    *customsearch.Service
	logger *slog.Logger
	cx     string
}

// NewGoogle returns a Google CSE provider. endpoint overrides the API base URL when non-empty.
func NewGoogle(ctx context.Context, key, cx, endpoint string, opts ...Option) (*Google, error) {
	cfg := newConfig(opts)
	copts := []option.ClientOption{option.WithAPIKey(key)}
	if endpoint != "" {
		copts = append(copts, option.WithEndpoint(endpoint))
	}
	svc, err := customsearch.NewService(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &Google{svc: svc, logger: cfg.logger, cx: cx}, nil
}

// Name returns "google".
func (*Google) Name() string { return "google" }

type pagemap struct {
	Thumbnails []struct {
		Src string `json:"src"`
	} `json:"cse_thumbnail"`
}

// Search runs query against the configured engine.
func (g *Google) Search(ctx context.Context, query string) ([]Hit, error) {
	res, err := g.svc.Cse.List().Cx(g.cx).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Items))
	for _, item := range res.Items {
		h := Hit{Title: item.Title, URL: item.Link, Snippet: item.Snippet}
		if len(item.Pagemap) > 0 {
			var pm pagemap
			if err := json.Unmarshal(item.Pagemap, &pm); err == nil && len(pm.Thumbnails) > 0 {
				h.Image = pm.Thumbnails[0].Src
			}
		}
		hits = append(hits, h)
	}
	g.logger.DebugContext(ctx, "google search", "query", query, "hits", len(hits))
	return hits, nil
}
