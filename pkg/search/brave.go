package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/codeGROOVE-dev/gifted/pkg/httpcache"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API.
type Brave struct {
	client   *http.Client
	logger   *slog.Logger
	key      string
	endpoint string
}

// NewBrave returns a Brave provider authenticating with key.
func NewBrave(key string, opts ...Option) *Brave {
	cfg := newConfig(opts)
	return &Brave{client: cfg.client, logger: cfg.logger, key: key, endpoint: braveEndpoint}
}

// Name returns "brave".
func (*Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Profile     struct {
				Img string `json:"img"`
			} `json:"profile"`
			Thumbnail struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs query against Brave.
func (b *Brave) Search(ctx context.Context, query string) ([]Hit, error) {
	u := b.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.key)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode != http.StatusOK {
		return nil, &httpcache.HTTPError{URL: b.endpoint, StatusCode: resp.StatusCode}
	}

	var br braveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	hits := make([]Hit, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		img := r.Profile.Img
		if img == "" {
			img = r.Thumbnail.Src
		}
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Description, Image: img})
	}
	b.logger.DebugContext(ctx, "brave search", "query", query, "hits", len(hits))
	return hits, nil
}
