package identity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/gifted/pkg/search"
)

type fakeProvider struct {
	hits    []search.Hit
	err     error
	mu      sync.Mutex
	queries []string
}

func (*fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, q string) ([]search.Hit, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()
	return p.hits, p.err
}

type fakeFetcher struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls.Add(1)
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("connection refused")
	}
	return html, nil
}

func personPage(title string, sameAs ...string) string {
	ld := ""
	for i, s := range sameAs {
		if i > 0 {
			ld += ","
		}
		ld += fmt.Sprintf("%q", s)
	}
	return `<html><head><title>` + title + `</title>
<script type="application/ld+json">{"@type":"Person","sameAs":[` + ld + `]}</script></head>
<body>Hello there</body></html>`
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestResolveEmptyName(t *testing.T) {
	r := New(&fakeProvider{}, &fakeFetcher{})
	for _, name := range []string{"", "   "} {
		if _, err := r.Resolve(context.Background(), name, ""); !errors.Is(err, ErrEmptyName) {
			t.Errorf("Resolve(%q) error = %v, want ErrEmptyName", name, err)
		}
	}
}

func TestResolveNoResults(t *testing.T) {
	tests := []struct {
		name     string
		provider search.Provider
	}{
		{"empty provider", &fakeProvider{}},
		{"failing provider", &fakeProvider{err: errors.New("quota exceeded")}},
		{"null provider", search.Null{}},
		{"nil provider", nil},
		{"hits without urls", &fakeProvider{hits: []search.Hit{{Title: "Jane"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.provider, &fakeFetcher{}).Resolve(context.Background(), "Jane Doe", "")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Auto != nil {
				t.Errorf("Auto = %+v, want nil", got.Auto)
			}
			if got.Candidates == nil || len(got.Candidates) != 0 {
				t.Errorf("Candidates = %#v, want empty non-nil", got.Candidates)
			}
		})
	}
}

func TestResolveSharedSameAs(t *testing.T) {
	provider := &fakeProvider{hits: []search.Hit{
		{Title: "Jane Doe | LinkedIn", URL: "https://www.linkedin.com/in/janedoe", Snippet: "Engineer"},
		{Title: "Jane Doe - Personal site", URL: "https://janedoe.dev/"},
		{Title: "Someone Else", URL: "https://other.example.com/x"},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.linkedin.com/in/janedoe": personPage("Jane Doe", "https://github.com/janedoe"),
		"https://janedoe.dev/":                personPage("Jane's site", "https://github.com/janedoe"),
	}}

	got, err := New(provider, fetcher).Resolve(context.Background(), "Jane Doe", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(got.Candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got.Candidates))
	}
	wantConf := 0.1 + 0.55 + 0.15*0.25
	var urls []string
	for _, c := range got.Candidates {
		urls = append(urls, c.URL)
	}
	wantURLs := []string{"https://www.linkedin.com/in/janedoe", "https://janedoe.dev/", "https://other.example.com/x"}
	if diff := cmp.Diff(wantURLs, urls); diff != "" {
		t.Errorf("candidate order mismatch (-want +got):\n%s", diff)
	}
	if !approxEqual(got.Candidates[0].Confidence, wantConf) || !approxEqual(got.Candidates[1].Confidence, wantConf) {
		t.Errorf("confidences = %v, %v; want %v", got.Candidates[0].Confidence, got.Candidates[1].Confidence, wantConf)
	}

	failed := got.Candidates[2]
	if failed.Confidence != failedConfidence || len(failed.Handles) != 0 || len(failed.SameAs) != 0 || failed.Summary != nil {
		t.Errorf("failed candidate = %+v, want isolated failure", failed)
	}

	if got.Auto == nil {
		t.Fatal("Auto = nil")
	}
	if got.Auto.URL != "https://www.linkedin.com/in/janedoe" {
		t.Errorf("Auto.URL = %q", got.Auto.URL)
	}
	if !approxEqual(got.Auto.Confidence, wantConf+2*clusterBonusStep) {
		t.Errorf("Auto.Confidence = %v, want %v", got.Auto.Confidence, wantConf+2*clusterBonusStep)
	}

	var members []string
	for _, m := range got.Cluster {
		members = append(members, m.URL)
	}
	if diff := cmp.Diff(wantURLs[:2], members); diff != "" {
		t.Errorf("cluster members mismatch (-want +got):\n%s", diff)
	}
	if got.Auto.Name != "Jane Doe" || got.Auto.Source != "fake" {
		t.Errorf("Auto name/source = %q/%q", got.Auto.Name, got.Auto.Source)
	}
	if got.Candidates[0].Confidence == got.Auto.Confidence {
		t.Error("cluster bonus leaked into the candidate list")
	}

	var ptrs []*Candidate
	for i := range got.Candidates {
		ptrs = append(ptrs, &got.Candidates[i])
	}
	clusters := Clusters(ptrs)
	if len(clusters) != 2 || len(clusters[0].Members) != 2 {
		t.Errorf("clusters = %d (first has %d members), want 2 clusters with the first holding 2", len(clusters), len(clusters[0].Members))
	}
}

func TestResolveLocationAndSignals(t *testing.T) {
	provider := &fakeProvider{hits: []search.Hit{
		{Title: "José Núñez", URL: "https://jose.example.com/", Snippet: "Living in Portland"},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://jose.example.com/": `<html><head><meta property="og:image" content="https://jose.example.com/me.jpg"></head>
<body>Weekend trail run addict, follow @josenunez and @jose_runs</body></html>`,
	}}

	got, err := New(provider, fetcher).Resolve(context.Background(), "Jose Nunez", "portland")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	c := got.Candidates[0]
	want := 0.1 + 0.55 + 0.2 + 0.15*0.5
	if !approxEqual(c.Confidence, want) {
		t.Errorf("Confidence = %v, want %v", c.Confidence, want)
	}
	if c.LocationHint != "portland" || c.Image != "https://jose.example.com/me.jpg" {
		t.Errorf("LocationHint/Image = %q/%q", c.LocationHint, c.Image)
	}
	if c.Signals.Get("hobby.running") == 0 {
		t.Errorf("Signals = %v, want hobby.running", c.Signals)
	}

	if len(provider.queries) != 4 {
		t.Errorf("issued %d queries, want 4 with a location", len(provider.queries))
	}
}

func TestResolveCapsEnrichment(t *testing.T) {
	var hits []search.Hit
	pages := map[string]string{}
	for i := range 20 {
		u := fmt.Sprintf("https://site%d.example.com/", i)
		hits = append(hits, search.Hit{Title: fmt.Sprintf("Jane %d", i), URL: u})
		pages[u] = personPage("Jane")
	}
	fetcher := &fakeFetcher{pages: pages}

	got, err := New(&fakeProvider{hits: hits}, fetcher, WithConcurrency(3)).Resolve(context.Background(), "Jane", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got.Candidates) != maxEnriched {
		t.Errorf("got %d candidates, want %d", len(got.Candidates), maxEnriched)
	}
	if n := fetcher.calls.Load(); n != maxEnriched {
		t.Errorf("fetched %d pages, want %d", n, maxEnriched)
	}
}

type slowFetcher struct{}

func (slowFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResolveFetchTimeout(t *testing.T) {
	provider := &fakeProvider{hits: []search.Hit{{Title: "Jane", URL: "https://slow.example.com/"}}}
	start := time.Now()
	got, err := New(provider, slowFetcher{}, WithFetchTimeout(20*time.Millisecond)).Resolve(context.Background(), "Jane", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("per-fetch timeout was not applied")
	}
	if got.Candidates[0].Confidence != failedConfidence {
		t.Errorf("Confidence = %v, want %v", got.Candidates[0].Confidence, failedConfidence)
	}
}

func TestQueries(t *testing.T) {
	got := Queries("Jane Doe", "")
	want := []string{
		`"Jane Doe" (site:linkedin.com/in OR site:instagram.com OR site:twitter.com OR site:x.com OR site:steamcommunity.com OR site:goodreads.com OR site:about.me OR site:github.com)`,
		"Jane Doe profile",
		"Jane Doe social",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Queries() mismatch (-want +got):\n%s", diff)
	}

	got = Queries("Jane Doe", "Portland")
	if len(got) != 4 || got[2] != "Jane Doe Portland social" || got[3] != `"Jane Doe" "Portland" profile` {
		t.Errorf("Queries() with location = %q", got)
	}
}

func TestDedupe(t *testing.T) {
	hits := []search.Hit{
		{Title: "Jane", URL: "https://www.github.com/jane"},
		{Title: "Jane", URL: "https://github.com/jane?tab=repos"},
		{Title: "Jane (other)", URL: "https://github.com/jane"},
		{Title: "No URL"},
		{Title: "Jane", URL: "https://gitlab.com/jane"},
	}
	got := Dedupe(hits)
	want := []search.Hit{hits[0], hits[2], hits[4]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dedupe() mismatch (-want +got):\n%s", diff)
	}
}

func TestNameMatch(t *testing.T) {
	tests := []struct {
		name, title string
		want        float64
	}{
		{"Jane Doe", "Jane Doe | LinkedIn", 1},
		{"Jane Doe", "jane smith", 0.5},
		{"Jane Doe", "", 0},
		{"", "Jane", 0},
		{"José Núñez", "Jose Nunez - Profile", 1},
		{"Jose Nunez", "JOSÉ NÚÑEZ", 1},
		{"Jan Kowalski", "January Kowalski", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.title, func(t *testing.T) {
			if got := nameMatch(tt.name, tt.title); !approxEqual(got, tt.want) {
				t.Errorf("nameMatch(%q, %q) = %v, want %v", tt.name, tt.title, got, tt.want)
			}
		})
	}
}

func TestConfidenceBounds(t *testing.T) {
	if got := confidence(1, 1, 100); got != maxConfidence {
		t.Errorf("confidence(max) = %v, want %v", got, maxConfidence)
	}
	if got := confidence(0, 0, 0); !approxEqual(got, 0.1) {
		t.Errorf("confidence(0) = %v, want 0.1", got)
	}
}

func TestClustersDisjointStaySeparate(t *testing.T) {
	a := &Candidate{URL: "https://a.example.com/", Handles: []string{"jane"}, SameAs: []string{"https://github.com/jane"}, Confidence: 0.5}
	b := &Candidate{URL: "https://b.example.com/", Handles: []string{"john"}, SameAs: []string{"https://github.com/john"}, Confidence: 0.6}
	if got := Clusters([]*Candidate{a, b}); len(got) != 2 {
		t.Errorf("disjoint candidates formed %d clusters, want 2", len(got))
	}
}

func TestClustersMergeBridgedGroups(t *testing.T) {
	a := &Candidate{URL: "https://a.example.com/", SameAs: []string{"x"}, Confidence: 0.5}
	b := &Candidate{URL: "https://b.example.com/", SameAs: []string{"y"}, Confidence: 0.4}
	c := &Candidate{URL: "https://c.example.com/", SameAs: []string{"x", "y"}, Confidence: 0.3}
	got := Clusters([]*Candidate{a, b, c})
	if len(got) != 1 || len(got[0].Members) != 3 || !approxEqual(got[0].Score, 1.2) {
		t.Errorf("Clusters() = %+v, want a single merged cluster", got)
	}
}

func TestClustersProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	pool := func(prefix string, n int) []string {
		var out []string
		for range r.IntN(3) {
			out = append(out, fmt.Sprintf("%s%d", prefix, r.IntN(n)))
		}
		return out
	}

	for iter := range 300 {
		var cands []*Candidate
		for i := range 1 + r.IntN(10) {
			cands = append(cands, &Candidate{
				ID:         fmt.Sprint(i),
				URL:        fmt.Sprintf("https://host%d.example.com/%d", r.IntN(6), i),
				Handles:    pool("h", 8),
				SameAs:     pool("https://s.example/", 8),
				Confidence: r.Float64(),
			})
		}

		clusters := Clusters(cands)
		where := map[*Candidate]int{}
		total := 0
		for ci, cl := range clusters {
			sum := 0.0
			for _, m := range cl.Members {
				where[m] = ci
				sum += m.Confidence
				total++
			}
			if !approxEqual(sum, cl.Score) {
				t.Fatalf("iteration %d: cluster score %v != member sum %v", iter, cl.Score, sum)
			}
			if !connected(cl.Members) {
				t.Fatalf("iteration %d: cluster members are not linked by shared evidence", iter)
			}
		}
		if total != len(cands) {
			t.Fatalf("iteration %d: %d members across clusters, want %d", iter, total, len(cands))
		}
		for _, a := range cands {
			for _, b := range cands {
				if intersects(a.SameAs, b.SameAs) && where[a] != where[b] {
					t.Fatalf("iteration %d: candidates sharing sameAs split across clusters", iter)
				}
			}
		}
	}
}

// connected reports whether members form a single component under the related relation.
func connected(members []*Candidate) bool {
	seen := map[*Candidate]bool{members[0]: true}
	queue := []*Candidate{members[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range members {
			if !seen[m] && related(cur, m) {
				seen[m] = true
				queue = append(queue, m)
			}
		}
	}
	return len(seen) == len(members)
}
