package signal

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/codeGROOVE-dev/gifted/pkg/page"
)

func TestInfer(t *testing.T) {
	inf := New()
	approx := cmpopts.EquateApprox(0, 1e-9)

	tests := []struct {
		name    string
		summary *page.Summary
		want    Vector
	}{
		{
			name:    "nil summary",
			summary: nil,
			want:    Vector{},
		},
		{
			name:    "no evidence",
			summary: &page.Summary{Title: "Jane Doe", TextSample: "hello world"},
			want:    Vector{},
		},
		{
			name:    "playstation from text",
			summary: &page.Summary{TextSample: "Weekend on my PS5 with a DualSense"},
			want:    Vector{"gaming.playstation": 0.8},
		},
		{
			name: "text rule counts once",
			summary: &page.Summary{
				Title:      "espresso",
				TextSample: "espresso espresso aeropress v60",
			},
			want: Vector{"hobby.coffee": 0.6},
		},
		{
			name: "word boundaries",
			summary: &page.Summary{
				TextSample: "switchboard operator, ultramarine paint, audios",
			},
			want: Vector{},
		},
		{
			name: "link rules count per link and saturate",
			summary: &page.Summary{
				Links: []string{"https://github.com/jane", "https://github.com/jane/dotfiles"},
			},
			want: Vector{"account.github": 1, "persona.techie": 0.7},
		},
		{
			name: "links and sameAs union",
			summary: &page.Summary{
				Links:  []string{"https://www.strava.com/athletes/1"},
				SameAs: []string{"https://www.strava.com/athletes/1", "https://www.linkedin.com/in/jane"},
			},
			want: Vector{"account.strava": 0.7, "account.linkedin": 0.6, "hobby.running": 0.7},
		},
		{
			name: "twitter and x",
			summary: &page.Summary{
				SameAs: []string{"https://x.com/jane", "https://twitter.com/jane"},
			},
			want: Vector{"account.twitter": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inf.Infer(tt.summary)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Infer() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInferPlayStationScenario(t *testing.T) {
	html := `<html><head><title>Jane's corner</title></head>
<body><p>Just finished Astro Bot on my PS5, the DualSense haptics are wild.</p></body></html>`
	v := New().Infer(page.Extract(html, "https://jane.example.com/"))
	if got := v.Get("gaming.playstation"); got < 0.6 {
		t.Errorf("gaming.playstation = %v, want >= 0.6", got)
	}
}

func TestInferIdempotent(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Runner and coffee nerd">
<script type="application/ld+json">{"@type":"Person","sameAs":["https://github.com/jane"]}</script></head>
<body>half marathon training, aeropress every morning. <a href="https://www.goodreads.com/jane">books</a></body></html>`
	inf := New()
	a := inf.Infer(page.Extract(html, "https://jane.example.com/"))
	b := inf.Infer(page.Extract(html, "https://jane.example.com/"))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Infer(Extract(html)) is not idempotent:\n%s", diff)
	}
}

var vocabulary = []string{
	"iphone", "pixel", "galaxy", "ps5", "xbox", "switch", "steam deck", "garmin", "crossfit",
	"fujifilm", "espresso", "storygraph", "bandcamp", "docker", "hello", "world", "my", "our",
	"https://github.com/x", "https://instagram.com/y", "https://x.com/z", "https://strava.com/a",
}

func randomText(r *rand.Rand, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = vocabulary[r.IntN(len(vocabulary))]
	}
	return strings.Join(words, " ")
}

func TestInferBoundsAndMonotonicity(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	inf := New()

	for range 500 {
		base := &page.Summary{
			TextSample: randomText(r, r.IntN(20)),
			Links:      []string{"https://github.com/" + randomText(r, 1)},
		}
		extra := randomText(r, 1+r.IntN(10))
		grown := &page.Summary{
			TextSample: base.TextSample + " " + extra,
			Links:      append([]string{"https://strava.com/x"}, base.Links...),
		}

		before := inf.Infer(base)
		after := inf.Infer(grown)

		for _, v := range []Vector{before, after} {
			for k, w := range v {
				if w <= 0 || w > 1 {
					t.Fatalf("signal %s = %v, outside (0, 1]", k, w)
				}
			}
		}
		for k, w := range before {
			if after.Get(k) < w {
				t.Fatalf("adding text %q lowered %s from %v to %v", extra, k, w, after.Get(k))
			}
		}
	}
}

func TestMerge(t *testing.T) {
	got := Merge(
		Vector{"hobby.running": 0.7, "account.github": 0.7},
		Vector{"hobby.running": 0.7},
		nil,
		Vector{"hobby.coffee": 0.6},
	)
	want := Vector{"hobby.running": 1, "account.github": 0.7, "hobby.coffee": 0.6}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}

	if got := Merge(); len(got) != 0 {
		t.Errorf("Merge() of nothing = %v, want empty", got)
	}
}

func TestVectorKeys(t *testing.T) {
	v := Vector{"b": 0.1, "a": 0.2, "c": 0.3}
	if diff := cmp.Diff([]string{"a", "b", "c"}, v.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRuleset(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: `version: test
text:
  - key: hobby.knitting
    pattern: knitting|yarn
    weight: 0.6
links:
  - key: account.ravelry
    pattern: ravelry\.com/
    weight: 0.7
`,
		},
		{name: "empty", yaml: "version: x\n", wantErr: true},
		{name: "bad weight", yaml: "text:\n  - {key: a, pattern: b, weight: 1.5}\n", wantErr: true},
		{name: "zero weight", yaml: "text:\n  - {key: a, pattern: b, weight: 0}\n", wantErr: true},
		{name: "bad regex", yaml: "text:\n  - {key: a, pattern: '(', weight: 0.5}\n", wantErr: true},
		{name: "missing key", yaml: "text:\n  - {pattern: b, weight: 0.5}\n", wantErr: true},
		{name: "not yaml", yaml: "text: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleset([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRuleset() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCustomRuleset(t *testing.T) {
	rs, err := ParseRuleset([]byte(`version: test
text:
  - {key: hobby.knitting, pattern: knitting|yarn, weight: 0.6}
`))
	if err != nil {
		t.Fatalf("ParseRuleset: %v", err)
	}
	inf := New(WithRuleset(rs))
	got := inf.Infer(&page.Summary{TextSample: "Knitting with my PS5 nearby"})
	want := Vector{"hobby.knitting": 0.6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Infer() mismatch (-want +got):\n%s", diff)
	}
	if inf.Ruleset().Version != "test" {
		t.Errorf("Ruleset().Version = %q", inf.Ruleset().Version)
	}
}
