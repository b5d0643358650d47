package identity

import (
	"slices"

	"github.com/codeGROOVE-dev/gifted/pkg/htmlutil"
)

// Cluster is a group of candidates believed to be the same person.
type Cluster struct {
	Members []*Candidate `json:"members"`
	Score   float64      `json:"score"`
}

// related reports whether two candidates share a handle, a sameAs URL or a hostname.
func related(a, b *Candidate) bool {
	if htmlutil.Hostname(a.URL) == htmlutil.Hostname(b.URL) {
		return true
	}
	return intersects(a.Handles, b.Handles) || intersects(a.SameAs, b.SameAs)
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// Clusters groups candidates greedily in input order. A candidate joins the first cluster with a
// related member; when it relates to several clusters they are merged into the earliest one.
func Clusters(cands []*Candidate) []Cluster {
	var clusters []Cluster
	for _, c := range cands {
		var hits []int
		for i := range clusters {
			if slices.ContainsFunc(clusters[i].Members, func(m *Candidate) bool { return related(m, c) }) {
				hits = append(hits, i)
			}
		}

		if len(hits) == 0 {
			clusters = append(clusters, Cluster{Members: []*Candidate{c}, Score: c.Confidence})
			continue
		}

		first := &clusters[hits[0]]
		for _, i := range hits[1:] {
			first.Members = append(first.Members, clusters[i].Members...)
			first.Score += clusters[i].Score
		}
		first.Members = append(first.Members, c)
		first.Score += c.Confidence

		// Drop merged clusters, back to front so indexes stay valid.
		for j := len(hits) - 1; j >= 1; j-- {
			clusters = slices.Delete(clusters, hits[j], hits[j]+1)
		}
	}
	return clusters
}

// best returns the highest-scoring cluster, preferring the earliest on ties.
func best(clusters []Cluster) *Cluster {
	var b *Cluster
	for i := range clusters {
		if b == nil || clusters[i].Score > b.Score {
			b = &clusters[i]
		}
	}
	return b
}

// top returns the most confident member, preferring the earliest on ties.
func (c *Cluster) top() *Candidate {
	var t *Candidate
	for _, m := range c.Members {
		if t == nil || m.Confidence > t.Confidence {
			t = m
		}
	}
	return t
}
