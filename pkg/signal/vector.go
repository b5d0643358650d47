package signal

import (
	"maps"
	"slices"
)

// Vector maps dotted signal keys (for example "gaming.playstation") to a confidence in (0, 1].
// A missing key means there is no evidence for it.
type Vector map[string]float64

// Get returns the confidence for key, or 0 when absent.
func (v Vector) Get(key string) float64 {
	return v[key]
}

// Add accumulates weight into key, saturating at 1.
func (v Vector) Add(key string, weight float64) {
	v[key] = clamp(v[key] + weight)
}

// Keys returns the keys of v in sorted order.
func (v Vector) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	maps.Copy(out, v)
	return out
}

// Merge accumulates several vectors into one using the same saturating addition as Infer.
func Merge(vectors ...Vector) Vector {
	out := Vector{}
	for _, v := range vectors {
		for k, w := range v {
			out.Add(k, w)
		}
	}
	out.prune()
	return out
}

func (v Vector) prune() {
	for k, w := range v {
		if w <= 0 {
			delete(v, k)
		}
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
