// Package seeded provides a small deterministic pseudo-random source keyed by a string.
//
// The generator is a 32-bit linear congruential generator (x = 1103515245*x + 12345 mod 2^32).
// It is not suitable for anything security related; it exists so that tie-breaking and
// shuffles are reproducible for a given subject.
package seeded

// Source is a deterministic pseudo-random source. A Source is not safe for concurrent use.
type Source struct {
	x uint32
}

// New returns a Source starting from seed.
func New(seed uint32) *Source {
	return &Source{x: seed}
}

// FromKey returns a Source seeded by a 31-multiplier hash of key.
func FromKey(key string) *Source {
	return New(Hash(key))
}

// Hash is the classic 31-multiplier string hash, computed over UTF-16 code units.
func Hash(key string) uint32 {
	var h uint32
	for _, r := range key {
		if r >= 0x10000 {
			// Surrogate pair.
			r -= 0x10000
			h = h*31 + uint32(0xD800+(r>>10))
			h = h*31 + uint32(0xDC00+(r&0x3FF))
			continue
		}
		h = h*31 + uint32(r)
	}
	return h
}

// Next advances the generator and returns the new state.
func (s *Source) Next() uint32 {
	s.x = 1103515245*s.x + 12345
	return s.x
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Next()) / (1 << 32)
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("seeded: invalid argument to Intn")
	}
	return int(s.Next() % uint32(n)) //nolint:gosec // n is positive and callers use small bounds
}

// Shuffle permutes n elements with a Fisher-Yates pass from the back, calling swap for each exchange.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, s.Intn(i+1))
	}
}
