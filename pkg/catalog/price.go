package catalog

import (
	"regexp"
	"strconv"
)

var pricePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// PriceRange parses hints like "$25–$40" or "$30". ok is false when no number is present.
func PriceRange(hint string) (lo, hi float64, ok bool) {
	nums := pricePattern.FindAllString(hint, -1)
	if len(nums) == 0 {
		return 0, 0, false
	}
	vals := make([]float64, 0, len(nums))
	for _, n := range nums {
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, 0, false
		}
		vals = append(vals, f)
	}
	lo, hi = vals[0], vals[len(vals)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}
