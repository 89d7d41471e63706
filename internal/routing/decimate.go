package routing

import "math"

// DefaultMatchingCap is the largest trace the map matcher accepts.
const DefaultMatchingCap = 100

// Decimate reduces points to at most k evenly spaced entries. The first and
// last points are always kept. When len(points) <= k a copy is returned.
func Decimate[T any](points []T, k int) []T {
	n := len(points)
	if n <= k {
		return append([]T(nil), points...)
	}
	if k < 2 {
		k = 2
	}

	step := float64(n-1) / float64(k-1)
	out := make([]T, k)
	for i := 0; i < k; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx > n-1 {
			idx = n - 1
		}
		out[i] = points[idx]
	}
	return out
}
