package util

import "math"

// Filled returns a slice of length n with every element set to v.
func Filled[T any](n int, v T) []T {
	s := make([]T, n)
	for i := range s {
		s[i] = v
	}

	return s
}

// NaNs returns a float64 slice of length n filled with NaN.
func NaNs(n int) []float64 {
	return Filled(n, math.NaN())
}
