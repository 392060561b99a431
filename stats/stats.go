// Package stats computes NaN-aware summary statistics and the process capability index of
// per-DUT test values.
//
// NaN entries mark DUTs without a valid result and are ignored everywhere.
package stats

import (
	"math"
	"slices"
)

// Summary holds the statistics of one selection of test values.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Median float64
	Mean   float64
	SDev   float64
	Cpk    float64
}

// NaNSummary returns a Summary with every statistic set to NaN.
func NaNSummary() Summary {
	nan := math.NaN()
	return Summary{Min: nan, Max: nan, Median: nan, Mean: nan, SDev: nan, Cpk: nan}
}

// Summarize computes the statistics of values against the limits lo and hi.
func Summarize(lo, hi float64, values []float64) Summary {
	valid := finite(values)
	s := NaNSummary()
	s.Count = len(valid)
	if len(valid) == 0 {
		return s
	}

	slices.Sort(valid)
	s.Min = valid[0]
	s.Max = valid[len(valid)-1]
	s.Median = median(valid)
	s.Mean, s.SDev, s.Cpk = cpkOf(lo, hi, valid)

	return s
}

// Cpk returns the mean, population standard deviation and process capability index of data.
//
// Empty or all-NaN data yields NaN for all three. A NaN limit yields a NaN Cpk. Zero deviation
// yields an infinite Cpk.
func Cpk(lo, hi float64, data []float64) (mean, sdev, cpk float64) {
	valid := finite(data)
	if len(valid) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	return cpkOf(lo, hi, valid)
}

func cpkOf(lo, hi float64, valid []float64) (mean, sdev, cpk float64) {
	mean, sdev = meanStd(valid)
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return mean, sdev, math.NaN()
	}
	if sdev == 0 {
		return mean, sdev, math.Inf(1)
	}

	t := hi - lo
	u := (hi + lo) / 2
	cp := t / (6 * sdev)

	return mean, sdev, cp - math.Abs(mean-u)/(3*sdev)
}

// Mean returns the mean of the non-NaN values, NaN when there are none.
func Mean(values []float64) float64 {
	valid := finite(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	m, _ := meanStd(valid)

	return m
}

// Median returns the median of the non-NaN values, NaN when there are none.
func Median(values []float64) float64 {
	valid := finite(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	slices.Sort(valid)

	return median(valid)
}

// finite returns a copy of values without NaN entries.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}

	return out
}

// median of a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// meanStd returns the mean and population standard deviation of a non-empty slice.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / float64(len(values)))
}
