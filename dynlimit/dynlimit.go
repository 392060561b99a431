// Package dynlimit provides per-DUT limit lines for tests whose limits change from DUT to DUT.
package dynlimit

import (
	"math"

	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/limit"
	"github.com/arloliu/go-stdf/stdf"
)

// OverrideSource supplies the raw per-DUT limits of a test.
type OverrideSource interface {
	Overrides(id stdf.TestID) (index.Overrides, bool)
}

// Engine resolves dynamic limits against an OverrideSource.
type Engine struct {
	src OverrideSource
}

// New returns an Engine reading overrides from src.
func New(src OverrideSource) *Engine {
	return &Engine{src: src}
}

// Limits returns the low and high limit of every DUT in duts.
//
// A DUT without an override gets the static limit. staticLo and staticHi are already scaled;
// overrides are raw and get multiplied by 10^scale. hasLow and hasHigh are false, with nil
// slices, when the test has no override for that side.
func (e *Engine) Limits(id stdf.TestID, duts []int, staticLo, staticHi float64, scale int8) (hasLow bool, lo []float64, hasHigh bool, hi []float64) {
	ov, ok := e.src.Overrides(id)
	if !ok {
		return false, nil, false, nil
	}

	factor := limit.Factor(scale)
	if len(ov.Lo) > 0 {
		hasLow, lo = true, align(duts, ov.Lo, staticLo, factor)
	}
	if len(ov.Hi) > 0 {
		hasHigh, hi = true, align(duts, ov.Hi, staticHi, factor)
	}

	return hasLow, lo, hasHigh, hi
}

func align(duts []int, overrides map[int]float64, static, factor float64) []float64 {
	out := make([]float64, len(duts))
	for i, dut := range duts {
		if v, ok := overrides[dut]; ok {
			out[i] = v * factor
		} else {
			out[i] = static
		}
	}

	return out
}

// Envelope returns the widest range covered by the static and dynamic limits.
// NaN static limits are ignored; the result is NaN when no limit exists on a side.
func Envelope(staticLo, staticHi float64, lo, hi []float64) (minLo, maxHi float64) {
	minLo, maxHi = staticLo, staticHi
	for _, v := range lo {
		if math.IsNaN(minLo) || v < minLo {
			minLo = v
		}
	}
	for _, v := range hi {
		if math.IsNaN(maxHi) || v > maxHi {
			maxHi = v
		}
	}

	return minLo, maxHi
}
