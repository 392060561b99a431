// Package limit resolves test limits, spec limits, scale and unit of a test from its raw record
// fields and OPT_FLAG.
//
// Absent or disabled fields resolve to NaN, never zero, so comparisons against them are always
// false and callers can test for absence with math.IsNaN.
package limit

import (
	"math"

	"github.com/arloliu/go-stdf/stdf"
)

// OPT_FLAG masks. A set bit disables the corresponding field.
const (
	// ScaleInvalid marks RES_SCAL as invalid; the scale resolves to 0.
	ScaleInvalid = 0b00000001
	// LoSpecInvalid marks LO_SPEC as absent.
	LoSpecInvalid = 0b00000100
	// HiSpecInvalid marks HI_SPEC as absent.
	HiSpecInvalid = 0b00001000
	// NoLoLimit covers "no low limit" (bit 6) and "LO_LIMIT invalid" (bit 4).
	NoLoLimit = 0b01010000
	// NoHiLimit covers "no high limit" (bit 7) and "HI_LIMIT invalid" (bit 5).
	NoHiLimit = 0b10100000
)

// Raw holds limit fields as found in a test's default record.
// A NaN limit means the field was not present in the record.
type Raw struct {
	Scale    int8
	HasScale bool
	Lo       float64
	Hi       float64
	LoSpec   float64
	HiSpec   float64
	Unit     string
}

// NewRaw returns a Raw with every limit absent.
func NewRaw() Raw {
	return Raw{Lo: math.NaN(), Hi: math.NaN(), LoSpec: math.NaN(), HiSpec: math.NaN()}
}

// Limits are the resolved, scaled limits of a test.
type Limits struct {
	Lo     float64
	Hi     float64
	LoSpec float64
	HiSpec float64
	// Unit is the record unit with the SI prefix of Scale prepended.
	Unit  string
	Scale int8
}

// HasLo reports whether a low limit is set.
func (l Limits) HasLo() bool { return !math.IsNaN(l.Lo) }

// HasHi reports whether a high limit is set.
func (l Limits) HasHi() bool { return !math.IsNaN(l.Hi) }

// Resolve applies optFlag to raw and scales the limits.
//
// FTR records carry no limits: every limit is NaN, the scale is 0 and the unit is empty.
func Resolve(kind stdf.RecordType, raw Raw, optFlag uint8) Limits {
	if kind == stdf.FTR {
		return Limits{Lo: math.NaN(), Hi: math.NaN(), LoSpec: math.NaN(), HiSpec: math.NaN()}
	}

	var scale int8
	if raw.HasScale && optFlag&ScaleInvalid == 0 {
		scale = raw.Scale
	}

	l := Limits{
		Lo:     pick(raw.Lo, optFlag, NoLoLimit),
		Hi:     pick(raw.Hi, optFlag, NoHiLimit),
		LoSpec: pick(raw.LoSpec, optFlag, LoSpecInvalid),
		HiSpec: pick(raw.HiSpec, optFlag, HiSpecInvalid),
		Unit:   UnitPrefix(scale) + raw.Unit,
		Scale:  scale,
	}
	factor := Factor(scale)
	l.Lo *= factor
	l.Hi *= factor
	l.LoSpec *= factor
	l.HiSpec *= factor

	return l
}

func pick(v float64, optFlag uint8, mask uint8) float64 {
	if optFlag&mask != 0 {
		return math.NaN()
	}

	return v
}

var unitPrefixes = map[int8]string{
	15:  "f",
	12:  "p",
	9:   "n",
	6:   "u",
	3:   "m",
	2:   "%",
	0:   "",
	-3:  "K",
	-6:  "M",
	-9:  "G",
	-12: "T",
}

// UnitPrefix returns the SI prefix selected by a scale exponent, or "" for an unlisted exponent.
//
// STDF scale exponents multiply the recorded value: a current in amps with RES_SCAL 3 is
// displayed in milliamps, so 3 selects "m".
func UnitPrefix(scale int8) string {
	return unitPrefixes[scale]
}

// Factor returns 10^scale.
func Factor(scale int8) float64 {
	return math.Pow10(int(scale))
}

// Scale multiplies values by 10^scale in place and returns them.
func Scale(values []float64, scale int8) []float64 {
	if scale == 0 {
		return values
	}

	factor := Factor(scale)
	for i := range values {
		values[i] *= factor
	}

	return values
}
