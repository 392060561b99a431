package selection

import (
	"math/bits"
	"slices"
)

// Mask is a bitset over the DUT axis.
type Mask struct {
	n     int
	words []uint64
}

// NewMask returns an empty mask over n positions.
func NewMask(n int) Mask {
	return Mask{n: n, words: make([]uint64, (n+63)/64)}
}

// Len returns the number of positions.
func (m Mask) Len() int { return m.n }

// Set selects position i. Out of range positions are ignored.
func (m Mask) Set(i int) {
	if i < 0 || i >= m.n {
		return
	}
	m.words[i/64] |= 1 << (uint(i) % 64)
}

// Test reports whether position i is selected.
func (m Mask) Test(i int) bool {
	if i < 0 || i >= m.n {
		return false
	}

	return m.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Or returns the union of m and other, which must have the same length.
func (m Mask) Or(other Mask) Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = m.words[i] | other.word(i)
	}

	return out
}

// And returns the intersection of m and other.
func (m Mask) And(other Mask) Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = m.words[i] & other.word(i)
	}

	return out
}

func (m Mask) word(i int) uint64 {
	if i < len(m.words) {
		return m.words[i]
	}

	return 0
}

// Count returns the number of selected positions.
func (m Mask) Count() int {
	c := 0
	for _, w := range m.words {
		c += bits.OnesCount64(w)
	}

	return c
}

// Indices returns the selected positions in ascending order.
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for wi, w := range m.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, wi*64+b)
			w &= w - 1
		}
	}

	return out
}

// Equal reports whether m and other select the same positions.
func (m Mask) Equal(other Mask) bool {
	return m.n == other.n && slices.Equal(m.words, other.words)
}

// Select returns the elements of s at the selected positions. s must cover the mask.
func Select[T any](m Mask, s []T) []T {
	out := make([]T, 0, m.Count())
	for _, i := range m.Indices() {
		if i < len(s) {
			out = append(out, s[i])
		}
	}

	return out
}
