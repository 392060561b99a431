package stdf

import (
	"encoding/binary"
	"math"
	"sync"

	"golang.org/x/text/encoding/charmap"
)

var readerPool = sync.Pool{New: func() any { return new(fieldReader) }}

// fieldReader decodes STDF data types from a record body.
//
// Reads past the end of the body do not fail: they return zero values and set short, and
// every following read returns zero values as well. Decoders read all fields in order and use
// fields to learn how many were physically present.
type fieldReader struct {
	buf    []byte
	pos    int
	order  binary.ByteOrder
	short  bool
	fields int
}

func getFieldReader(body []byte, order Endianness) *fieldReader {
	r, _ := readerPool.Get().(*fieldReader)
	r.buf = body
	r.pos = 0
	r.order = order.ByteOrder()
	r.short = false
	r.fields = 0

	return r
}

func putFieldReader(r *fieldReader) {
	r.buf = nil
	readerPool.Put(r)
}

func (r *fieldReader) remaining() int {
	return len(r.buf) - r.pos
}

// take returns the next n bytes, or nil when the body is exhausted.
func (r *fieldReader) take(n int) []byte {
	if r.short || r.pos+n > len(r.buf) {
		r.short = true
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	r.fields++

	return b
}

func (r *fieldReader) u1() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *fieldReader) i1() int8 {
	return int8(r.u1()) //nolint:gosec
}

func (r *fieldReader) c1() byte {
	return r.u1()
}

func (r *fieldReader) u2() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return r.order.Uint16(b)
}

func (r *fieldReader) i2() int16 {
	return int16(r.u2()) //nolint:gosec
}

func (r *fieldReader) u4() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return r.order.Uint32(b)
}

func (r *fieldReader) i4() int32 {
	return int32(r.u4()) //nolint:gosec
}

func (r *fieldReader) r4() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(r.order.Uint32(b))
}

// cn reads a string with a one byte length prefix.
func (r *fieldReader) cn() string {
	if r.short || r.remaining() < 1 {
		r.short = true
		return ""
	}
	n := int(r.buf[r.pos])
	if r.pos+1+n > len(r.buf) {
		r.short = true
		return ""
	}
	r.pos++
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	r.fields++

	return decodeLatin1(b)
}

// bn reads a byte field with a one byte length prefix.
func (r *fieldReader) bn() []byte {
	if r.short || r.remaining() < 1 {
		r.short = true
		return nil
	}
	n := int(r.buf[r.pos])
	if r.pos+1+n > len(r.buf) {
		r.short = true
		return nil
	}
	r.pos++
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	r.fields++

	return b
}

// dn reads a bit field with a two byte bit count prefix.
func (r *fieldReader) dn() []byte {
	if r.short || r.remaining() < 2 {
		r.short = true
		return nil
	}
	bits := int(r.order.Uint16(r.buf[r.pos:]))
	n := (bits + 7) / 8
	if r.pos+2+n > len(r.buf) {
		r.short = true
		return nil
	}
	r.pos += 2
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	r.fields++

	return b
}

// kxU2 reads k U2 values as one field.
func (r *fieldReader) kxU2(k int) []uint16 {
	b := r.take(2 * k)
	if b == nil {
		return nil
	}
	out := make([]uint16, k)
	for i := range out {
		out[i] = r.order.Uint16(b[2*i:])
	}
	return out
}

// kxR4 reads k R4 values as one field.
func (r *fieldReader) kxR4(k int) []float32 {
	b := r.take(4 * k)
	if b == nil {
		return nil
	}
	out := make([]float32, k)
	for i := range out {
		out[i] = math.Float32frombits(r.order.Uint32(b[4*i:]))
	}
	return out
}

// kxN1 reads k nibbles packed two per byte, low nibble first.
func (r *fieldReader) kxN1(k int) []uint8 {
	b := r.take((k + 1) / 2)
	if b == nil {
		return nil
	}
	out := make([]uint8, k)
	for i := range out {
		v := b[i/2]
		if i%2 == 1 {
			v >>= 4
		}
		out[i] = v & 0x0F
	}
	return out
}

// decodeLatin1 converts an STDF character field to UTF-8. Testers write ISO-8859-1 text.
func decodeLatin1(b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				return string(b)
			}
			return string(s)
		}
	}

	return string(b)
}
