package stdf

import (
	"math"

	"golang.org/x/text/encoding/charmap"
)

// fieldWriter encodes STDF data types into a record body.
//
// When limit is positive only the first limit fields are written, which produces records with
// omitted trailing optional fields.
type fieldWriter struct {
	buf   []byte
	order Order
	limit int
	n     int
}

func newFieldWriter(order Endianness, limit int) *fieldWriter {
	return &fieldWriter{buf: make([]byte, 0, 64), order: order.ByteOrder(), limit: limit}
}

func (w *fieldWriter) next() bool {
	if w.limit > 0 && w.n >= w.limit {
		return false
	}
	w.n++
	return true
}

func (w *fieldWriter) u1(v uint8) {
	if w.next() {
		w.buf = append(w.buf, v)
	}
}

func (w *fieldWriter) i1(v int8) { w.u1(uint8(v)) } //nolint:gosec

func (w *fieldWriter) u2(v uint16) {
	if w.next() {
		w.buf = w.order.AppendUint16(w.buf, v)
	}
}

func (w *fieldWriter) i2(v int16) { w.u2(uint16(v)) } //nolint:gosec

func (w *fieldWriter) u4(v uint32) {
	if w.next() {
		w.buf = w.order.AppendUint32(w.buf, v)
	}
}

func (w *fieldWriter) i4(v int32) { w.u4(uint32(v)) } //nolint:gosec

func (w *fieldWriter) r4(v float32) {
	if w.next() {
		w.buf = w.order.AppendUint32(w.buf, math.Float32bits(v))
	}
}

func (w *fieldWriter) cn(s string) {
	if !w.next() {
		return
	}
	b := encodeLatin1(s)
	if len(b) > 255 {
		b = b[:255]
	}
	w.buf = append(w.buf, byte(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) bn(b []byte) {
	if !w.next() {
		return
	}
	if len(b) > 255 {
		b = b[:255]
	}
	w.buf = append(w.buf, byte(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) dn(b []byte) {
	if !w.next() {
		return
	}
	w.buf = w.order.AppendUint16(w.buf, uint16(len(b)*8)) //nolint:gosec
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) kxU2(vs []uint16) {
	if !w.next() {
		return
	}
	for _, v := range vs {
		w.buf = w.order.AppendUint16(w.buf, v)
	}
}

func (w *fieldWriter) kxR4(vs []float32) {
	if !w.next() {
		return
	}
	for _, v := range vs {
		w.buf = w.order.AppendUint32(w.buf, math.Float32bits(v))
	}
}

func (w *fieldWriter) kxN1(vs []uint8) {
	if !w.next() {
		return
	}
	for i := 0; i < len(vs); i += 2 {
		b := vs[i] & 0x0F
		if i+1 < len(vs) {
			b |= (vs[i+1] & 0x0F) << 4
		}
		w.buf = append(w.buf, b)
	}
}

func encodeLatin1(s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			b, err := charmap.ISO8859_1.NewEncoder().String(s)
			if err != nil {
				return []byte(s)
			}
			return []byte(b)
		}
	}

	return []byte(s)
}
