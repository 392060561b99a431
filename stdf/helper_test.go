package stdf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func errorsIs(err, target error) bool { return errors.Is(err, target) }

// fileBuilder writes a synthetic STDF file and remembers record offsets.
type fileBuilder struct {
	t    *testing.T
	buf  bytes.Buffer
	w    *Writer
	offs []int64
	lens []uint16
}

func newFileBuilder(t *testing.T, order Endianness) *fileBuilder {
	t.Helper()
	b := &fileBuilder{t: t}
	b.w = NewWriter(&b.buf, order)
	require.NoError(t, b.w.WriteFAR())

	return b
}

func (b *fileBuilder) add(rec Record) int64 {
	b.t.Helper()
	off, n, err := b.w.Write(rec)
	require.NoError(b.t, err)
	b.offs = append(b.offs, off)
	b.lens = append(b.lens, n)

	return off
}

func (b *fileBuilder) reader() *bytes.Reader {
	return bytes.NewReader(b.buf.Bytes())
}

// encodeRecord encodes rec and splits it back into header and body.
func encodeRecord(t *testing.T, rec Record, order Endianness) (Header, []byte) {
	t.Helper()
	var buf bytes.Buffer
	_, _, err := NewWriter(&buf, order).Write(rec)
	require.NoError(t, err)

	h, err := DecodeHeader(buf.Bytes(), order)
	require.NoError(t, err)
	require.Equal(t, int(h.Len), buf.Len()-HeaderSize)

	return h, buf.Bytes()[HeaderSize:]
}
