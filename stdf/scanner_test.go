package stdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanner_Sequence(t *testing.T) {
	for _, order := range []Endianness{LittleEndian, BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			require := require.New(t)

			b := newFileBuilder(t, order)
			b.add(&PIRRecord{Head: 1, Site: 2})
			b.add(&PTRRecord{TestNum: 10, Head: 1, Site: 2, Result: 0.5, TestTxt: "A"})
			b.add(&PRRRecord{Head: 1, Site: 2, HardBin: 1, SoftBin: 1})

			sc := NewScanner(b.reader(), AutoEndian)
			var (
				types   []RecordType
				offsets []int64
			)
			for sc.Next() {
				types = append(types, sc.Header().Type())
				offsets = append(offsets, sc.Offset())
			}
			require.NoError(sc.Err())
			require.Equal(order, sc.Order())
			require.Equal(4, sc.Count())
			require.Equal([]RecordType{FAR, PIR, PTR, PRR}, types)
			require.Equal(append([]int64{0}, b.offs...), offsets)
		})
	}
}

func TestScanner_Record(t *testing.T) {
	require := require.New(t)

	b := newFileBuilder(t, BigEndian)
	b.add(&PTRRecord{TestNum: 10, Head: 1, Site: 2, Result: 0.5, TestTxt: "A"})

	sc := NewScanner(b.reader(), BigEndian)
	require.True(sc.Next())
	rec, err := sc.Record()
	require.NoError(err)
	require.Equal(&FARRecord{CPUType: 1, STDFVer: 4}, rec)

	require.True(sc.Next())
	rec, err = sc.Record()
	require.NoError(err)
	ptr, ok := rec.(*PTRRecord)
	require.True(ok)
	require.InDelta(0.5, ptr.Result, 0)
	require.False(sc.Next())
	require.NoError(sc.Err())
}

func TestScanner_ByteOrderProbe(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		desc     string
		input    []byte
		expected Endianness
		isErr    bool
	}{
		{desc: "little endian x86", input: []byte{2, 0, 0, 10, 2, 4}, expected: LittleEndian},
		{desc: "big endian sun", input: []byte{0, 2, 0, 10, 1, 4}, expected: BigEndian},
		{desc: "little endian DEC", input: []byte{2, 0, 0, 10, 0, 4}, expected: LittleEndian},
		{desc: "unknown cpu keeps detected order", input: []byte{0, 2, 0, 10, 9, 4}, expected: BigEndian},
		{desc: "bad FAR length", input: []byte{3, 0, 0, 10, 2, 4, 0}, isErr: true},
		{desc: "not a FAR", input: []byte{2, 0, 5, 10, 1, 1}, isErr: true},
	}

	for _, tt := range tests {
		sc := NewScanner(bytes.NewReader(tt.input), AutoEndian)
		if tt.isErr {
			require.False(sc.Next(), tt.desc)
			require.ErrorIs(sc.Err(), ErrFormat, tt.desc)
			continue
		}
		require.True(sc.Next(), tt.desc)
		require.Equal(tt.expected, sc.Order(), tt.desc)
		require.False(sc.Next(), tt.desc)
		require.NoError(sc.Err(), tt.desc)
	}
}

func TestScanner_Errors(t *testing.T) {
	require := require.New(t)

	sc := NewScanner(bytes.NewReader(nil), AutoEndian)
	require.False(sc.Next())
	require.ErrorIs(sc.Err(), ErrNoFAR)

	b := newFileBuilder(t, LittleEndian)
	b.add(&PTRRecord{TestNum: 10, Head: 1, Site: 2, Result: 0.5, TestTxt: "ABC"})
	data := b.buf.Bytes()

	// truncated body
	sc = NewScanner(bytes.NewReader(data[:len(data)-2]), AutoEndian)
	require.True(sc.Next())
	require.False(sc.Next())
	require.ErrorIs(sc.Err(), ErrParse)
	require.ErrorIs(sc.Err(), ErrUnexpectedEOR)

	// truncated header
	sc = NewScanner(bytes.NewReader(data[:8]), AutoEndian)
	require.True(sc.Next())
	require.False(sc.Next())
	require.ErrorIs(sc.Err(), ErrParse)
}
