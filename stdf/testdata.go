package stdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/arloliu/go-stdf/internal/bufpool"
	"github.com/arloliu/go-stdf/internal/util"
)

// TEST_FLG bits that mark RESULT as unusable: bit 1 "result not valid" and
// bit 4 "test not executed".
const invalidResultMask = 0b00010010

// ctxCheckInterval is the number of DUTs decoded between context checks.
const ctxCheckInterval = 256

// TestLocation tells DecodeTest where the records of one test are stored.
// Offsets and Lengths are indexed by DUT position (DUT index - 1).
type TestLocation struct {
	ID   TestID
	Kind RecordType
	// Offsets holds the stream offset of each DUT's record header, or -1 when the DUT has no
	// record for the test.
	Offsets []int64
	// Lengths holds the REC_LEN of each DUT's record. A zero entry skips the length check.
	Lengths []uint16
	// PinCount is RTN_ICNT and ResultCount is RSLT_CNT of an MPR test.
	PinCount    int
	ResultCount int
}

// NumDUTs returns the length of the DUT axis.
func (l *TestLocation) NumDUTs() int { return len(l.Offsets) }

// TestData holds the raw per-DUT results of one test, aligned to the DUT axis of its
// TestLocation. Values are not scaled.
type TestData struct {
	ID   TestID
	Kind RecordType
	// Flags holds TEST_FLG per DUT, NotTested where the DUT has no record.
	Flags []TestFlag
	// Values holds RESULT for a PTR and TEST_FLG as a number for an FTR, NaN where the DUT was
	// not tested or the result is invalid. It is nil for an MPR.
	Values []float64
	// PinValues holds RTN_RSLT of an MPR as [result index][DUT].
	PinValues [][]float64
	// PinStates holds RTN_STAT of an MPR as [pin index][DUT], -1 where absent.
	PinStates [][]int
}

// Len returns the length of the DUT axis.
func (d *TestData) Len() int { return len(d.Flags) }

func newTestData(loc *TestLocation) *TestData {
	n := loc.NumDUTs()
	d := &TestData{
		ID:    loc.ID,
		Kind:  loc.Kind,
		Flags: util.Filled(n, NotTested),
	}

	if loc.Kind == MPR {
		d.PinValues = make([][]float64, loc.ResultCount)
		for i := range d.PinValues {
			d.PinValues[i] = util.NaNs(n)
		}
		d.PinStates = make([][]int, loc.PinCount)
		for i := range d.PinStates {
			d.PinStates[i] = util.Filled(n, -1)
		}
	} else {
		d.Values = util.NaNs(n)
	}

	return d
}

// DecodeTest reads the record of every tested DUT at the offsets in loc and gathers the results.
//
// A record whose type or length differs from loc yields a *FormatError; an offset past the end of
// the stream or a truncated body yields a *ParseError. Both abort only this test. A failing read
// yields an *IOError.
func DecodeTest(ctx context.Context, rs io.ReadSeeker, loc *TestLocation, order Endianness) (*TestData, error) {
	if !loc.Kind.IsTestRecord() {
		return nil, NewFormatError("decode test "+loc.ID.String(), fmt.Errorf("%w: %s", ErrNotTestRecord, loc.Kind))
	}
	if len(loc.Lengths) > 0 && len(loc.Lengths) != len(loc.Offsets) {
		return nil, NewFormatError("decode test "+loc.ID.String(),
			fmt.Errorf("%d offsets but %d lengths", len(loc.Offsets), len(loc.Lengths)))
	}

	d := newTestData(loc)
	bp := bufpool.Get(HeaderSize + math.MaxUint16)
	defer bufpool.Put(bp)
	buf := *bp

	for i, off := range loc.Offsets {
		if off < 0 {
			continue
		}
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		h, body, err := readRecordAt(rs, off, buf, order)
		if err != nil {
			return nil, err
		}
		if h.Type() != loc.Kind {
			return nil, NewFormatError("decode test "+loc.ID.String(),
				fmt.Errorf("record at offset %d is %s, expected %s", off, h.Type(), loc.Kind))
		}
		if len(loc.Lengths) > 0 && loc.Lengths[i] != 0 && loc.Lengths[i] != h.Len {
			return nil, NewFormatError("decode test "+loc.ID.String(),
				fmt.Errorf("record at offset %d has length %d, expected %d", off, h.Len, loc.Lengths[i]))
		}

		if err := d.decodeDUT(i, body, order); err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Offset = off
			}
			return nil, err
		}
	}

	return d, nil
}

// readRecordAt reads the record at off into buf and returns its header and body.
func readRecordAt(rs io.ReadSeeker, off int64, buf []byte, order Endianness) (Header, []byte, error) {
	if _, err := rs.Seek(off, io.SeekStart); err != nil {
		return Header{}, nil, NewParseError("seek", off, err)
	}

	if _, err := io.ReadFull(rs, buf[:HeaderSize]); err != nil {
		return Header{}, nil, readErr("read header", off, err)
	}
	h, _ := DecodeHeader(buf, order)

	body := buf[HeaderSize : HeaderSize+int(h.Len)]
	if _, err := io.ReadFull(rs, body); err != nil {
		return Header{}, nil, readErr("read "+h.Type().String(), off, err)
	}

	return h, body, nil
}

func readErr(op string, off int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewParseError(op, off, fmt.Errorf("offset beyond end of stream: %w", err))
	}

	return NewIOError(op, err)
}

// decodeDUT decodes the result fields of one record body into DUT position i.
func (d *TestData) decodeDUT(i int, body []byte, order Endianness) error {
	r := getFieldReader(body, order)
	defer putFieldReader(r)

	r.u4() // TEST_NUM
	r.u1() // HEAD_NUM
	r.u1() // SITE_NUM
	flag := r.u1()
	if r.short {
		return NewParseError("decode "+d.Kind.String(), 0, ErrUnexpectedEOR)
	}
	d.Flags[i] = TestFlag(flag)

	switch d.Kind {
	case PTR:
		r.u1() // PARM_FLG
		result := r.r4()
		if !r.short && flag&invalidResultMask == 0 {
			d.Values[i] = float64(result)
		}
	case FTR:
		d.Values[i] = float64(flag)
	case MPR:
		r.u1() // PARM_FLG
		rtnIcnt := int(r.u2())
		rsltCnt := int(r.u2())
		states := r.kxN1(rtnIcnt)
		results := r.kxR4(rsltCnt)
		for p := 0; p < len(states) && p < len(d.PinStates); p++ {
			d.PinStates[p][i] = int(states[p])
		}
		if flag&invalidResultMask == 0 {
			for p := 0; p < len(results) && p < len(d.PinValues); p++ {
				d.PinValues[p][i] = float64(results[p])
			}
		}
	}

	return nil
}
