package stdf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const scannerBufSize = 256 * 1024

// Scanner reads records sequentially from a stream.
//
// The first record must be a FAR. With AutoEndian the byte order is detected from it: the FAR body
// is two bytes long, so REC_LEN reads as 2 in exactly one order, and a known CPU_TYPE then
// decides the order of everything that follows.
//
//	sc := stdf.NewScanner(r, stdf.AutoEndian)
//	for sc.Next() {
//		h, body := sc.Header(), sc.Body()
//		...
//	}
//	if err := sc.Err(); err != nil {
//		...
//	}
type Scanner struct {
	r      *bufio.Reader
	order  Endianness
	auto   bool
	header Header
	body   []byte
	offset int64
	next   int64
	count  int
	err    error
}

// NewScanner creates a Scanner reading from r, which must be positioned at the start of the file.
func NewScanner(r io.Reader, order Endianness) *Scanner {
	return &Scanner{
		r:     bufio.NewReaderSize(r, scannerBufSize),
		order: order,
		auto:  order == AutoEndian,
	}
}

// Next advances to the next record. It returns false at the end of the stream or on error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}

	var hdr [HeaderSize]byte
	n, err := io.ReadFull(s.r, hdr[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if s.count == 0 {
			s.err = NewFormatError("scan", ErrNoFAR)
		}
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.err = NewParseError("scan header", s.next, fmt.Errorf("%w: %d trailing bytes", ErrUnexpectedEOR, n))
		return false
	default:
		s.err = NewIOError("scan", err)
		return false
	}

	if s.count == 0 {
		if err := s.checkFAR(hdr[:]); err != nil {
			s.err = err
			return false
		}
	}

	h, _ := DecodeHeader(hdr[:], s.order)
	if cap(s.body) < int(h.Len) {
		s.body = make([]byte, h.Len)
	}
	s.body = s.body[:h.Len]
	if _, err := io.ReadFull(s.r, s.body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = NewParseError("scan "+h.Type().String(), s.next, ErrUnexpectedEOR)
		} else {
			s.err = NewIOError("scan", err)
		}
		return false
	}

	if s.count == 0 && s.auto && len(s.body) > 0 {
		if detected := EndiannessFromCPUType(s.body[0]); detected != AutoEndian {
			s.order = detected
		}
	}

	s.header = h
	s.offset = s.next
	s.next += HeaderSize + int64(h.Len)
	s.count++

	return true
}

// checkFAR validates the FAR header and resolves AutoEndian from its REC_LEN.
func (s *Scanner) checkFAR(hdr []byte) error {
	if NewRecordType(hdr[2], hdr[3]) != FAR {
		return NewFormatError("scan", ErrNoFAR)
	}
	if s.order != AutoEndian {
		return nil
	}

	switch {
	case LittleEndian.ByteOrder().Uint16(hdr) == 2:
		s.order = LittleEndian
	case BigEndian.ByteOrder().Uint16(hdr) == 2:
		s.order = BigEndian
	default:
		return NewFormatError("scan", fmt.Errorf("cannot detect byte order: FAR length bytes % x", hdr[:2]))
	}

	return nil
}

// Header returns the header of the current record.
func (s *Scanner) Header() Header { return s.header }

// Body returns the body of the current record. It is only valid until the next call to Next.
func (s *Scanner) Body() []byte { return s.body }

// Offset returns the stream offset of the current record's header.
func (s *Scanner) Offset() int64 { return s.offset }

// Order returns the byte order in use. It is resolved once the FAR has been read.
func (s *Scanner) Order() Endianness { return s.order }

// Count returns the number of records read so far.
func (s *Scanner) Count() int { return s.count }

// Err returns the first error encountered, or nil at a clean end of stream.
func (s *Scanner) Err() error { return s.err }

// Record decodes the current record.
func (s *Scanner) Record() (Record, error) {
	rec, err := DecodeRecord(s.header, s.body, s.order)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Offset = s.offset
	}

	return rec, err
}
