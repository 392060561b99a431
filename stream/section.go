package stream

import (
	"io"
)

// sectionStream reads a contiguous uncompressed region of a file in place.
type sectionStream struct {
	kind   Kind
	path   string
	r      *io.SectionReader
	closer io.Closer
	closed bool
}

var _ Stream = (*sectionStream)(nil)

func newSectionStream(kind Kind, path string, r *io.SectionReader, closer io.Closer) *sectionStream {
	return &sectionStream{kind: kind, path: path, r: r, closer: closer}
}

func (s *sectionStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := io.ReadFull(s.r, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return n, err
}

func (s *sectionStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if whence != io.SeekStart && whence != io.SeekCurrent && whence != io.SeekEnd {
		return 0, ErrInvalidWhence
	}

	pos, err := s.r.Seek(offset, whence)
	if err != nil {
		return 0, ErrNegativePosition
	}

	return pos, nil
}

func (s *sectionStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	return s.closer.Close()
}

func (s *sectionStream) Kind() Kind   { return s.kind }
func (s *sectionStream) Path() string { return s.path }
func (s *sectionStream) Size() int64  { return s.r.Size() }
