package stdf

import (
	"errors"
	"fmt"
)

// Error categories. Use errors.Is to classify an error returned by this module.
var (
	// ErrIO indicates a stream open or read failure. It is fatal to the file load it occurs in.
	ErrIO = errors.New("io error")

	// ErrFormat indicates a corrupt container or an unexpected record length or type.
	// It is localised to the test being decoded.
	ErrFormat = errors.New("format error")

	// ErrParse indicates an offset beyond the end of the stream or a truncated record body.
	// It is localised to the test being decoded.
	ErrParse = errors.New("parse error")

	// ErrLookup indicates that a test or pin could not be resolved. It is reported as a status
	// message and an empty result, never as a failure of the whole session.
	ErrLookup = errors.New("lookup error")
)

var (
	// ErrUnexpectedEOR indicates that a required field extends past the end of the record body.
	ErrUnexpectedEOR = errors.New("unexpected end of record")

	// ErrNotTestRecord indicates a record kind that cannot carry test results.
	ErrNotTestRecord = errors.New("record is not a PTR, FTR or MPR")

	// ErrNoFAR indicates a stream that does not start with a File Attributes Record.
	ErrNoFAR = errors.New("stream does not start with a FAR record")
)

// IOError is returned when reading from the underlying file fails.
type IOError struct {
	Op  string
	Err error
}

func NewIOError(op string, err error) *IOError { return &IOError{Op: op, Err: err} }

func (e *IOError) Error() string        { return fmt.Sprintf("stdf %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// FormatError is returned for a corrupt archive or a record whose length or type does not
// match what the index announced.
type FormatError struct {
	Op  string
	Err error
}

func NewFormatError(op string, err error) *FormatError { return &FormatError{Op: op, Err: err} }

func (e *FormatError) Error() string        { return fmt.Sprintf("stdf %s: %v", e.Op, e.Err) }
func (e *FormatError) Unwrap() error        { return e.Err }
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ParseError is returned for offsets beyond EOF and malformed record bodies.
type ParseError struct {
	Op     string
	Offset int64
	Err    error
}

func NewParseError(op string, offset int64, err error) *ParseError {
	return &ParseError{Op: op, Offset: offset, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stdf %s at offset %d: %v", e.Op, e.Offset, e.Err)
}
func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// LookupError is returned when a test id or pin cannot be resolved.
type LookupError struct {
	What string
	Err  error
}

func NewLookupError(what string, err error) *LookupError { return &LookupError{What: what, Err: err} }

func (e *LookupError) Error() string {
	if e.Err == nil {
		return "stdf lookup: " + e.What
	}
	return fmt.Sprintf("stdf lookup: %s: %v", e.What, e.Err)
}
func (e *LookupError) Unwrap() error        { return e.Err }
func (e *LookupError) Is(target error) bool { return target == ErrLookup }
