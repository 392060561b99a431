package stream

import "errors"

var (
	// ErrEmptyArchive indicates that a zip archive contains no entries.
	ErrEmptyArchive = errors.New("empty zip file")

	// ErrNotAFile indicates that the first zip entry is a directory or has zero length.
	ErrNotAFile = errors.New("first item in the zip is not a file")

	// ErrClosed indicates an operation on a closed stream.
	ErrClosed = errors.New("stream closed")

	// ErrInvalidWhence indicates an unsupported whence argument to Seek.
	ErrInvalidWhence = errors.New("invalid whence")

	// ErrNegativePosition indicates a seek before the start of the stream.
	ErrNegativePosition = errors.New("negative position")
)
