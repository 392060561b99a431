package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arloliu/go-stdf/stdf"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Kind is the container format of an STDF file.
type Kind int

const (
	Plain Kind = iota
	Gzip
	Bzip2
	Zip
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zip:
		return "zip"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindFromPath determines the container format from the file suffix.
func KindFromPath(path string) Kind {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	case strings.HasSuffix(lower, ".bz2"):
		return Bzip2
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	}

	return Plain
}

// IsSupported reports whether path carries one of the accepted STDF suffixes:
// .std or .stdf, optionally followed by .gz, .bz2 or .zip.
func IsSupported(path string) bool {
	lower := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".gz", ".bz2", ".zip"} {
		if strings.HasSuffix(lower, suffix) {
			lower = strings.TrimSuffix(lower, suffix)
			// an archive may hold any file name
			if suffix == ".zip" {
				return true
			}
			break
		}
	}

	return strings.HasSuffix(lower, ".std") || strings.HasSuffix(lower, ".stdf")
}

// Stream is a random access byte stream over the decompressed content of an STDF file.
//
// Read returns fewer bytes than requested only at the end of the stream.
type Stream interface {
	io.ReadSeekCloser
	// Kind returns the container format.
	Kind() Kind
	// Path returns the file path the stream was opened from.
	Path() string
	// Size returns the decompressed size in bytes.
	Size() int64
}

// Open opens path and prepares it for random access.
//
// Compressed files are fully indexed before Open returns; ctx cancels the indexing.
// Open failures are reported as *stdf.IOError; a corrupt gzip header or a zip archive without
// a usable first entry is reported as *stdf.FormatError.
func Open(ctx context.Context, path string, opts ...Option) (Stream, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	kind := KindFromPath(path)
	switch kind {
	case Gzip:
		return openGzip(ctx, path, o)
	case Bzip2:
		return openBzip2(ctx, path, o)
	case Zip:
		return openZip(ctx, path, o)
	default:
		return openPlain(path)
	}
}

func openPlain(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stdf.NewIOError("open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, stdf.NewIOError("stat", err)
	}

	return newSectionStream(Plain, path, io.NewSectionReader(f, 0, fi.Size()), f), nil
}

func openGzip(ctx context.Context, path string, o *options) (Stream, error) {
	f, fileSize, err := openWithSize(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counter := newProgressReader(f, fileSize, o.progress)
	zr, err := gzip.NewReader(counter)
	if err != nil {
		return nil, stdf.NewFormatError("gzip", err)
	}
	defer zr.Close()

	return buildSpool(ctx, Gzip, path, zr, counter, o)
}

func openZip(ctx context.Context, path string, o *options) (Stream, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, stdf.NewIOError("zip", err)
	}
	if len(zr.File) == 0 {
		_ = zr.Close()
		return nil, stdf.NewFormatError("zip", ErrEmptyArchive)
	}

	// only the first entry is used, the rest of the archive is ignored
	entry := zr.File[0]
	if entry.FileInfo().IsDir() || entry.UncompressedSize64 == 0 {
		_ = zr.Close()
		return nil, stdf.NewFormatError("zip", fmt.Errorf("%w: %s", ErrNotAFile, entry.Name))
	}

	if entry.Method == zip.Store {
		s, err := openStoredEntry(path, entry)
		_ = zr.Close()

		return s, err
	}
	defer zr.Close()

	rc, err := entry.Open()
	if err != nil {
		return nil, stdf.NewIOError("zip entry", err)
	}
	defer rc.Close()

	counter := newProgressReader(rc, int64(entry.UncompressedSize64), o.progress) //nolint:gosec
	return buildSpool(ctx, Zip, path, counter, counter, o)
}

// openStoredEntry reads an uncompressed zip entry in place.
func openStoredEntry(path string, entry *zip.File) (Stream, error) {
	offset, err := entry.DataOffset()
	if err != nil {
		return nil, stdf.NewIOError("zip entry", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, stdf.NewIOError("open", err)
	}
	size := int64(entry.UncompressedSize64) //nolint:gosec

	return newSectionStream(Zip, path, io.NewSectionReader(f, offset, size), f), nil
}

func openWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, stdf.NewIOError("open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, stdf.NewIOError("stat", err)
	}

	return f, fi.Size(), nil
}
