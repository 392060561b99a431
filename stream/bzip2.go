package stream

import (
	"compress/bzip2"
	"context"
)

// openBzip2 indexes a bzip2 file. Decompression is sequential; the
// spool compression of the decoded blocks runs in parallel.
func openBzip2(ctx context.Context, path string, o *options) (Stream, error) {
	f, fileSize, err := openWithSize(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counter := newProgressReader(f, fileSize, o.progress)

	return buildSpool(ctx, Bzip2, path, bzip2.NewReader(counter), counter, o)
}
