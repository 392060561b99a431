package stream

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/go-stdf/stdf"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// pattern returns the content of testdata/pattern.stdf.bz2.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i*7 + i/1000) % 251)
	}

	return b
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func gzipFile(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return writeFile(t, "lot.stdf.gz", buf.Bytes())
}

type zipEntry struct {
	name   string
	data   []byte
	method uint16
}

func zipFile(t *testing.T, entries ...zipEntry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return writeFile(t, "lot.zip", buf.Bytes())
}

// checkRandomAccess verifies reads at several offsets against want.
func checkRandomAccess(t *testing.T, s Stream, want []byte) {
	t.Helper()
	require := require.New(t)

	require.Equal(int64(len(want)), s.Size())

	got, err := io.ReadAll(s)
	require.NoError(err)
	require.True(bytes.Equal(want, got))

	for _, off := range []int64{0, 1, 4095, 4096, 4097, 12345, int64(len(want)) - 10, int64(len(want)) / 2} {
		pos, err := s.Seek(off, io.SeekStart)
		require.NoError(err)
		require.Equal(off, pos)

		buf := make([]byte, 10)
		n, err := s.Read(buf)
		require.NoError(err)
		require.Equal(10, n)
		require.Equal(want[off:off+10], buf)
	}

	// a short read happens only at the end of the stream
	_, err = s.Seek(-4, io.SeekEnd)
	require.NoError(err)
	buf := make([]byte, 10)
	n, err := s.Read(buf)
	require.ErrorIs(err, io.EOF)
	require.Equal(4, n)
	require.Equal(want[len(want)-4:], buf[:n])

	n, err = s.Read(buf)
	require.ErrorIs(err, io.EOF)
	require.Zero(n)

	// relative seek
	_, err = s.Seek(100, io.SeekStart)
	require.NoError(err)
	pos, err := s.Seek(-50, io.SeekCurrent)
	require.NoError(err)
	require.Equal(int64(50), pos)

	_, err = s.Seek(-1, io.SeekStart)
	require.ErrorIs(err, ErrNegativePosition)
	_, err = s.Seek(0, 42)
	require.ErrorIs(err, ErrInvalidWhence)
}

func TestKindFromPath(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		path      string
		kind      Kind
		supported bool
	}{
		{path: "/data/lot1.stdf", kind: Plain, supported: true},
		{path: "lot1.STD", kind: Plain, supported: true},
		{path: "lot1.std.GZ", kind: Gzip, supported: true},
		{path: "lot1.stdf.bz2", kind: Bzip2, supported: true},
		{path: "lot1.zip", kind: Zip, supported: true},
		{path: "lot1.txt", kind: Plain, supported: false},
		{path: "lot1.txt.gz", kind: Gzip, supported: false},
	}

	for _, tt := range tests {
		require.Equal(tt.kind, KindFromPath(tt.path), tt.path)
		require.Equal(tt.supported, IsSupported(tt.path), tt.path)
	}

	require.Equal("bzip2", Bzip2.String())
	require.Equal("Kind(9)", Kind(9).String())
}

func TestOpen_Plain(t *testing.T) {
	require := require.New(t)

	want := pattern(50000)
	path := writeFile(t, "lot.stdf", want)

	s, err := Open(context.Background(), path)
	require.NoError(err)
	require.Equal(Plain, s.Kind())
	require.Equal(path, s.Path())
	checkRandomAccess(t, s, want)

	require.NoError(s.Close())
	require.NoError(s.Close())
	_, err = s.Read(make([]byte, 1))
	require.ErrorIs(err, ErrClosed)
	_, err = s.Seek(0, io.SeekStart)
	require.ErrorIs(err, ErrClosed)
}

func TestOpen_Gzip(t *testing.T) {
	require := require.New(t)

	want := pattern(100000)
	path := gzipFile(t, want)
	spoolDir := t.TempDir()

	var milestones []int
	s, err := Open(context.Background(), path,
		WithBlockSize(4096),
		WithParallelism(3),
		WithCacheBlocks(2),
		WithSpoolDir(spoolDir),
		WithProgress(func(p int) { milestones = append(milestones, p) }),
	)
	require.NoError(err)
	require.Equal(Gzip, s.Kind())
	checkRandomAccess(t, s, want)

	require.NotEmpty(milestones)
	require.Equal(100, milestones[len(milestones)-1])
	for i := 1; i < len(milestones); i++ {
		require.Greater(milestones[i], milestones[i-1])
		require.Zero(milestones[i] % progressStep)
	}

	entries, err := os.ReadDir(spoolDir)
	require.NoError(err)
	require.Len(entries, 1)

	require.NoError(s.Close())
	entries, err = os.ReadDir(spoolDir)
	require.NoError(err)
	require.Empty(entries)
}

func TestOpen_Bzip2(t *testing.T) {
	require := require.New(t)

	path, err := filepath.Abs(filepath.Join("testdata", "pattern.stdf.bz2"))
	require.NoError(err)

	s, err := Open(context.Background(), path, WithBlockSize(8192), WithSpoolDir(t.TempDir()))
	require.NoError(err)
	defer s.Close()

	require.Equal(Bzip2, s.Kind())
	checkRandomAccess(t, s, pattern(200000))
}

func TestOpen_Zip(t *testing.T) {
	want := pattern(30000)

	for _, method := range []uint16{zip.Store, zip.Deflate} {
		t.Run("method", func(t *testing.T) {
			require := require.New(t)

			path := zipFile(t,
				zipEntry{name: "lot.stdf", data: want, method: method},
				zipEntry{name: "other.stdf", data: []byte("ignored"), method: method},
			)
			s, err := Open(context.Background(), path, WithBlockSize(4096), WithSpoolDir(t.TempDir()))
			require.NoError(err)
			defer s.Close()

			require.Equal(Zip, s.Kind())
			checkRandomAccess(t, s, want)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing.stdf"))
	require.ErrorIs(err, stdf.ErrIO)

	_, err = Open(ctx, zipFile(t))
	require.ErrorIs(err, stdf.ErrFormat)
	require.ErrorIs(err, ErrEmptyArchive)

	_, err = Open(ctx, zipFile(t, zipEntry{name: "empty.stdf", method: zip.Deflate}, zipEntry{name: "b.stdf", data: []byte{1}}))
	require.ErrorIs(err, stdf.ErrFormat)
	require.ErrorIs(err, ErrNotAFile)

	_, err = Open(ctx, zipFile(t, zipEntry{name: "dir/"}, zipEntry{name: "dir/b.stdf", data: []byte{1}}))
	require.ErrorIs(err, ErrNotAFile)

	_, err = Open(ctx, writeFile(t, "bad.stdf.gz", []byte("not gzip at all")))
	require.ErrorIs(err, stdf.ErrFormat)

	_, err = Open(ctx, writeFile(t, "a.stdf", nil), WithBlockSize(1))
	require.Error(err)
	_, err = Open(ctx, writeFile(t, "a.stdf", nil), WithParallelism(0))
	require.Error(err)
	_, err = Open(ctx, writeFile(t, "a.stdf", nil), WithCacheBlocks(0))
	require.Error(err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Open(canceled, gzipFile(t, pattern(10000)), WithSpoolDir(t.TempDir()))
	require.ErrorIs(err, context.Canceled)
}

func TestOpen_EmptyGzip(t *testing.T) {
	require := require.New(t)

	s, err := Open(context.Background(), gzipFile(t, nil), WithSpoolDir(t.TempDir()))
	require.NoError(err)
	defer s.Close()

	require.Zero(s.Size())
	n, err := s.Read(make([]byte, 4))
	require.ErrorIs(err, io.EOF)
	require.Zero(n)
}

func TestBlockCache(t *testing.T) {
	require := require.New(t)

	c := newBlockCache(2)
	c.put(1, []byte{1})
	c.put(2, []byte{2})
	_, ok := c.get(1)
	require.True(ok)
	c.put(3, []byte{3})

	_, ok = c.get(2)
	require.False(ok)
	data, ok := c.get(1)
	require.True(ok)
	require.Equal([]byte{1}, data)
	_, ok = c.get(3)
	require.True(ok)

	c.reset()
	_, ok = c.get(3)
	require.False(ok)
}

func TestWriteBlocks_Parallel(t *testing.T) {
	require := require.New(t)

	o := defaultOptions()
	o.blockSize = 4096
	o.parallelism = 8

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(o.parallelism))
	require.NoError(err)
	defer enc.Close()
	dec, err := zstd.NewReader(nil)
	require.NoError(err)
	defer dec.Close()

	spool, err := os.CreateTemp(t.TempDir(), "spool-*")
	require.NoError(err)
	defer spool.Close()

	want := pattern(100 * 1024)
	blocks, size, err := writeBlocks(context.Background(), bytes.NewReader(want), spool, enc, o)
	require.NoError(err)
	require.Equal(int64(len(want)), size)
	require.Len(blocks, 25)

	// every frame decodes on its own to the block it indexes
	for i, b := range blocks {
		require.Equal(int64(i*o.blockSize), b.rawOff)
		frame := make([]byte, b.compLen)
		_, err := spool.ReadAt(frame, b.spoolOff)
		require.NoError(err)
		got, err := dec.DecodeAll(frame, nil)
		require.NoError(err)
		require.Equal(want[b.rawOff:b.rawOff+int64(b.rawLen)], got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = writeBlocks(ctx, bytes.NewReader(want), spool, enc, o)
	require.ErrorIs(err, context.Canceled)
}
