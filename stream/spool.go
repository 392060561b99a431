package stream

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/arloliu/go-stdf/stdf"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// blockEntry locates one decompressed block inside the spool file.
type blockEntry struct {
	rawOff   int64 // offset of the block in the decompressed stream
	rawLen   int   // decompressed length
	spoolOff int64 // offset of the zstd frame in the spool file
	compLen  int   // zstd frame length
}

// spoolStream serves random access reads from a zstd block spool.
type spoolStream struct {
	kind   Kind
	path   string
	spool  *os.File
	blocks []blockEntry
	size   int64
	pos    int64
	closed bool

	dec   *zstd.Decoder
	cache *blockCache
}

var _ Stream = (*spoolStream)(nil)

// buildSpool drains src into a new spool. counter reports the progress of the underlying
// compressed source and is finalised when the spool is complete.
func buildSpool(ctx context.Context, kind Kind, path string, src io.Reader, counter *progressReader, o *options) (Stream, error) {
	spool, err := os.CreateTemp(o.spoolDir, "go-stdf-spool-*")
	if err != nil {
		return nil, stdf.NewIOError("spool", err)
	}
	// the spool file is unreachable by name once the stream exists
	cleanup := func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(o.parallelism))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	blocks, size, err := writeBlocks(ctx, src, spool, enc, o)
	if err != nil {
		cleanup()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	counter.report(true)

	return &spoolStream{
		kind:   kind,
		path:   path,
		spool:  spool,
		blocks: blocks,
		size:   size,
		dec:    dec,
		cache:  newBlockCache(o.cacheBlocks),
	}, nil
}

// writeBlocks reads src in batches of o.parallelism blocks, compresses each batch concurrently,
// and appends the frames to spool in stream order.
func writeBlocks(ctx context.Context, src io.Reader, spool *os.File, enc *zstd.Encoder, o *options) ([]blockEntry, int64, error) {
	var (
		blocks   []blockEntry
		rawOff   int64
		spoolOff int64
		eof      bool
	)

	raw := make([][]byte, o.parallelism)
	for i := range raw {
		raw[i] = make([]byte, o.blockSize)
	}
	frames := make([][]byte, o.parallelism)

	for !eof {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		// fill the batch sequentially, the decompressor is not concurrent
		batch := 0
		lengths := make([]int, o.parallelism)
		for batch < o.parallelism {
			n, err := io.ReadFull(src, raw[batch])
			if n > 0 {
				lengths[batch] = n
				batch++
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				eof = true
				break
			}
			if err != nil {
				return nil, 0, stdf.NewIOError("decompress", err)
			}
		}

		// EncodeAll runs up to o.parallelism frames at once, one per encoder of enc
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < batch; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				frames[i] = enc.EncodeAll(raw[i][:lengths[i]], frames[i][:0])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}

		for i := 0; i < batch; i++ {
			if _, err := spool.Write(frames[i]); err != nil {
				return nil, 0, stdf.NewIOError("spool", err)
			}
			blocks = append(blocks, blockEntry{
				rawOff:   rawOff,
				rawLen:   lengths[i],
				spoolOff: spoolOff,
				compLen:  len(frames[i]),
			})
			rawOff += int64(lengths[i])
			spoolOff += int64(len(frames[i]))
		}
	}

	return blocks, rawOff, nil
}

func (s *spoolStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && s.pos < s.size {
		idx := s.blockAt(s.pos)
		data, err := s.block(idx)
		if err != nil {
			return n, err
		}
		start := int(s.pos - s.blocks[idx].rawOff)
		copied := copy(p[n:], data[start:])
		n += copied
		s.pos += int64(copied)
	}

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (s *spoolStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = s.size + offset
	default:
		return 0, ErrInvalidWhence
	}
	if pos < 0 {
		return 0, ErrNegativePosition
	}
	s.pos = pos

	return pos, nil
}

func (s *spoolStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Close()
	s.cache.reset()

	err := s.spool.Close()
	if rmErr := os.Remove(s.spool.Name()); err == nil {
		err = rmErr
	}

	return err
}

func (s *spoolStream) Kind() Kind   { return s.kind }
func (s *spoolStream) Path() string { return s.path }
func (s *spoolStream) Size() int64  { return s.size }

// blockAt returns the index of the block containing pos, pos must be < s.size.
func (s *spoolStream) blockAt(pos int64) int {
	return sort.Search(len(s.blocks), func(i int) bool {
		b := s.blocks[i]
		return b.rawOff+int64(b.rawLen) > pos
	})
}

func (s *spoolStream) block(idx int) ([]byte, error) {
	if data, ok := s.cache.get(idx); ok {
		return data, nil
	}

	b := s.blocks[idx]
	frame := make([]byte, b.compLen)
	if _, err := s.spool.ReadAt(frame, b.spoolOff); err != nil {
		return nil, stdf.NewIOError("spool read", err)
	}
	data, err := s.dec.DecodeAll(frame, make([]byte, 0, b.rawLen))
	if err != nil {
		return nil, stdf.NewIOError("spool decode", err)
	}
	if len(data) != b.rawLen {
		return nil, stdf.NewIOError("spool decode", fmt.Errorf("block %d: expected %d bytes, got %d", idx, b.rawLen, len(data)))
	}
	s.cache.put(idx, data)

	return data, nil
}

// blockCache is a small LRU of decoded spool blocks.
type blockCache struct {
	max   int
	items map[int]*list.Element
	order *list.List
}

type cacheEntry struct {
	idx  int
	data []byte
}

func newBlockCache(max int) *blockCache {
	return &blockCache{max: max, items: make(map[int]*list.Element), order: list.New()}
}

func (c *blockCache) get(idx int) ([]byte, bool) {
	elem, ok := c.items[idx]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)

	return elem.Value.(*cacheEntry).data, true //nolint:forcetypeassert
}

func (c *blockCache) put(idx int, data []byte) {
	c.items[idx] = c.order.PushFront(&cacheEntry{idx: idx, data: data})
	for c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*cacheEntry).idx) //nolint:forcetypeassert
	}
}

func (c *blockCache) reset() {
	c.items = make(map[int]*list.Element)
	c.order.Init()
}
