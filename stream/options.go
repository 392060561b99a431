package stream

import (
	"errors"
	"runtime"
)

const (
	// DefaultBlockSize is the decompressed size of one spool block.
	DefaultBlockSize = 1 << 20
	// DefaultCacheBlocks is the number of decoded spool blocks kept in memory.
	DefaultCacheBlocks = 8
)

// ProgressFunc receives the percentage of the source consumed while a compressed stream is indexed.
// It is only called when the percentage crosses a new milestone.
type ProgressFunc func(percent int)

type options struct {
	blockSize   int
	parallelism int
	cacheBlocks int
	spoolDir    string
	progress    ProgressFunc
}

func defaultOptions() *options {
	return &options{
		blockSize:   DefaultBlockSize,
		parallelism: min(runtime.NumCPU(), 4),
		cacheBlocks: DefaultCacheBlocks,
	}
}

// Option configures Open.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithBlockSize sets the decompressed size of one spool block. It must be between 4 KiB and 64 MiB.
func WithBlockSize(size int) Option {
	return optFunc(func(o *options) error {
		if size < 4<<10 || size > 64<<20 {
			return errors.New("block size should be in range of [4KiB, 64MiB]")
		}
		o.blockSize = size

		return nil
	})
}

// WithParallelism sets how many spool blocks are compressed concurrently while indexing.
func WithParallelism(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 || n > 64 {
			return errors.New("parallelism should be in range of [1, 64]")
		}
		o.parallelism = n

		return nil
	})
}

// WithCacheBlocks sets how many decoded spool blocks are kept in memory.
func WithCacheBlocks(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 {
			return errors.New("cache blocks should be at least 1")
		}
		o.cacheBlocks = n

		return nil
	})
}

// WithSpoolDir sets the directory for spool files. Defaults to os.TempDir().
func WithSpoolDir(dir string) Option {
	return optFunc(func(o *options) error {
		o.spoolDir = dir
		return nil
	})
}

// WithProgress sets the indexing progress callback.
func WithProgress(fn ProgressFunc) Option {
	return optFunc(func(o *options) error {
		o.progress = fn
		return nil
	})
}
