package session

import (
	"errors"
	"math"
	"sync"

	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/arloliu/go-stdf/stream"
)

// Config holds the settings shared by the sessions of a Manager.
type Config struct {
	mu sync.RWMutex

	// order forces the byte order of loaded files. Defaults to stdf.AutoEndian.
	order stdf.Endianness

	// checkCpk makes IsTestFail report CpkFailed for passing tests with a low Cpk.
	// Defaults to false.
	checkCpk bool
	// cpkThreshold is the lowest acceptable Cpk when checkCpk is set.
	// Defaults to 1.33.
	cpkThreshold float64

	// precision is the number of digits after the decimal point in formatted values.
	// Defaults to 3.
	precision int
	// notation is the verb used to format values: 'f', 'e' or 'g'.
	// Defaults to 'f'.
	notation byte

	// indexCacheDir is the badger directory used to cache file indexes. Empty disables the cache.
	indexCacheDir string

	// streamOpts are passed to stream.Open.
	streamOpts []stream.Option

	// progress receives load progress in percent milestones.
	progress func(percent int)
	// status receives record-level problems that do not abort the current operation.
	status func(msg string)

	logger logger.Logger
}

// NewConfig creates a Config with default values and applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		order:        stdf.AutoEndian,
		cpkThreshold: 1.33,
		precision:    3,
		notation:     'f',
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *Config) Endianness() stdf.Endianness {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.order
}

func (cfg *Config) CheckCpk() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.checkCpk
}

func (cfg *Config) CpkThreshold() float64 {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.cpkThreshold
}

func (cfg *Config) Precision() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.precision
}

func (cfg *Config) Notation() byte {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.notation
}

func (cfg *Config) IndexCacheDir() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.indexCacheDir
}

func (cfg *Config) StreamOptions() []stream.Option {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.streamOpts
}

func (cfg *Config) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

func (cfg *Config) progressFunc() func(int) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.progress
}

func (cfg *Config) statusFunc() func(string) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.status
}

// Set applies runtime options to an existing Config. Options that only take effect when a file
// is loaded are rejected.
func (cfg *Config) Set(opts ...Option) error {
	for _, opt := range opts {
		if f, ok := opt.(*optFunc); ok && !f.runtime {
			return errors.New(f.name + " cannot be changed at runtime")
		}
		if err := opt.apply(cfg); err != nil {
			return err
		}
	}

	return nil
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	runtime   bool
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, runtime bool, f func(*Config) error) *optFunc {
	return &optFunc{name: name, runtime: runtime, applyFunc: f}
}

// WithEndianness forces the byte order of loaded files. stdf.AutoEndian detects it from the FAR.
func WithEndianness(order stdf.Endianness) Option {
	return newOptFunc("WithEndianness", false, func(cfg *Config) error {
		switch order {
		case stdf.AutoEndian, stdf.LittleEndian, stdf.BigEndian:
		default:
			return errors.New("invalid endianness")
		}

		cfg.mu.Lock()
		cfg.order = order
		cfg.mu.Unlock()

		return nil
	})
}

// WithCheckCpk enables the Cpk check of IsTestFail.
func WithCheckCpk(enable bool) Option {
	return newOptFunc("WithCheckCpk", true, func(cfg *Config) error {
		cfg.mu.Lock()
		cfg.checkCpk = enable
		cfg.mu.Unlock()

		return nil
	})
}

// WithCpkThreshold sets the lowest acceptable Cpk. It must be a finite, non-negative number.
func WithCpkThreshold(threshold float64) Option {
	return newOptFunc("WithCpkThreshold", true, func(cfg *Config) error {
		if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
			return errors.New("invalid Cpk threshold")
		}

		cfg.mu.Lock()
		cfg.cpkThreshold = threshold
		cfg.mu.Unlock()

		return nil
	})
}

// WithPrecision sets the number of digits after the decimal point, between 0 and 15.
func WithPrecision(precision int) Option {
	return newOptFunc("WithPrecision", true, func(cfg *Config) error {
		if precision < 0 || precision > 15 {
			return errors.New("precision should be between 0 and 15")
		}

		cfg.mu.Lock()
		cfg.precision = precision
		cfg.mu.Unlock()

		return nil
	})
}

// WithNotation sets the value notation: 'f' fixed point, 'e' scientific or 'g' the shorter
// of the two.
func WithNotation(notation byte) Option {
	return newOptFunc("WithNotation", true, func(cfg *Config) error {
		switch notation {
		case 'f', 'e', 'g', 'E', 'G':
		default:
			return errors.New("invalid notation, should be one of f, e, g, E, G")
		}

		cfg.mu.Lock()
		cfg.notation = notation
		cfg.mu.Unlock()

		return nil
	})
}

// WithIndexCacheDir enables the persistent index cache in dir.
func WithIndexCacheDir(dir string) Option {
	return newOptFunc("WithIndexCacheDir", false, func(cfg *Config) error {
		cfg.mu.Lock()
		cfg.indexCacheDir = dir
		cfg.mu.Unlock()

		return nil
	})
}

// WithStreamOptions sets the options used to open files.
func WithStreamOptions(opts ...stream.Option) Option {
	return newOptFunc("WithStreamOptions", false, func(cfg *Config) error {
		cfg.mu.Lock()
		cfg.streamOpts = opts
		cfg.mu.Unlock()

		return nil
	})
}

// WithProgress sets the callback receiving indexing progress in percent.
func WithProgress(fn func(percent int)) Option {
	return newOptFunc("WithProgress", true, func(cfg *Config) error {
		cfg.mu.Lock()
		cfg.progress = fn
		cfg.mu.Unlock()

		return nil
	})
}

// WithStatus sets the callback receiving status messages about tests that could not be read
// or resolved.
func WithStatus(fn func(msg string)) Option {
	return newOptFunc("WithStatus", true, func(cfg *Config) error {
		cfg.mu.Lock()
		cfg.status = fn
		cfg.mu.Unlock()

		return nil
	})
}

// WithLogger sets the logger. A nil logger is rejected.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", false, func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}

		cfg.mu.Lock()
		cfg.logger = l
		cfg.mu.Unlock()

		return nil
	})
}
