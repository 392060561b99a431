// Package config loads viewer settings from a YAML file and the environment and turns
// them into session options.
//
// Values are resolved in this order: built-in defaults, the YAML file, then environment
// variables named <PREFIX>_<FIELD>, e.g. STDF_PRECISION or STDF_STREAM_BLOCK_SIZE.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/session"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/arloliu/go-stdf/stream"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPrefix is the environment variable prefix used by Load.
const DefaultPrefix = "STDF"

// Config holds all settings a viewer session depends on.
type Config struct {
	LogLevel      string  `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Endianness    string  `yaml:"endianness" envconfig:"ENDIANNESS" validate:"oneof=auto little big le be"`
	CheckCpk      bool    `yaml:"check_cpk" envconfig:"CHECK_CPK"`
	CpkThreshold  float64 `yaml:"cpk_threshold" envconfig:"CPK_THRESHOLD" validate:"gte=0"`
	Precision     int     `yaml:"precision" envconfig:"PRECISION" validate:"gte=0,lte=15"`
	Notation      string  `yaml:"notation" envconfig:"NOTATION" validate:"oneof=f e g E G"`
	IndexCacheDir string  `yaml:"index_cache_dir" envconfig:"INDEX_CACHE_DIR"`

	Stream StreamConfig `yaml:"stream" envconfig:"STREAM"`
}

// StreamConfig tunes the compressed file reader. Zero values keep the reader defaults.
type StreamConfig struct {
	BlockSize   int    `yaml:"block_size" envconfig:"BLOCK_SIZE" validate:"omitempty,gte=4096,lte=67108864"`
	Parallelism int    `yaml:"parallelism" envconfig:"PARALLELISM" validate:"omitempty,gte=1,lte=64"`
	CacheBlocks int    `yaml:"cache_blocks" envconfig:"CACHE_BLOCKS" validate:"omitempty,gte=1"`
	SpoolDir    string `yaml:"spool_dir" envconfig:"SPOOL_DIR"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		Endianness:   "auto",
		CheckCpk:     false,
		CpkThreshold: 1.33,
		Precision:    3,
		Notation:     "f",
	}
}

// Load reads path (skipped when empty) over the defaults, overlays environment variables
// carrying prefix and validates the result.
func Load(prefix string, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := envconfig.Process(prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("invalid %s: %v fails %q", fe.Namespace(), fe.Value(), fe.Tag()))
		}

		return errors.Join(errs...)
	}

	return err
}

// Level returns the parsed log level.
func (c *Config) Level() (logger.Level, error) {
	return logger.ParseLevel(c.LogLevel)
}

// Options converts the settings to session options. l is attached as the session logger
// when not nil.
func (c *Config) Options(l logger.Logger) ([]session.Option, error) {
	order, err := stdf.ParseEndianness(c.Endianness)
	if err != nil {
		return nil, err
	}

	if len(c.Notation) != 1 {
		return nil, fmt.Errorf("invalid notation %q", c.Notation)
	}

	opts := []session.Option{
		session.WithEndianness(order),
		session.WithCheckCpk(c.CheckCpk),
		session.WithCpkThreshold(c.CpkThreshold),
		session.WithPrecision(c.Precision),
		session.WithNotation(c.Notation[0]),
	}
	if c.IndexCacheDir != "" {
		opts = append(opts, session.WithIndexCacheDir(c.IndexCacheDir))
	}
	if so := c.Stream.options(); len(so) > 0 {
		opts = append(opts, session.WithStreamOptions(so...))
	}
	if l != nil {
		opts = append(opts, session.WithLogger(l))
	}

	return opts, nil
}

func (s StreamConfig) options() []stream.Option {
	var opts []stream.Option
	if s.BlockSize > 0 {
		opts = append(opts, stream.WithBlockSize(s.BlockSize))
	}
	if s.Parallelism > 0 {
		opts = append(opts, stream.WithParallelism(s.Parallelism))
	}
	if s.CacheBlocks > 0 {
		opts = append(opts, stream.WithCacheBlocks(s.CacheBlocks))
	}
	if s.SpoolDir != "" {
		opts = append(opts, stream.WithSpoolDir(s.SpoolDir))
	}

	return opts
}
