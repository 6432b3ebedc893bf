package compressor

import (
	"flag"
	"fmt"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/wzqhbustb/cascade/storage/codec"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// ====================
// Configuration
// ====================

// Config holds the tunables of the sampling compressor. The defaults are
// heuristics; only their relative ordering is meaningful.
type Config struct {
	// MaxCascade bounds how many encodings may nest below the root.
	MaxCascade int `yaml:"max_cascade"`
	// SampleSize is the length of each contiguous sample slice.
	SampleSize int `yaml:"sample_size"`
	// SampleCount is the number of sample slices drawn across the array.
	SampleCount int `yaml:"sample_count"`
	// MaxCost prunes candidates whose cumulative path cost exceeds it.
	MaxCost int `yaml:"max_cost"`

	BitPackPercentile float64 `yaml:"bitpack_percentile"`
	MaxPatchRatio     float64 `yaml:"max_patch_ratio"`
	SparseThreshold   float64 `yaml:"sparse_threshold"`
	MinDictRatio      float64 `yaml:"min_dict_ratio"`

	BlockCodec     string `yaml:"block_codec"`
	BlockFrameRows int    `yaml:"block_frame_rows"`

	// Parallelism is the number of chunks CompressChunked works on at once.
	Parallelism int   `yaml:"parallelism"`
	Seed        int64 `yaml:"seed"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxCascade:        3,
		SampleSize:        64,
		SampleCount:       16,
		MaxCost:           3,
		BitPackPercentile: 0.99,
		MaxPatchRatio:     0.1,
		SparseThreshold:   0.9,
		MinDictRatio:      0.5,
		BlockCodec:        codec.Zstd.String(),
		BlockFrameRows:    1024,
		Parallelism:       1,
		Seed:              0,
	}
}

// RegisterFlags registers the compressor flags under prefix.
func (cfg *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	d := DefaultConfig()
	f.IntVar(&cfg.MaxCascade, prefix+"compressor.max-cascade", d.MaxCascade, "Maximum number of nested encodings below the root of a compressed array.")
	f.IntVar(&cfg.SampleSize, prefix+"compressor.sample-size", d.SampleSize, "Number of contiguous values in each sample slice.")
	f.IntVar(&cfg.SampleCount, prefix+"compressor.sample-count", d.SampleCount, "Number of sample slices drawn from arrays larger than sample-size * sample-count.")
	f.IntVar(&cfg.MaxCost, prefix+"compressor.max-cost", d.MaxCost, "Maximum cumulative cost of the encodings on one path of the compression tree.")
	f.Float64Var(&cfg.BitPackPercentile, prefix+"compressor.bitpack-percentile", d.BitPackPercentile, "Fraction of values the chosen bit width must cover; the rest become patches.")
	f.Float64Var(&cfg.MaxPatchRatio, prefix+"compressor.max-patch-ratio", d.MaxPatchRatio, "Candidates needing more patches than this fraction of the array reject themselves.")
	f.Float64Var(&cfg.SparseThreshold, prefix+"compressor.sparse-threshold", d.SparseThreshold, "Minimum share of the most frequent value for sparse encoding to be tried.")
	f.Float64Var(&cfg.MinDictRatio, prefix+"compressor.min-dict-ratio", d.MinDictRatio, "Maximum ratio of distinct to valid values for dictionary encoding to be tried.")
	f.StringVar(&cfg.BlockCodec, prefix+"compressor.block-codec", d.BlockCodec, "Codec used by the block encoding for strings. Supported: none, zstd, s2, snappy, lz4.")
	f.IntVar(&cfg.BlockFrameRows, prefix+"compressor.block-frame-rows", d.BlockFrameRows, "Number of values compressed together in one block frame.")
	f.IntVar(&cfg.Parallelism, prefix+"compressor.parallelism", d.Parallelism, "Number of chunks compressed concurrently.")
	f.Int64Var(&cfg.Seed, prefix+"compressor.seed", d.Seed, "Seed of the sample slice placement.")
}

// Validate checks the configuration
func (cfg *Config) Validate() error {
	invalid := func(field string, v any) error {
		return errors.New(errors.ErrInvalidArgument).
			Op("compressor_config").
			Context("field", field).
			Context("value", v).
			Build()
	}
	switch {
	case cfg.MaxCascade < 0:
		return invalid("max_cascade", cfg.MaxCascade)
	case cfg.SampleSize < 1:
		return invalid("sample_size", cfg.SampleSize)
	case cfg.SampleCount < 1:
		return invalid("sample_count", cfg.SampleCount)
	case cfg.MaxCost < 0:
		return invalid("max_cost", cfg.MaxCost)
	case cfg.BitPackPercentile <= 0 || cfg.BitPackPercentile > 1:
		return invalid("bitpack_percentile", cfg.BitPackPercentile)
	case cfg.MaxPatchRatio < 0 || cfg.MaxPatchRatio > 1:
		return invalid("max_patch_ratio", cfg.MaxPatchRatio)
	case cfg.SparseThreshold <= 0 || cfg.SparseThreshold > 1:
		return invalid("sparse_threshold", cfg.SparseThreshold)
	case cfg.MinDictRatio <= 0 || cfg.MinDictRatio > 1:
		return invalid("min_dict_ratio", cfg.MinDictRatio)
	case cfg.BlockFrameRows < 1:
		return invalid("block_frame_rows", cfg.BlockFrameRows)
	case cfg.Parallelism < 1:
		return invalid("parallelism", cfg.Parallelism)
	}
	if _, err := codec.ParseType(cfg.BlockCodec); err != nil {
		return errors.New(errors.ErrInvalidArgument).
			Op("compressor_config").
			Context("field", "block_codec").
			Wrap(err).
			Build()
	}
	return nil
}

// ParseConfig reads a yaml document over the defaults.
func ParseConfig(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse compressor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ====================
// Options
// ====================

type options struct {
	cfg        Config
	logger     log.Logger
	registerer prometheus.Registerer
	schemes    []Scheme
}

// Option is a functional option for the compressor
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithMaxCascade sets the maximum cascade depth
func WithMaxCascade(depth int) Option {
	return func(o *options) {
		o.cfg.MaxCascade = depth
	}
}

// WithMaxCost sets the maximum cumulative cost of one tree path
func WithMaxCost(cost int) Option {
	return func(o *options) {
		o.cfg.MaxCost = cost
	}
}

// WithSampling sets the sample slice size and count
func WithSampling(size, count int) Option {
	return func(o *options) {
		o.cfg.SampleSize = size
		o.cfg.SampleCount = count
	}
}

// WithSeed sets the seed of the sample placement
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.cfg.Seed = seed
	}
}

// WithParallelism sets how many chunks are compressed concurrently
func WithParallelism(n int) Option {
	return func(o *options) {
		o.cfg.Parallelism = n
	}
}

// WithLogger sets the logger used for candidate trials
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the compressor metrics with r
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithSchemes replaces the candidate set. Order is the tie-break order.
func WithSchemes(schemes ...Scheme) Option {
	return func(o *options) {
		o.schemes = schemes
	}
}
