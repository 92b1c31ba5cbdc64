package decoder

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/idxmap"
	"github.com/harborx/harborx/log"
	"github.com/harborx/harborx/statediff"
	"github.com/harborx/harborx/stateless"
)

// Config holds the decoder's tunables.
type Config struct {
	// MaxScan bounds the header scan (offsets tried per frame).
	MaxScan int `toml:"max_scan"`
	// ParseWindow bounds the state-diff start offsets tried.
	ParseWindow int `toml:"parse_window"`
	// Debug makes collaborators log their progress.
	Debug bool `toml:"debug"`
	// ComputeVersionedHashes computes the EIP-4844 versioned hash of each
	// input blob.
	ComputeVersionedHashes bool `toml:"versioned_hashes"`
	// Generator is the multiplicative generator the NTT domain is derived
	// from.
	Generator uint64 `toml:"generator"`
	// Parallelism bounds concurrently decoded frames; zero means GOMAXPROCS.
	Parallelism int `toml:"parallelism"`
	// OutputSuffix names per-frame output files. A ".gz" or ".zst" ending
	// compresses the output.
	OutputSuffix string `toml:"output_suffix"`
	// RequireExplicit makes New fail unless unpacker, decompressor and
	// parser are all passed as options.
	RequireExplicit bool `toml:"-"`
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		MaxScan:      stateless.DefaultMaxScan,
		ParseWindow:  statediff.DefaultWindow,
		Generator:    das.Generator,
		OutputSuffix: ".jsonl",
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.MaxScan < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_scan must not be negative, got %d", c.MaxScan)
	}
	if c.ParseWindow < 0 {
		return errors.Wrapf(ErrInvalidConfig, "parse_window must not be negative, got %d", c.ParseWindow)
	}
	if c.Parallelism < 0 {
		return errors.Wrapf(ErrInvalidConfig, "parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.Generator == 1 {
		return errors.Wrap(ErrInvalidConfig, "generator 1 has order 1")
	}
	if c.OutputSuffix != "" && !strings.HasPrefix(c.OutputSuffix, ".") {
		return errors.Wrapf(ErrInvalidConfig, "output_suffix %q must start with a dot", c.OutputSuffix)
	}
	return nil
}

type options struct {
	unpacker     das.Unpacker
	decompressor stateless.Decompressor
	parser       statediff.Parser
	store        idxmap.Store
	policy       idxmap.Policy
	logger       *log.Logger
	kzg          *das.KZG
	set          map[string]bool
}

// Option configures a Decoder.
type Option func(*options)

func (o *options) mark(name string) {
	if o.set == nil {
		o.set = make(map[string]bool)
	}
	o.set[name] = true
}

// WithUnpacker sets the DA unpacker.
func WithUnpacker(u das.Unpacker) Option {
	return func(o *options) { o.unpacker = u; o.mark("unpacker") }
}

// WithDecompressor sets the stateless decompressor used by the header scan.
func WithDecompressor(d stateless.Decompressor) Option {
	return func(o *options) { o.decompressor = d; o.mark("decompressor") }
}

// WithParser sets the program-output parser.
func WithParser(p statediff.Parser) Option {
	return func(o *options) { o.parser = p; o.mark("parser") }
}

// WithStore sets the index table used to resolve surrogates. Without it
// surrogates pass through unchanged.
func WithStore(s idxmap.Store) Option {
	return func(o *options) { o.store = s }
}

// WithPolicy overrides the literal-vs-surrogate policy.
func WithPolicy(p idxmap.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKZG supplies a loaded KZG context for versioned hashes.
func WithKZG(k *das.KZG) Option {
	return func(o *options) { o.kzg = k }
}
