package main

import (
	"bytes"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/decoder"
	"github.com/harborx/harborx/idxmap"
	"github.com/harborx/harborx/log"
	"github.com/pelletier/go-toml/v2"
)

// Configuration errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// IdxmapConfig locates the index table used to resolve surrogates.
type IdxmapConfig struct {
	Backend string `toml:"backend"`
	// Path is the table directory. Empty disables resolution.
	Path string `toml:"path"`
	// CacheSize bounds the in-memory lookup cache; zero disables it.
	CacheSize int `toml:"cache_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. "127.0.0.1:9100".
	Addr    string `toml:"addr"`
	Runtime bool   `toml:"runtime"`
}

// Config aggregates the TOML file, environment and CLI flags.
type Config struct {
	Decoder decoder.Config `toml:"decoder"`
	Idxmap  IdxmapConfig   `toml:"idxmap"`
	Log     LogConfig      `toml:"log"`
	Metrics MetricsConfig  `toml:"metrics"`

	// ConfigFile is the path the config was loaded from, if any.
	ConfigFile string `toml:"-"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Decoder: decoder.DefaultConfig(),
		Idxmap: IdxmapConfig{
			Backend:   idxmap.BackendPebble,
			CacheSize: idxmap.DefaultCacheSize,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Runtime: true},
	}
}

// LoadConfig reads a TOML config file. Keys missing from the file keep their
// defaults; unknown keys are rejected. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfigFileNotFound, "%s", path)
		}
		return nil, errors.Wrap(err, "read config")
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.ConfigFile = path
	MergeDefaults(cfg)
	return cfg, nil
}

// MergeDefaults fills zero-valued fields that have no meaningful zero.
func MergeDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Decoder.MaxScan == 0 {
		cfg.Decoder.MaxScan = defaults.Decoder.MaxScan
	}
	if cfg.Decoder.ParseWindow == 0 {
		cfg.Decoder.ParseWindow = defaults.Decoder.ParseWindow
	}
	if cfg.Decoder.Generator == 0 {
		cfg.Decoder.Generator = defaults.Decoder.Generator
	}
	if cfg.Decoder.OutputSuffix == "" {
		cfg.Decoder.OutputSuffix = defaults.Decoder.OutputSuffix
	}
	if cfg.Idxmap.Backend == "" {
		cfg.Idxmap.Backend = defaults.Idxmap.Backend
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// ValidateConfig returns the first inconsistency found in cfg.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(ErrInvalidConfig, "nil config")
	}
	if err := cfg.Decoder.Validate(); err != nil {
		return errors.Mark(err, ErrInvalidConfig)
	}
	switch cfg.Idxmap.Backend {
	case idxmap.BackendPebble, idxmap.BackendLevelDB:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown idxmap backend %q", cfg.Idxmap.Backend)
	}
	if cfg.Idxmap.CacheSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "idxmap cache_size must not be negative, got %d", cfg.Idxmap.CacheSize)
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return errors.Mark(err, ErrInvalidConfig)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown log format %q", cfg.Log.Format)
	}
	return nil
}

// ApplyEnvironment overrides cfg from HARBORX_* environment variables.
// Malformed numbers are ignored.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv("HARBORX_IDXMAP_PATH"); v != "" {
		cfg.Idxmap.Path = v
	}
	if v := os.Getenv("HARBORX_IDXMAP_BACKEND"); v != "" {
		cfg.Idxmap.Backend = v
	}
	if v := os.Getenv("HARBORX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HARBORX_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("HARBORX_MAX_SCAN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Decoder.MaxScan = n
		}
	}
	if v := os.Getenv("HARBORX_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Decoder.Parallelism = n
		}
	}
	if v := os.Getenv("HARBORX_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Decoder.Debug = b
		}
	}
}

// encodeConfig writes cfg as TOML.
func encodeConfig(w io.Writer, cfg *Config) error {
	return errors.Wrap(toml.NewEncoder(w).Encode(cfg), "encode config")
}
