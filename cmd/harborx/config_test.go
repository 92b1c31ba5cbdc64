package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/decoder"
	"github.com/harborx/harborx/idxmap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harborx.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Decoder != decoder.DefaultConfig() {
		t.Errorf("Decoder = %+v, want defaults", cfg.Decoder)
	}
	if cfg.Idxmap.Backend != idxmap.BackendPebble {
		t.Errorf("Backend = %q, want pebble", cfg.Idxmap.Backend)
	}
	if cfg.Idxmap.CacheSize != idxmap.DefaultCacheSize {
		t.Errorf("CacheSize = %d, want %d", cfg.Idxmap.CacheSize, idxmap.DefaultCacheSize)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
[decoder]
max_scan = 512
debug = true
generator = 5
output_suffix = ".jsonl.gz"

[idxmap]
backend = "leveldb"
path = "/var/lib/harborx/idxmap"

[log]
format = "json"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Decoder.MaxScan != 512 || !cfg.Decoder.Debug {
		t.Errorf("Decoder = %+v", cfg.Decoder)
	}
	if cfg.Decoder.Generator != das.LegacyGenerator {
		t.Errorf("Generator = %d, want %d", cfg.Decoder.Generator, das.LegacyGenerator)
	}
	if cfg.Decoder.OutputSuffix != ".jsonl.gz" {
		t.Errorf("OutputSuffix = %q", cfg.Decoder.OutputSuffix)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Decoder.ParseWindow != decoder.DefaultConfig().ParseWindow {
		t.Errorf("ParseWindow = %d", cfg.Decoder.ParseWindow)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Idxmap.Backend != idxmap.BackendLevelDB || cfg.Idxmap.Path != "/var/lib/harborx/idxmap" {
		t.Errorf("Idxmap = %+v", cfg.Idxmap)
	}
	if cfg.Idxmap.CacheSize != idxmap.DefaultCacheSize {
		t.Errorf("CacheSize = %d", cfg.Idxmap.CacheSize)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, ErrConfigFileNotFound) {
		t.Errorf("missing file: got %v, want ErrConfigFileNotFound", err)
	}
	if _, err := LoadConfig(writeConfig(t, "[decoder]\nmax_scann = 1\n")); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := LoadConfig(writeConfig(t, "[decoder\n")); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil config: got %v", err)
	}
	cases := map[string]func(*Config){
		"negative max_scan": func(c *Config) { c.Decoder.MaxScan = -1 },
		"bad suffix":        func(c *Config) { c.Decoder.OutputSuffix = "jsonl" },
		"unknown backend":   func(c *Config) { c.Idxmap.Backend = "rocksdb" },
		"negative cache":    func(c *Config) { c.Idxmap.CacheSize = -1 },
		"bad level":         func(c *Config) { c.Log.Level = "loud" },
		"bad format":        func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := ValidateConfig(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: got %v, want ErrInvalidConfig", name, err)
		}
	}
}

func TestMergeDefaults(t *testing.T) {
	cfg := &Config{}
	MergeDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("merged config invalid: %v", err)
	}
	if cfg.Decoder.MaxScan != decoder.DefaultConfig().MaxScan {
		t.Errorf("MaxScan = %d", cfg.Decoder.MaxScan)
	}
	// Zero cache size means no cache and is kept.
	if cfg.Idxmap.CacheSize != 0 {
		t.Errorf("CacheSize = %d, want 0", cfg.Idxmap.CacheSize)
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("HARBORX_IDXMAP_PATH", "/tmp/idx")
	t.Setenv("HARBORX_LOG_LEVEL", "debug")
	t.Setenv("HARBORX_MAX_SCAN", "99")
	t.Setenv("HARBORX_PARALLELISM", "not-a-number")
	t.Setenv("HARBORX_DEBUG", "true")

	cfg := DefaultConfig()
	ApplyEnvironment(cfg)
	if cfg.Idxmap.Path != "/tmp/idx" {
		t.Errorf("Idxmap.Path = %q", cfg.Idxmap.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Decoder.MaxScan != 99 {
		t.Errorf("MaxScan = %d, want 99", cfg.Decoder.MaxScan)
	}
	if cfg.Decoder.Parallelism != 0 {
		t.Errorf("Parallelism = %d, malformed value should be ignored", cfg.Decoder.Parallelism)
	}
	if !cfg.Decoder.Debug {
		t.Error("Debug should be set")
	}
}
