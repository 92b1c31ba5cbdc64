// Command harborx decodes Starknet state diffs published in EIP-4844 blobs.
//
// Usage:
//
//	harborx decode --out rows.jsonl blob_0.bin blob_1.bin
//	harborx manifest --listing blobs.csv --out decoder_manifest.json
//	harborx frames --manifest decoder_manifest.json --out decoded/
//	harborx idxmap import --path idxmap.db idx.csv
//	harborx config > harborx.toml
//	harborx version
//
// Global flags:
//
//	--config        TOML config file
//	--log-level     debug, info, warn, error (default: info)
//	--log-format    text or json (default: text)
//	--debug         log collaborator progress
//	--metrics-addr  serve Prometheus metrics on this address
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harborx/harborx/idxmap"
	"github.com/harborx/harborx/log"
	"github.com/harborx/harborx/metrics"
	"github.com/spf13/cobra"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := execute(ctx, args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "harborx: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app carries global flags and the resolved configuration into subcommands.
type app struct {
	stdout, stderr io.Writer

	configPath  string
	logLevel    string
	logFormat   string
	debug       bool
	metricsAddr string

	cfg    *Config
	logger *log.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "harborx",
		Short:         "Decode Starknet state diffs from EIP-4844 blobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "TOML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (text, json)")
	pf.BoolVar(&a.debug, "debug", false, "log collaborator progress")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newDecodeCmd(a),
		newFramesCmd(a),
		newManifestCmd(a),
		newIdxmapCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup resolves the configuration: file, then environment, then flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	ApplyEnvironment(cfg)

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("debug") {
		cfg.Decoder.Debug = a.debug
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = a.metricsAddr
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	if cfg.Decoder.Debug {
		level = min(level, slog.LevelDebug)
	}
	logger, err := log.NewFormat(a.stderr, cfg.Log.Format, level)
	if err != nil {
		return err
	}
	log.SetDefault(logger)
	a.cfg, a.logger = cfg, logger
	return nil
}

// startMetrics serves the default registry in the background until ctx ends.
func (a *app) startMetrics(ctx context.Context) error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	exp, err := metrics.NewExporter(metrics.DefaultRegistry, metrics.ExporterConfig{
		EnableRuntime: a.cfg.Metrics.Runtime,
		Path:          "/metrics",
	})
	if err != nil {
		return err
	}
	go func() {
		if err := exp.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
			a.logger.Error("Metrics server stopped", "addr", a.cfg.Metrics.Addr, "err", err)
		}
	}()
	a.logger.Info("Serving metrics", "addr", a.cfg.Metrics.Addr)
	return nil
}

// openStore opens the configured index table read-only, wrapped in a cache
// when one is configured. It returns nil when no table is configured.
func (a *app) openStore() (idxmap.Store, error) {
	store, err := idxmap.OpenReadOnly(a.cfg.Idxmap.Backend, a.cfg.Idxmap.Path)
	if err != nil || store == nil {
		if a.cfg.Idxmap.Path != "" && err == nil {
			a.logger.Warn("Index table not found, surrogates pass through", "path", a.cfg.Idxmap.Path)
		}
		return nil, err
	}
	if a.cfg.Idxmap.CacheSize == 0 {
		return store, nil
	}
	cached, err := idxmap.NewCachedStore(store, a.cfg.Idxmap.CacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return cached, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(a.stdout, "harborx %s (commit %s)\n", version, commit)
			return err
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return encodeConfig(a.stdout, a.cfg)
		},
	}
}
