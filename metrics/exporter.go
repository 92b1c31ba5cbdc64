package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExporterConfig configures the Prometheus HTTP exporter.
type ExporterConfig struct {
	// EnableRuntime adds Go runtime and process collectors to the registry.
	EnableRuntime bool
	// Path is the HTTP path to serve metrics on (default "/metrics").
	Path string
}

// DefaultExporterConfig returns a config with runtime metrics enabled.
func DefaultExporterConfig() ExporterConfig {
	return ExporterConfig{EnableRuntime: true, Path: "/metrics"}
}

// Exporter serves a Registry in Prometheus text exposition format.
type Exporter struct {
	config   ExporterConfig
	registry *Registry
}

// NewExporter creates an exporter for r, registering runtime collectors when
// configured.
func NewExporter(r *Registry, config ExporterConfig) (*Exporter, error) {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.EnableRuntime {
		for _, c := range []prometheus.Collector{
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		} {
			if err := r.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					return nil, errors.Wrap(err, "metrics: registering runtime collector")
				}
			}
		}
	}
	return &Exporter{config: config, registry: r}, nil
}

// Handler returns the scrape handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry.Gatherer(), promhttp.HandlerOpts{})
}

// Serve listens on addr and serves metrics until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "metrics: listening on %s", addr)
	}
	return e.serve(ctx, ln)
}

func (e *Exporter) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(e.config.Path, e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}
