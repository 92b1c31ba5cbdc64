// Package metrics provides the decoder's counters, gauges and histograms on
// top of the Prometheus client. Metrics are created on first access
// (get-or-create semantics) so callers never need to check for nil.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "harborx"

// Metric types handed out by a Registry.
type (
	Counter   = prometheus.Counter
	Gauge     = prometheus.Gauge
	Histogram = prometheus.Histogram
)

// DefaultBuckets covers 1 to 32768 in powers of two. It suits both
// millisecond latencies and per-frame attempt counts.
var DefaultBuckets = prometheus.ExponentialBuckets(1, 2, 16)

// Registry holds all registered metrics, keyed by dotted name
// ("decoder.frames" is exported as "harborx_decoder_frames").
type Registry struct {
	mu         sync.RWMutex
	reg        *prometheus.Registry
	counters   map[string]Counter
	gauges     map[string]Gauge
	histograms map[string]Histogram
}

// DefaultRegistry is the process-wide registry used by the pre-defined
// metrics in standard.go.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty Registry backed by its own
// prometheus.Registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]Counter),
		gauges:     make(map[string]Gauge),
		histograms: make(map[string]Histogram),
	}
}

// Gatherer exposes the underlying Prometheus registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Register adds an external collector, such as the Go runtime collector.
func (r *Registry) Register(c prometheus.Collector) error { return r.reg.Register(c) }

func exportName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// Counter returns the Counter registered under name, creating it if it does
// not exist yet.
func (r *Registry) Counter(name string) Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      exportName(name),
		Help:      name,
	})
	r.reg.MustRegister(c)
	r.counters[name] = c
	return c
}

// Gauge returns the Gauge registered under name, creating it if it does not
// exist yet.
func (r *Registry) Gauge(name string) Gauge {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok = r.gauges[name]; ok {
		return g
	}
	g = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      exportName(name),
		Help:      name,
	})
	r.reg.MustRegister(g)
	r.gauges[name] = g
	return g
}

// Histogram returns the Histogram registered under name, creating it with
// DefaultBuckets if it does not exist yet.
func (r *Registry) Histogram(name string) Histogram {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.histograms[name]; ok {
		return h
	}
	h = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      exportName(name),
		Help:      name,
		Buckets:   DefaultBuckets,
	})
	r.reg.MustRegister(h)
	r.histograms[name] = h
	return h
}
