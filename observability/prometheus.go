package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ensure PrometheusFactory implements MetricFactory.
var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory creates Prometheus-backed counters and histograms.
// Metric names use dot notation and are sanitized to Prometheus's
// underscore convention. Repeated requests for the same name return the
// same collector.
type PrometheusFactory struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory registering against reg. A nil
// reg uses the default registerer.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		registerer: reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sanitizeName(name),
	})
	f.registerer.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}

	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    sanitizeName(name),
		Buckets: prometheus.DefBuckets,
	})
	f.registerer.MustRegister(h)
	f.histograms[name] = h
	return h
}

func sanitizeName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
