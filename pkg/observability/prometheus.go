package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsClient implements MetricsClient on top of a
// prometheus registry. Collectors are created lazily on first use; the
// label-name set of the first observation fixes the collector's schema,
// so callers must use consistent labels per metric name.
type PrometheusMetricsClient struct {
	registry   *prometheus.Registry
	namespace  string
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetricsClient creates a metrics client backed by its own
// prometheus registry.
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	return &PrometheusMetricsClient{
		registry:   prometheus.NewRegistry(),
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry exposes the underlying registry for HTTP scraping setup.
func (p *PrometheusMetricsClient) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetricsClient) IncrementCounter(name string, value float64) {
	p.IncrementCounterWithLabels(name, value, nil)
}

func (p *PrometheusMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	p.counter(name, labelNames(labels)).With(prometheus.Labels(normalizeLabels(labels))).Add(value)
}

func (p *PrometheusMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	p.gauge(name, labelNames(labels)).With(prometheus.Labels(normalizeLabels(labels))).Set(value)
}

func (p *PrometheusMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {
	p.histogram(name, labelNames(labels)).With(prometheus.Labels(normalizeLabels(labels))).Observe(value)
}

func (p *PrometheusMetricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	labels := map[string]string{"operation": operation, "status": status}
	p.IncrementCounterWithLabels("cache_operations_total", 1, labels)
	p.RecordHistogram("cache_operation_duration_seconds", durationSeconds, labels)
}

func (p *PrometheusMetricsClient) RecordLatency(operation string, duration time.Duration) {
	p.RecordHistogram("operation_latency_seconds", duration.Seconds(), map[string]string{
		"operation": operation,
	})
}

func (p *PrometheusMetricsClient) Close() error { return nil }

func (p *PrometheusMetricsClient) counter(name string, names []string) *prometheus.CounterVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      sanitizeMetricName(name),
	}, names)
	p.registry.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *PrometheusMetricsClient) gauge(name string, names []string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      sanitizeMetricName(name),
	}, names)
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

func (p *PrometheusMetricsClient) histogram(name string, names []string) *prometheus.HistogramVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      sanitizeMetricName(name),
		Buckets:   prometheus.DefBuckets,
	}, names)
	p.registry.MustRegister(h)
	p.histograms[name] = h
	return h
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func normalizeLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return map[string]string{}
	}
	return labels
}

func sanitizeMetricName(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
