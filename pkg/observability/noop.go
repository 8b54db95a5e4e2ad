package observability

import "time"

// NoopLogger discards all log messages.
type NoopLogger struct{}

// NewNoopLogger creates a logger that discards everything.
func NewNoopLogger() Logger { return &NoopLogger{} }

func (n *NoopLogger) Debug(msg string, fields map[string]interface{}) {}
func (n *NoopLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoopLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoopLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoopLogger) With(fields map[string]interface{}) Logger       { return n }
func (n *NoopLogger) WithPrefix(prefix string) Logger                 { return n }

// NoopMetricsClient discards all metrics.
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that discards everything.
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

func (n *NoopMetricsClient) IncrementCounter(name string, value float64) {}
func (n *NoopMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
}
func (n *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string)     {}
func (n *NoopMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {}
func (n *NoopMetricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
}
func (n *NoopMetricsClient) RecordLatency(operation string, duration time.Duration) {}
func (n *NoopMetricsClient) Close() error                                          { return nil }
