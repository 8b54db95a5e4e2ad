// Package observability provides the logging, metrics, and tracing
// surfaces used across the embedding cache. Components accept these
// interfaces and fall back to noop implementations when given nil, so
// the cache can run fully instrumented or fully silent.
package observability

import "time"

// LogLevel defines log message severity.
type LogLevel string

// Log levels, ordered from most to least verbose.
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Logger is the structured logging interface. Fields travel as a map so
// call sites stay free of any concrete logging dependency.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	// With returns a logger that attaches fields to every message.
	With(fields map[string]interface{}) Logger
	// WithPrefix returns a logger scoped to a component name.
	WithPrefix(prefix string) Logger
}

// MetricsClient records cache metrics. Implementations must be safe for
// concurrent use.
type MetricsClient interface {
	IncrementCounter(name string, value float64)
	IncrementCounterWithLabels(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	RecordCacheOperation(operation string, success bool, durationSeconds float64)
	RecordLatency(operation string, duration time.Duration)

	Close() error
}
