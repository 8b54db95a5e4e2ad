package observability

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogger(prefix string) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(prefix).(*StandardLogger)
	logger.out = log.New(&buf, "", 0)
	return logger, &buf
}

func TestStandardLoggerLevels(t *testing.T) {
	logger, buf := captureLogger("cache")
	debug := logger.WithLevel(LogLevelDebug)

	debug.Debug("debug message", nil)
	debug.Info("info message", nil)
	debug.Warn("warn message", nil)
	debug.Error("error message", nil)

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] cache: debug message")
	assert.Contains(t, out, "[INFO] cache: info message")
	assert.Contains(t, out, "[WARN] cache: warn message")
	assert.Contains(t, out, "[ERROR] cache: error message")
}

func TestStandardLoggerMinimumLevel(t *testing.T) {
	// Info is the default level; debug is filtered.
	logger, buf := captureLogger("cache")

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.Contains(t, out, "info message")
}

func TestStandardLoggerFieldsSortedAndFormatted(t *testing.T) {
	logger, buf := captureLogger("cache")

	logger.Info("stored", map[string]interface{}{
		"tier":      "warm",
		"cache_key": "abc123",
		"count":     3,
	})

	assert.Contains(t, buf.String(), "stored {cache_key=abc123, count=3, tier=warm}")
}

func TestStandardLoggerWith(t *testing.T) {
	logger, buf := captureLogger("cache")
	scoped := logger.With(map[string]interface{}{"tenant": "t1"})

	scoped.Info("hit", map[string]interface{}{"tier": "hot"})

	assert.Contains(t, buf.String(), "{tenant=t1, tier=hot}")

	// The parent logger is unaffected.
	buf.Reset()
	logger.Info("miss", nil)
	assert.NotContains(t, buf.String(), "tenant")
}

func TestStandardLoggerWithPrefix(t *testing.T) {
	logger, buf := captureLogger("parent")
	child := logger.WithPrefix("parent.child")

	child.Info("ready", nil)

	assert.Contains(t, buf.String(), "parent.child: ready")
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()

	// Must absorb everything without panicking.
	logger.Debug("d", nil)
	logger.Info("i", map[string]interface{}{"k": "v"})
	logger.Warn("w", nil)
	logger.Error("e", nil)
	assert.NotNil(t, logger.With(map[string]interface{}{"k": "v"}))
	assert.NotNil(t, logger.WithPrefix("p"))
}
