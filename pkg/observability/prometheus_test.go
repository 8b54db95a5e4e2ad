package observability

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, p *PrometheusMetricsClient, name string) *dto.MetricFamily {
	t.Helper()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func seriesWithLabels(mf *dto.MetricFamily, labels map[string]string) *dto.Metric {
	for _, m := range mf.GetMetric() {
		got := make(map[string]string, len(m.GetLabel()))
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		if len(got) != len(labels) {
			continue
		}
		match := true
		for k, v := range labels {
			if got[k] != v {
				match = false
				break
			}
		}
		if match {
			return m
		}
	}
	return nil
}

func TestPrometheusCounterAccumulates(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	p.IncrementCounterWithLabels("requests_total", 1, map[string]string{"tier": "hot"})
	p.IncrementCounterWithLabels("requests_total", 2, map[string]string{"tier": "hot"})
	p.IncrementCounterWithLabels("requests_total", 1, map[string]string{"tier": "warm"})

	mf := gatherFamily(t, p, "test_requests_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 2)

	hot := seriesWithLabels(mf, map[string]string{"tier": "hot"})
	require.NotNil(t, hot)
	assert.Equal(t, 3.0, hot.GetCounter().GetValue())

	warm := seriesWithLabels(mf, map[string]string{"tier": "warm"})
	require.NotNil(t, warm)
	assert.Equal(t, 1.0, warm.GetCounter().GetValue())
}

func TestPrometheusCounterWithoutLabels(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	// Lazy registration must reuse the collector on repeat calls
	// instead of re-registering (which would panic).
	p.IncrementCounter("evictions_total", 1)
	p.IncrementCounter("evictions_total", 1)

	mf := gatherFamily(t, p, "test_evictions_total")
	require.NotNil(t, mf)
	m := seriesWithLabels(mf, map[string]string{})
	require.NotNil(t, m)
	assert.Equal(t, 2.0, m.GetCounter().GetValue())
}

func TestPrometheusGaugeSetsLastValue(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	p.RecordGauge("resident_entries", 3, map[string]string{"tier": "hot"})
	p.RecordGauge("resident_entries", 7, map[string]string{"tier": "hot"})

	mf := gatherFamily(t, p, "test_resident_entries")
	require.NotNil(t, mf)
	m := seriesWithLabels(mf, map[string]string{"tier": "hot"})
	require.NotNil(t, m)
	assert.Equal(t, 7.0, m.GetGauge().GetValue())
}

func TestPrometheusHistogramObserves(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	p.RecordHistogram("latency_seconds", 0.01, nil)
	p.RecordHistogram("latency_seconds", 0.03, nil)

	mf := gatherFamily(t, p, "test_latency_seconds")
	require.NotNil(t, mf)
	m := seriesWithLabels(mf, map[string]string{})
	require.NotNil(t, m)
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.04, m.GetHistogram().GetSampleSum(), 1e-9)
}

func TestPrometheusRecordCacheOperation(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	p.RecordCacheOperation("retrieve", true, 0.002)
	p.RecordCacheOperation("retrieve", false, 0.001)

	counters := gatherFamily(t, p, "test_cache_operations_total")
	require.NotNil(t, counters)
	success := seriesWithLabels(counters, map[string]string{"operation": "retrieve", "status": "success"})
	require.NotNil(t, success)
	assert.Equal(t, 1.0, success.GetCounter().GetValue())
	failure := seriesWithLabels(counters, map[string]string{"operation": "retrieve", "status": "error"})
	require.NotNil(t, failure)
	assert.Equal(t, 1.0, failure.GetCounter().GetValue())

	durations := gatherFamily(t, p, "test_cache_operation_duration_seconds")
	require.NotNil(t, durations)
}

func TestPrometheusRecordLatency(t *testing.T) {
	p := NewPrometheusMetricsClient("test")

	p.RecordLatency("store", 25*time.Millisecond)

	mf := gatherFamily(t, p, "test_operation_latency_seconds")
	require.NotNil(t, mf)
	m := seriesWithLabels(mf, map[string]string{"operation": "store"})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.025, m.GetHistogram().GetSampleSum(), 1e-9)
}

func TestSanitizeMetricName(t *testing.T) {
	assert.Equal(t, "cache_op_name_total", sanitizeMetricName("cache.op-name total"))
	assert.Equal(t, "already_clean_1", sanitizeMetricName("already_clean_1"))
}

func TestNoopMetricsClient(t *testing.T) {
	m := NewNoopMetricsClient()

	// Must absorb everything without panicking.
	m.IncrementCounter("c", 1)
	m.IncrementCounterWithLabels("c", 1, map[string]string{"k": "v"})
	m.RecordGauge("g", 1, nil)
	m.RecordHistogram("h", 1, nil)
	m.RecordCacheOperation("op", true, 0.1)
	m.RecordLatency("op", time.Second)
	assert.NoError(t, m.Close())
}
