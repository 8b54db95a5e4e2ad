package coldstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/scentmatch/embedcache/pkg/embedding/cache"
	"github.com/scentmatch/embedcache/pkg/observability"
)

// ResilienceConfig tunes the circuit breaker and retry policy wrapped
// around a cold store.
type ResilienceConfig struct {
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration

	// RetryInitialInterval seeds the exponential backoff between
	// attempts; MaxRetries bounds attempts per call.
	RetryInitialInterval time.Duration
	MaxRetries           uint64
}

// DefaultResilienceConfig returns the standard tuning.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold:     5,
		OpenTimeout:          30 * time.Second,
		RetryInitialInterval: 50 * time.Millisecond,
		MaxRetries:           2,
	}
}

// Resilient decorates a ColdStore with a circuit breaker and bounded
// retries. When the breaker is open every call fails fast with
// cache.ErrColdStoreUnavailable, which the cache treats as a miss, so
// a down cold tier costs regeneration, never an outage.
type Resilient struct {
	inner   cache.ColdStore
	breaker *gobreaker.CircuitBreaker
	config  ResilienceConfig
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewResilient wraps the store.
func NewResilient(inner cache.ColdStore, config ResilienceConfig, logger observability.Logger, metrics observability.MetricsClient) *Resilient {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	logger = logger.WithPrefix("coldstore.resilient")

	r := &Resilient{inner: inner, config: config, logger: logger, metrics: metrics}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding_cache_cold_store",
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cold store circuit state change", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
			metrics.IncrementCounterWithLabels("cold_store_circuit_transitions", 1, map[string]string{
				"to": to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			// Misses and poisoned rows are answers, not outages.
			return err == nil || errors.Is(err, cache.ErrColdMiss) || errors.Is(err, cache.ErrSerialization)
		},
	})
	return r
}

func (r *Resilient) Put(ctx context.Context, entry *cache.ColdEntry) error {
	return r.execute(ctx, "put", func() error {
		return r.inner.Put(ctx, entry)
	})
}

func (r *Resilient) Get(ctx context.Context, key cache.CacheKey) (*cache.ColdEntry, error) {
	var entry *cache.ColdEntry
	err := r.execute(ctx, "get", func() error {
		var err error
		entry, err = r.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Resilient) Delete(ctx context.Context, key cache.CacheKey) error {
	return r.execute(ctx, "delete", func() error {
		return r.inner.Delete(ctx, key)
	})
}

func (r *Resilient) BumpAccess(ctx context.Context, key cache.CacheKey) error {
	return r.execute(ctx, "bump_access", func() error {
		return r.inner.BumpAccess(ctx, key)
	})
}

// DeleteExpired passes through when the wrapped store supports bulk
// expiry.
func (r *Resilient) DeleteExpired(ctx context.Context) (int64, error) {
	sweeper, ok := r.inner.(cache.ColdSweeper)
	if !ok {
		return 0, nil
	}
	var removed int64
	err := r.execute(ctx, "delete_expired", func() error {
		var err error
		removed, err = sweeper.DeleteExpired(ctx)
		return err
	})
	return removed, err
}

// execute runs op through the breaker with bounded exponential-backoff
// retries on transient failures.
func (r *Resilient) execute(ctx context.Context, op string, fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(r.config.RetryInitialInterval),
			), r.config.MaxRetries),
			ctx,
		)
		return nil, backoff.Retry(func() error {
			err := fn()
			if err == nil {
				return nil
			}
			if errors.Is(err, cache.ErrColdMiss) || errors.Is(err, cache.ErrSerialization) {
				return backoff.Permanent(err)
			}
			return err
		}, policy)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.metrics.IncrementCounterWithLabels("cold_store_rejected", 1, map[string]string{"operation": op})
		return fmt.Errorf("%w: circuit open", cache.ErrColdStoreUnavailable)
	}
	if errors.Is(err, cache.ErrColdMiss) || errors.Is(err, cache.ErrSerialization) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", cache.ErrColdStoreUnavailable, op, err)
}
