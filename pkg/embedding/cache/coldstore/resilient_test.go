package coldstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scentmatch/embedcache/pkg/embedding/cache"
)

// scriptedStore returns a scripted error per call, then succeeds.
type scriptedStore struct {
	errs  []error
	calls int
}

func (s *scriptedStore) next() error {
	err := error(nil)
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	return err
}

func (s *scriptedStore) Put(ctx context.Context, entry *cache.ColdEntry) error {
	return s.next()
}

func (s *scriptedStore) Get(ctx context.Context, key cache.CacheKey) (*cache.ColdEntry, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return &cache.ColdEntry{Key: key, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *scriptedStore) Delete(ctx context.Context, key cache.CacheKey) error {
	return s.next()
}

func (s *scriptedStore) BumpAccess(ctx context.Context, key cache.CacheKey) error {
	return s.next()
}

func fastResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold:     2,
		OpenTimeout:          time.Minute,
		RetryInitialInterval: time.Millisecond,
		MaxRetries:           0,
	}
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &scriptedStore{errs: []error{
		fmt.Errorf("connection reset"),
		fmt.Errorf("connection reset"),
	}}
	config := fastResilienceConfig()
	config.MaxRetries = 2
	r := NewResilient(inner, config, nil, nil)

	got, err := r.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, cache.CacheKey("abc123"), got.Key)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientMissIsNotRetried(t *testing.T) {
	inner := &scriptedStore{errs: []error{cache.ErrColdMiss}}
	config := fastResilienceConfig()
	config.MaxRetries = 5
	r := NewResilient(inner, config, nil, nil)

	_, err := r.Get(context.Background(), "abc123")
	assert.ErrorIs(t, err, cache.ErrColdMiss)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientSerializationErrorPassesThrough(t *testing.T) {
	inner := &scriptedStore{errs: []error{
		fmt.Errorf("%w: corrupt row", cache.ErrSerialization),
	}}
	r := NewResilient(inner, fastResilienceConfig(), nil, nil)

	_, err := r.Get(context.Background(), "abc123")
	assert.ErrorIs(t, err, cache.ErrSerialization)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedStore{errs: []error{
		fmt.Errorf("down"),
		fmt.Errorf("down"),
		fmt.Errorf("down"),
	}}
	r := NewResilient(inner, fastResilienceConfig(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := r.Put(ctx, &cache.ColdEntry{Key: "abc123"})
		assert.ErrorIs(t, err, cache.ErrColdStoreUnavailable)
	}
	require.Equal(t, 2, inner.calls)

	// Breaker is open: the store is no longer consulted.
	err := r.Put(ctx, &cache.ColdEntry{Key: "abc123"})
	assert.ErrorIs(t, err, cache.ErrColdStoreUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestResilientMissesDoNotTripBreaker(t *testing.T) {
	inner := &scriptedStore{errs: []error{
		cache.ErrColdMiss, cache.ErrColdMiss, cache.ErrColdMiss, cache.ErrColdMiss,
	}}
	r := NewResilient(inner, fastResilienceConfig(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := r.Get(ctx, "abc123")
		assert.ErrorIs(t, err, cache.ErrColdMiss)
	}

	// Still closed: the fifth call reaches the store and succeeds.
	got, err := r.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, cache.CacheKey("abc123"), got.Key)
	assert.Equal(t, 5, inner.calls)
}

// sweepableStore adds bulk expiry to the scripted store.
type sweepableStore struct {
	scriptedStore
	removed int64
}

func (s *sweepableStore) DeleteExpired(ctx context.Context) (int64, error) {
	if err := s.next(); err != nil {
		return 0, err
	}
	return s.removed, nil
}

func TestResilientDeleteExpired(t *testing.T) {
	t.Run("passes through to sweepable stores", func(t *testing.T) {
		inner := &sweepableStore{removed: 12}
		r := NewResilient(inner, fastResilienceConfig(), nil, nil)

		removed, err := r.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(12), removed)
	})

	t.Run("no-op for plain stores", func(t *testing.T) {
		r := NewResilient(&scriptedStore{}, fastResilienceConfig(), nil, nil)

		removed, err := r.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}
