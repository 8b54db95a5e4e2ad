package coldstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scentmatch/embedcache/pkg/embedding/cache"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, nil), mr
}

func coldVector(dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i%19)*0.05 - 0.45
	}
	return vec
}

func coldEntry(key string, dims ...int) *cache.ColdEntry {
	embeddings := make(cache.EmbeddingSet, len(dims))
	for _, dim := range dims {
		embeddings[dim] = coldVector(dim)
	}
	return &cache.ColdEntry{
		Key:           cache.CacheKey(key),
		Embeddings:    embeddings,
		AccessCount:   3,
		LastAccessed:  time.Now().Add(-time.Hour).Truncate(time.Second),
		PriorityScore: 0.27,
		ExpiresAt:     time.Now().Add(24 * time.Hour).Truncate(time.Second),
	}
}

func TestRedisStorePutGet(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	// 1024 floats serialize well past the gzip threshold.
	entry := coldEntry("abc123", 256, 1024)
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, entry.Embeddings, got.Embeddings)
	assert.Equal(t, entry.AccessCount, got.AccessCount)
	assert.Equal(t, entry.LastAccessed.Unix(), got.LastAccessed.Unix())
	assert.InDelta(t, entry.PriorityScore, got.PriorityScore, 1e-9)
	assert.Equal(t, entry.ExpiresAt.Unix(), got.ExpiresAt.Unix())
}

func TestRedisStorePutReplaces(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	first := coldEntry("abc123", 256)
	require.NoError(t, store.Put(ctx, first))

	second := coldEntry("abc123", 512)
	second.AccessCount = 9
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, []int{512}, got.Embeddings.Dimensions())
	assert.Equal(t, int64(9), got.AccessCount)
}

func TestRedisStoreGetMiss(t *testing.T) {
	store, _ := setupRedisStore(t)
	_, err := store.Get(context.Background(), "nothere")
	assert.ErrorIs(t, err, cache.ErrColdMiss)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	entry := coldEntry("abc123", 256)
	entry.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, store.Put(ctx, entry))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, entry.Key)
	assert.ErrorIs(t, err, cache.ErrColdMiss)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	entry := coldEntry("abc123", 256)
	require.NoError(t, store.Put(ctx, entry))
	require.NoError(t, store.Delete(ctx, entry.Key))

	_, err := store.Get(ctx, entry.Key)
	assert.ErrorIs(t, err, cache.ErrColdMiss)

	// Deleting an absent key is fine.
	assert.NoError(t, store.Delete(ctx, "nothere"))
}

func TestRedisStoreBumpAccess(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	entry := coldEntry("abc123", 256)
	require.NoError(t, store.Put(ctx, entry))
	require.NoError(t, store.BumpAccess(ctx, entry.Key))

	got, err := store.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, entry.AccessCount+1, got.AccessCount)
	assert.True(t, got.LastAccessed.After(entry.LastAccessed))

	// Vectors survive the bump untouched.
	assert.Equal(t, entry.Embeddings, got.Embeddings)

	// Absent key is a no-op, not an error.
	assert.NoError(t, store.BumpAccess(ctx, "nothere"))
}

func TestRedisStoreMalformedPayload(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	key := "embedcache:cold:poisoned"
	mr.HSet(key, fieldPayload, "{not json")
	mr.HSet(key, fieldExpiresAt, "9999999999")

	_, err := store.Get(ctx, "poisoned")
	assert.ErrorIs(t, err, cache.ErrSerialization)
}

func TestRedisStoreMalformedExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)

	key := "embedcache:cold:poisoned"
	mr.HSet(key, fieldPayload, `{"2":[0.1,0.2]}`)
	mr.HSet(key, fieldExpiresAt, "not-a-timestamp")

	_, err := store.Get(context.Background(), "poisoned")
	assert.ErrorIs(t, err, cache.ErrSerialization)
}

func TestEncodePayloadCompression(t *testing.T) {
	t.Run("small payloads stay raw", func(t *testing.T) {
		raw, err := encodePayload(cache.EmbeddingSet{2: {0.1, 0.2}})
		require.NoError(t, err)
		assert.False(t, isGzipped(raw))
	})

	t.Run("large payloads compress", func(t *testing.T) {
		raw, err := encodePayload(cache.EmbeddingSet{1024: coldVector(1024)})
		require.NoError(t, err)
		assert.True(t, isGzipped(raw))
	})

	t.Run("round trip", func(t *testing.T) {
		set := cache.EmbeddingSet{256: coldVector(256), 1024: coldVector(1024)}
		raw, err := encodePayload(set)
		require.NoError(t, err)
		got, err := decodePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, set, got)
	})
}

func TestDecodePayloadRejectsEmpty(t *testing.T) {
	_, err := decodePayload([]byte(`{}`))
	assert.ErrorIs(t, err, cache.ErrSerialization)
}
