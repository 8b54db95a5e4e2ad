package coldstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"

	"github.com/scentmatch/embedcache/pkg/embedding/cache"
	"github.com/scentmatch/embedcache/pkg/observability"
)

const (
	defaultRedisPrefix = "embedcache:cold:"

	// compressMinBytes is the payload size below which gzip is skipped.
	compressMinBytes = 1024

	// maxPayloadBytes caps decompression output against corrupt or
	// hostile payloads.
	maxPayloadBytes = 64 * 1024 * 1024
)

// Hash field names of a cold row.
const (
	fieldPayload      = "payload"
	fieldAccessCount  = "access_count"
	fieldLastAccessed = "last_accessed"
	fieldPriority     = "priority_score"
	fieldExpiresAt    = "expires_at"
)

// RedisStore persists cold entries as Redis hashes. Vector payloads
// are JSON, gzipped above a size threshold; row expiry uses Redis
// native key TTL plus an expires_at field as belt and braces.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
}

// NewRedisStore creates a cold store over the given client.
func NewRedisStore(client *redis.Client, logger observability.Logger) *RedisStore {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
		logger: logger.WithPrefix("coldstore.redis"),
	}
}

// Put persists the entry, replacing any existing row.
func (s *RedisStore) Put(ctx context.Context, entry *cache.ColdEntry) error {
	payload, err := encodePayload(entry.Embeddings)
	if err != nil {
		return fmt.Errorf("encode cold payload: %w", err)
	}

	key := s.prefix + string(entry.Key)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		fieldPayload:      payload,
		fieldAccessCount:  entry.AccessCount,
		fieldLastAccessed: entry.LastAccessed.Unix(),
		fieldPriority:     entry.PriorityScore,
		fieldExpiresAt:    entry.ExpiresAt.Unix(),
	})
	pipe.ExpireAt(ctx, key, entry.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Get returns the entry, or cache.ErrColdMiss when absent or expired.
func (s *RedisStore) Get(ctx context.Context, key cache.CacheKey) (*cache.ColdEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+string(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, cache.ErrColdMiss
	}

	expiresUnix, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expires_at %q", cache.ErrSerialization, fields[fieldExpiresAt])
	}
	expiresAt := time.Unix(expiresUnix, 0)
	if !time.Now().Before(expiresAt) {
		return nil, cache.ErrColdMiss
	}

	embeddings, err := decodePayload([]byte(fields[fieldPayload]))
	if err != nil {
		return nil, err
	}

	accessCount, _ := strconv.ParseInt(fields[fieldAccessCount], 10, 64)
	lastAccessedUnix, _ := strconv.ParseInt(fields[fieldLastAccessed], 10, 64)
	priority, _ := strconv.ParseFloat(fields[fieldPriority], 64)

	return &cache.ColdEntry{
		Key:           key,
		Embeddings:    embeddings,
		AccessCount:   accessCount,
		LastAccessed:  time.Unix(lastAccessedUnix, 0),
		PriorityScore: priority,
		ExpiresAt:     expiresAt,
	}, nil
}

// Delete removes the row. Absent keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, key cache.CacheKey) error {
	if err := s.client.Del(ctx, s.prefix+string(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// BumpAccess increments access_count and refreshes last_accessed
// without rewriting the payload. A no-op for absent keys.
func (s *RedisStore) BumpAccess(ctx context.Context, key cache.CacheKey) error {
	fullKey := s.prefix + string(key)
	exists, err := s.client.Exists(ctx, fullKey).Result()
	if err != nil {
		return fmt.Errorf("redis bump access: %w", err)
	}
	if exists == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, fullKey, fieldAccessCount, 1)
	pipe.HSet(ctx, fullKey, fieldLastAccessed, time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis bump access: %w", err)
	}
	return nil
}

// encodePayload serializes embeddings as JSON, gzipping when large
// enough to be worth it.
func encodePayload(embeddings cache.EmbeddingSet) ([]byte, error) {
	raw, err := json.Marshal(embeddings)
	if err != nil {
		return nil, err
	}
	if len(raw) < compressMinBytes {
		return raw, nil
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(raw); err != nil {
		_ = gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if buf.Len() >= len(raw) {
		return raw, nil
	}
	return buf.Bytes(), nil
}

// decodePayload reverses encodePayload, detecting gzip by its magic
// bytes. Malformed data maps to cache.ErrSerialization.
func decodePayload(data []byte) (cache.EmbeddingSet, error) {
	if isGzipped(data) {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cache.ErrSerialization, err)
		}
		defer func() { _ = gz.Close() }()
		data, err = io.ReadAll(io.LimitReader(gz, maxPayloadBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cache.ErrSerialization, err)
		}
	}

	var embeddings cache.EmbeddingSet
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrSerialization, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: empty embedding payload", cache.ErrSerialization)
	}
	return embeddings, nil
}

func isGzipped(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
