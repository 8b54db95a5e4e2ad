package cache

import (
	"context"
	"time"
)

// ColdEntry is the durable representation of a cold-tier row. Source
// text is never persisted cold; only the vectors and access statistics
// survive demotion.
type ColdEntry struct {
	Key           CacheKey     `json:"key"`
	Embeddings    EmbeddingSet `json:"embeddings"`
	AccessCount   int64        `json:"access_count"`
	LastAccessed  time.Time    `json:"last_accessed"`
	PriorityScore float64      `json:"priority_score"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

// Expired reports whether the row's TTL has elapsed.
func (e *ColdEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// ColdStore is the durable overflow tier, implemented externally
// (Postgres, Redis). Calls may block; the cache bounds them with
// timeouts and treats every failure as a cache miss, never as fatal.
type ColdStore interface {
	// Put persists the entry, replacing any existing row for the key.
	Put(ctx context.Context, entry *ColdEntry) error
	// Get returns the entry, or ErrColdMiss when absent or expired.
	// Malformed persisted data returns ErrSerialization.
	Get(ctx context.Context, key CacheKey) (*ColdEntry, error)
	// Delete removes the row; deleting an absent key is not an error.
	Delete(ctx context.Context, key CacheKey) error
	// BumpAccess increments access_count and refreshes last_accessed
	// without rewriting the vectors.
	BumpAccess(ctx context.Context, key CacheKey) error
}

// ColdSweeper is optionally implemented by cold stores that can purge
// expired rows in bulk. The TTL sweeper uses it when present.
type ColdSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}
