// Package cache implements a multi-tier cache for multi-resolution text
// embedding vectors.
//
// Embeddings are generated once at several fixed dimensionalities
// (typically 256/512/1024/2048) by a paid provider; regenerating them
// costs real money and latency. The cache keeps previously generated
// vectors across three tiers:
//
//   - Hot: small in-memory store for the most valuable entries
//   - Warm: larger in-memory store
//   - Cold: durable external store behind the ColdStore interface
//
// Placement is decided by a priority score computed from text
// complexity, dimension completeness, regeneration cost, and embedding
// quality. Bounded tiers evict in batches using a configurable policy
// (lru, lfu, cost_aware, or adaptive); evicted entries cascade to the
// next tier down or are dropped. Frequently accessed Warm entries are
// promoted back to Hot.
//
// Retrieval supports partial hits: a request for dimensions {256, 1024}
// against an entry holding {256, 512} reports 256 as found and 1024 as
// missing, so callers can regenerate only what is absent.
//
// The optional lossy quantization codec rounds vector coordinates to a
// fixed number of decimal places before storage. Quantized vectors are
// not bit-identical to their originals; similarity computations against
// them carry a bounded additional error of at most half the
// quantization step per coordinate.
//
// A Cache instance owns all of its in-memory state. Cold-tier failures
// degrade to cache misses and are never surfaced as fatal errors.
package cache
