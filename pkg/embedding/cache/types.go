package cache

import (
	"sort"
	"time"
)

// Tier identifies which store currently owns an entry.
type Tier string

// Cache tiers, ordered fastest/smallest to slowest/largest.
const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// CacheKey is the fixed-width content-hash identity of a cached text.
// It is the sole lookup key across all tiers.
type CacheKey string

// EmbeddingSet maps a dimension (256, 512, ...) to a vector of that
// length. An entry may hold any non-empty subset of the supported
// dimensions; each dimension is independently present or absent.
type EmbeddingSet map[int][]float32

// Dimensions returns the dimensions present in the set, ascending.
func (s EmbeddingSet) Dimensions() []int {
	dims := make([]int, 0, len(s))
	for d := range s {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	return dims
}

// Clone returns a deep copy of the set.
func (s EmbeddingSet) Clone() EmbeddingSet {
	out := make(EmbeddingSet, len(s))
	for d, v := range s {
		vec := make([]float32, len(v))
		copy(vec, v)
		out[d] = vec
	}
	return out
}

// SizeBytes approximates the in-memory footprint of the vectors.
func (s EmbeddingSet) SizeBytes() int {
	total := 0
	for _, v := range s {
		total += 4 * len(v)
	}
	return total
}

// EntryMetadata carries everything known about a cached embedding
// beyond the vectors themselves.
type EntryMetadata struct {
	// SourceText is the normalized input text. Cleared when the entry
	// is demoted to the cold tier.
	SourceText string `json:"source_text,omitempty"`
	// ContentHash is the full (untruncated) content hash of the text.
	ContentHash string `json:"content_hash"`
	// GenerationCostCents is what the provider charged to produce the
	// embeddings.
	GenerationCostCents float64 `json:"generation_cost_cents"`
	// QualityScores maps dimension to the provider-reported quality of
	// that truncation, each in [0,1].
	QualityScores map[int]float64 `json:"quality_scores,omitempty"`

	AccessCount  int64     `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CacheEntry is a resident cache record. An entry is owned by exactly
// one tier store at a time; moving tiers transfers ownership.
type CacheEntry struct {
	Key           CacheKey      `json:"key"`
	Embeddings    EmbeddingSet  `json:"embeddings"`
	Metadata      EntryMetadata `json:"metadata"`
	Tier          Tier          `json:"tier"`
	PriorityScore float64       `json:"priority_score"`
}

// Expired reports whether the entry's TTL has elapsed at the given
// instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.Metadata.ExpiresAt.IsZero() && !now.Before(e.Metadata.ExpiresAt)
}

// SizeBytes approximates the entry's in-memory footprint.
func (e *CacheEntry) SizeBytes() int {
	return e.Embeddings.SizeBytes() + len(e.Metadata.SourceText) + len(e.Key)
}

// meanQuality averages the per-dimension quality scores, zero when none
// are recorded.
func meanQuality(scores map[int]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range scores {
		sum += q
	}
	return sum / float64(len(scores))
}
