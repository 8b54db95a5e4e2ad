package cache

import (
	"sync/atomic"
	"time"
)

// cacheStats accumulates counters with atomics; snapshots are taken
// lock-free.
type cacheStats struct {
	hits         map[Tier]*atomic.Int64
	latencyNanos map[Tier]*atomic.Int64
	misses       atomic.Int64

	// Cost savings accumulate in micro-cents so they fit an atomic
	// integer without losing fractional cents.
	costSavingsMicroCents atomic.Int64

	evictions   atomic.Int64
	promotions  atomic.Int64
	expirations atomic.Int64
	drops       atomic.Int64
}

func newCacheStats() *cacheStats {
	s := &cacheStats{
		hits:         make(map[Tier]*atomic.Int64, 3),
		latencyNanos: make(map[Tier]*atomic.Int64, 3),
	}
	for _, t := range []Tier{TierHot, TierWarm, TierCold} {
		s.hits[t] = &atomic.Int64{}
		s.latencyNanos[t] = &atomic.Int64{}
	}
	return s
}

func (s *cacheStats) recordHit(tier Tier, latency time.Duration, costCents float64) {
	s.hits[tier].Add(1)
	s.latencyNanos[tier].Add(int64(latency))
	s.costSavingsMicroCents.Add(int64(costCents * 1e6))
}

func (s *cacheStats) recordMiss() {
	s.misses.Add(1)
}

// StorageTotals reports per-tier resident footprint.
type StorageTotals struct {
	HotEntries  int   `json:"hot_entries"`
	HotBytes    int64 `json:"hot_bytes"`
	WarmEntries int   `json:"warm_entries"`
	WarmBytes   int64 `json:"warm_bytes"`
}

// MetricsSnapshot is a point-in-time view of cache performance,
// returned by Cache.Metrics.
type MetricsSnapshot struct {
	// HitRatesByTier is each tier's share of all lookups.
	HitRatesByTier map[Tier]float64 `json:"hit_rates_by_tier"`
	HitsByTier     map[Tier]int64   `json:"hits_by_tier"`
	Misses         int64            `json:"misses"`
	// OverallHitRate is total hits over total lookups.
	OverallHitRate float64 `json:"overall_hit_rate"`

	// AvgLatencyByTier averages the retrieve latency of hits per tier.
	AvgLatencyByTier map[Tier]time.Duration `json:"avg_latency_by_tier"`

	// CostSavingsCents totals the regeneration cost avoided by hits.
	CostSavingsCents float64 `json:"cost_savings_cents"`

	Evictions   int64 `json:"evictions"`
	Promotions  int64 `json:"promotions"`
	Expirations int64 `json:"expirations"`
	Drops       int64 `json:"drops"`

	Storage   StorageTotals `json:"storage"`
	Timestamp time.Time     `json:"timestamp"`
}

func (s *cacheStats) snapshot(hot, warm *TierStore, now time.Time) MetricsSnapshot {
	snap := MetricsSnapshot{
		HitRatesByTier:   make(map[Tier]float64, 3),
		HitsByTier:       make(map[Tier]int64, 3),
		AvgLatencyByTier: make(map[Tier]time.Duration, 3),
		Misses:           s.misses.Load(),
		CostSavingsCents: float64(s.costSavingsMicroCents.Load()) / 1e6,
		Evictions:        s.evictions.Load(),
		Promotions:       s.promotions.Load(),
		Expirations:      s.expirations.Load(),
		Drops:            s.drops.Load(),
		Storage: StorageTotals{
			HotEntries:  hot.Len(),
			HotBytes:    hot.SizeBytes(),
			WarmEntries: warm.Len(),
			WarmBytes:   warm.SizeBytes(),
		},
		Timestamp: now,
	}

	totalHits := int64(0)
	for tier, hits := range s.hits {
		h := hits.Load()
		snap.HitsByTier[tier] = h
		totalHits += h
		if h > 0 {
			snap.AvgLatencyByTier[tier] = time.Duration(s.latencyNanos[tier].Load() / h)
		}
	}

	lookups := totalHits + snap.Misses
	if lookups > 0 {
		snap.OverallHitRate = float64(totalHits) / float64(lookups)
		for tier, h := range snap.HitsByTier {
			snap.HitRatesByTier[tier] = float64(h) / float64(lookups)
		}
	}
	return snap
}
