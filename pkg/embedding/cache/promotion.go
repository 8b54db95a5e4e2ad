package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PromotionConfig tunes when a Warm entry is moved to Hot.
type PromotionConfig struct {
	// Window is how long access timestamps are retained per key.
	Window time.Duration `mapstructure:"window"`
	// RecentWindow and RecentThreshold promote a key accessed at least
	// RecentThreshold times within RecentWindow.
	RecentWindow    time.Duration `mapstructure:"recent_window"`
	RecentThreshold int           `mapstructure:"recent_threshold"`
	// TotalThreshold promotes a key once its lifetime access count
	// reaches this value regardless of recency.
	TotalThreshold int64 `mapstructure:"total_threshold"`
	// MaxTrackedKeys bounds the tracker's memory; least recently
	// touched windows are dropped first.
	MaxTrackedKeys int `mapstructure:"max_tracked_keys"`
}

// DefaultPromotionConfig returns the standard promotion tuning.
func DefaultPromotionConfig() PromotionConfig {
	return PromotionConfig{
		Window:          24 * time.Hour,
		RecentWindow:    time.Hour,
		RecentThreshold: 3,
		TotalThreshold:  10,
		MaxTrackedKeys:  10000,
	}
}

// accessWindow holds the pruned rolling list of access times for one
// key.
type accessWindow struct {
	mu    sync.Mutex
	times []time.Time
}

// PromotionEngine tracks per-key access timestamps in a rolling window
// and decides when a Warm entry has earned a Hot slot. Safe for
// concurrent use.
type PromotionEngine struct {
	config  PromotionConfig
	windows *expirable.LRU[CacheKey, *accessWindow]
	nowFn   func() time.Time
}

// NewPromotionEngine creates an engine with the given tuning.
func NewPromotionEngine(config PromotionConfig) *PromotionEngine {
	return &PromotionEngine{
		config:  config,
		windows: expirable.NewLRU[CacheKey, *accessWindow](config.MaxTrackedKeys, nil, config.Window),
		nowFn:   time.Now,
	}
}

// RecordAccess appends an access timestamp for the key and prunes
// entries older than the rolling window.
func (p *PromotionEngine) RecordAccess(key CacheKey) {
	now := p.nowFn()
	w, ok := p.windows.Get(key)
	if !ok {
		w = &accessWindow{}
		p.windows.Add(key, w)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-p.config.Window)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = append(kept, now)
}

// ShouldPromote reports whether the entry has crossed either promotion
// trigger: enough recent accesses, or a high lifetime access count.
func (p *PromotionEngine) ShouldPromote(entry *CacheEntry) bool {
	if entry.Metadata.AccessCount >= p.config.TotalThreshold {
		return true
	}
	return p.recentAccesses(entry.Key) >= p.config.RecentThreshold
}

// Forget drops tracking state for a key, used when the entry leaves the
// resident tiers entirely.
func (p *PromotionEngine) Forget(key CacheKey) {
	p.windows.Remove(key)
}

func (p *PromotionEngine) recentAccesses(key CacheKey) int {
	w, ok := p.windows.Get(key)
	if !ok {
		return 0
	}
	cutoff := p.nowFn().Add(-p.config.RecentWindow)
	w.mu.Lock()
	defer w.mu.Unlock()
	count := 0
	for _, t := range w.times {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
