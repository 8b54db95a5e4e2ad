package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldPromoteRecentAccesses(t *testing.T) {
	engine := NewPromotionEngine(DefaultPromotionConfig())
	entry := entryWith("k", 0, time.Now(), time.Now(), 0, 0)

	engine.RecordAccess("k")
	engine.RecordAccess("k")
	assert.False(t, engine.ShouldPromote(entry))

	engine.RecordAccess("k")
	assert.True(t, engine.ShouldPromote(entry))
}

func TestShouldPromoteTotalAccessCount(t *testing.T) {
	engine := NewPromotionEngine(DefaultPromotionConfig())

	cold := entryWith("k", 9, time.Now(), time.Now(), 0, 0)
	assert.False(t, engine.ShouldPromote(cold))

	hot := entryWith("k", 10, time.Now(), time.Now(), 0, 0)
	assert.True(t, engine.ShouldPromote(hot))
}

func TestRecentWindowExcludesOldAccesses(t *testing.T) {
	engine := NewPromotionEngine(DefaultPromotionConfig())
	entry := entryWith("k", 0, time.Now(), time.Now(), 0, 0)

	base := time.Now()
	// Two accesses three hours ago, one now: only one is recent.
	engine.nowFn = func() time.Time { return base.Add(-3 * time.Hour) }
	engine.RecordAccess("k")
	engine.RecordAccess("k")
	engine.nowFn = func() time.Time { return base }
	engine.RecordAccess("k")

	assert.False(t, engine.ShouldPromote(entry))
}

func TestRollingWindowPrunes(t *testing.T) {
	engine := NewPromotionEngine(DefaultPromotionConfig())

	base := time.Now()
	engine.nowFn = func() time.Time { return base.Add(-25 * time.Hour) }
	engine.RecordAccess("k")
	engine.nowFn = func() time.Time { return base }
	engine.RecordAccess("k")

	w, ok := engine.windows.Get("k")
	assert.True(t, ok)
	assert.Len(t, w.times, 1)
}

func TestForget(t *testing.T) {
	engine := NewPromotionEngine(DefaultPromotionConfig())
	engine.RecordAccess("k")
	engine.RecordAccess("k")
	engine.RecordAccess("k")
	engine.Forget("k")

	entry := entryWith("k", 0, time.Now(), time.Now(), 0, 0)
	assert.False(t, engine.ShouldPromote(entry))
}

func TestTrackerBounded(t *testing.T) {
	config := DefaultPromotionConfig()
	config.MaxTrackedKeys = 4
	engine := NewPromotionEngine(config)

	for _, k := range []CacheKey{"a", "b", "c", "d", "e", "f"} {
		engine.RecordAccess(k)
	}
	assert.LessOrEqual(t, engine.windows.Len(), 4)
}
