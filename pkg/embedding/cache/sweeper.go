package cache

import (
	"context"
	"time"
)

// sweepLoop periodically removes expired entries. Lazy expiry on the
// retrieve path is the correctness mechanism; the sweep just keeps
// dead entries from occupying capacity between accesses.
func (c *Cache) sweepLoop() {
	defer close(c.sweepDone)
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			c.Sweep(context.Background())
		}
	}
}

// Sweep removes expired Hot and Warm entries and, when the cold store
// supports bulk expiry, purges expired cold rows. Exposed so operators
// can trigger a sweep on demand.
func (c *Cache) Sweep(ctx context.Context) {
	now := c.nowFn()
	removed := 0
	for _, store := range []*TierStore{c.hot, c.warm} {
		for _, entry := range store.RemoveExpired(now) {
			removed++
			c.promoter.Forget(entry.Key)
			c.stats.expirations.Add(1)
			c.events.OnEvent(newEvent(EventExpire, entry.Key, entry.Tier, now))
		}
	}

	var coldRemoved int64
	if sweeper, ok := c.cold.(ColdSweeper); ok {
		sweepCtx, cancel := context.WithTimeout(ctx, c.config.ColdWriteTimeout)
		defer cancel()
		n, err := sweeper.DeleteExpired(sweepCtx)
		if err != nil {
			c.logger.Warn("cold expiry sweep failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			coldRemoved = n
		}
	}

	if removed > 0 || coldRemoved > 0 {
		c.logger.Debug("ttl sweep complete", map[string]interface{}{
			"resident_removed": removed,
			"cold_removed":     coldRemoved,
		})
		c.metrics.IncrementCounterWithLabels("embedding_cache_swept", float64(removed)+float64(coldRemoved), nil)
	}
}
