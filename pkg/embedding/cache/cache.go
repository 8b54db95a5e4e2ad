package cache

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scentmatch/embedcache/pkg/observability"
)

// Cache is the multi-tier embedding cache orchestrator. It owns the
// Hot and Warm in-memory stores and coordinates key derivation,
// placement, eviction cascades, promotion, optional compression, and
// the cold-tier adapter.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	config    *Config
	logger    observability.Logger
	metrics   observability.MetricsClient
	stats     *cacheStats
	keys      *KeyCodec
	scorer    *PriorityScorer
	placement *PlacementPolicy
	promoter  *PromotionEngine
	quantizer *Quantizer
	events    EventSink

	hot  *TierStore
	warm *TierStore
	cold ColdStore

	locks      keyedMutex
	coldFlight singleflight.Group

	nowFn     func() time.Time
	closed    atomic.Bool
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// Option customizes cache construction.
type Option func(*Cache)

// WithLogger sets the structured logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetricsClient sets the metrics sink.
func WithMetricsClient(metrics observability.MetricsClient) Option {
	return func(c *Cache) { c.metrics = metrics }
}

// WithColdStore attaches the durable overflow tier. Without one, the
// cold tier is disabled: low-priority entries are not admitted and
// Warm evictions below the cascade threshold are dropped.
func WithColdStore(store ColdStore) Option {
	return func(c *Cache) { c.cold = store }
}

// WithEventSink attaches a lifecycle event observer.
func WithEventSink(sink EventSink) Option {
	return func(c *Cache) { c.events = sink }
}

// WithNormalizer overrides the text normalizer used for key
// derivation.
func WithNormalizer(normalizer TextNormalizer) Option {
	return func(c *Cache) { c.keys = NewKeyCodec(normalizer) }
}

// New constructs a cache from the configuration. A nil config uses
// DefaultConfig. Invalid configuration fails fast here; nothing else
// returns construction errors.
func New(config *Config, opts ...Option) (*Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	policy, err := NewEvictionPolicy(config.EvictionPolicy)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		config:    config,
		stats:     newCacheStats(),
		keys:      NewKeyCodec(nil),
		scorer:    NewPriorityScorer(config.ScoreWeights, len(config.SupportedDimensions)),
		placement: NewPlacementPolicy(config.Placement),
		promoter:  NewPromotionEngine(config.Promotion),
		events:    NoopEventSink{},
		hot:       NewTierStore(TierHot, config.HotCapacity, config.EvictionFraction, policy),
		warm:      NewTierStore(TierWarm, config.WarmCapacity, config.EvictionFraction, policy),
		nowFn:     time.Now,
	}
	if config.EnableCompression {
		c.quantizer = NewQuantizer(config.QuantizeDecimals)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewNoopLogger()
	}
	c.logger = c.logger.WithPrefix("embedding.cache")
	if c.metrics == nil {
		c.metrics = observability.NewNoopMetricsClient()
	}

	if config.SweepInterval > 0 {
		c.sweepStop = make(chan struct{})
		c.sweepDone = make(chan struct{})
		go c.sweepLoop()
	}

	return c, nil
}

// StoreInput carries a freshly generated embedding into the cache.
// Callers generate first (the cache never calls the provider), then
// store.
type StoreInput struct {
	SourceText          string
	Embeddings          EmbeddingSet
	GenerationCostCents float64
	GenerationTimeMS    int64
	QualityScores       map[int]float64
}

// StoreResult reports where (and whether) the entry landed.
type StoreResult struct {
	Stored           bool     `json:"stored"`
	Key              CacheKey `json:"cache_key"`
	Tier             Tier     `json:"tier,omitempty"`
	StorageSizeBytes int      `json:"storage_size_bytes"`
	EvictedCount     int      `json:"evicted_count"`
}

// Store derives the key, scores the entry, places it in a tier, and
// runs any resulting eviction cascade. Failure to admit is reported as
// Stored=false, never as an error; only a closed cache errors. Note
// that re-storing a resident key whose new score places it cold while
// no cold store is attached drops the entry entirely: placement is
// recomputed from the new inputs, never inherited from the old tier.
func (c *Cache) Store(ctx context.Context, input StoreInput) (*StoreResult, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	ctx, span := observability.StartSpan(ctx, "embedding_cache.store")
	defer span.End()
	start := time.Now()

	embeddings := c.filterSupported(input.Embeddings)
	key, contentHash := c.keys.deriveBoth(input.SourceText)
	result := &StoreResult{Key: key}

	if len(embeddings) == 0 {
		c.logger.Warn("store rejected, no supported dimensions present", map[string]interface{}{
			"cache_key": string(key),
		})
		return result, nil
	}

	// Cold I/O never runs under a key lock: the prior-access read
	// happens before locking (the resident peek just avoids a useless
	// round trip), the cold write after unlocking.
	var coldPrior int64
	if c.cold != nil && !c.resident(key) {
		if prior, err := c.coldGet(ctx, key); err == nil {
			coldPrior = prior.AccessCount
		}
	}

	if c.quantizer != nil {
		embeddings = c.quantizer.Compress(embeddings)
	}
	normalized := c.keys.Normalize(input.SourceText)

	unlock := c.locks.lock(key)
	now := c.nowFn()

	// Re-storing an existing key replaces the entry but carries the
	// access count forward: it is monotone for the logical key.
	priorAccess := c.reclaimResident(key)
	if coldPrior > priorAccess {
		priorAccess = coldPrior
	}

	meta := EntryMetadata{
		SourceText:          normalized,
		ContentHash:         contentHash,
		GenerationCostCents: input.GenerationCostCents,
		QualityScores:       input.QualityScores,
		AccessCount:         priorAccess,
		LastAccessed:        now,
		CreatedAt:           now,
	}
	score := c.scorer.Score(normalized, embeddings, meta)
	tier := c.placement.SelectTier(score, meta.AccessCount)

	entry := &CacheEntry{
		Key:           key,
		Embeddings:    embeddings,
		Metadata:      meta,
		Tier:          tier,
		PriorityScore: score,
	}

	var evicted []*CacheEntry
	if tier == TierHot || tier == TierWarm {
		store := c.hot
		if tier == TierWarm {
			store = c.warm
		}
		entry.Metadata.ExpiresAt = now.Add(c.config.ttlFor(tier))
		evicted = store.Put(entry, now)
		result.Stored = true
		result.Tier = tier
	}
	unlock()

	switch {
	case result.Stored:
		// The key now lives resident; a stale cold row would violate
		// tier uniqueness.
		c.coldDeleteAsync(key)
	case c.cold != nil:
		if err := c.coldPut(entry, now); err != nil {
			c.logger.Warn("cold store put failed, entry not admitted", map[string]interface{}{
				"cache_key": string(key),
				"error":     err.Error(),
			})
		} else {
			result.Stored = true
			result.Tier = TierCold
		}
	default:
		// Not admitted anywhere. Non-fatal for the caller.
	}

	result.EvictedCount = c.cascade(evicted, tier, now)

	if result.Stored {
		result.StorageSizeBytes = entry.SizeBytes()
		c.events.OnEvent(newEvent(EventStore, key, result.Tier, now))
	}
	if input.GenerationTimeMS > 0 {
		c.metrics.RecordHistogram("embedding_cache_generation_time_ms", float64(input.GenerationTimeMS), nil)
	}
	c.metrics.RecordCacheOperation("store", result.Stored, time.Since(start).Seconds())
	return result, nil
}

// RetrieveResult reports a lookup outcome, including which requested
// dimensions were found and which the caller still has to regenerate.
type RetrieveResult struct {
	Hit               bool         `json:"hit"`
	Embeddings        EmbeddingSet `json:"embeddings_by_dimension,omitempty"`
	Tier              Tier         `json:"tier,omitempty"`
	LatencyMS         float64      `json:"latency_ms"`
	DimensionsFound   []int        `json:"dimensions_found"`
	DimensionsMissing []int        `json:"dimensions_missing"`
	CostSavingsCents  float64      `json:"cost_savings_cents"`
}

// Retrieve looks the text up across Hot, Warm, and Cold in order. A
// present key is a hit even when only some requested dimensions are
// stored (partial hit). Expired entries are removed lazily and count
// as misses. Cold-tier problems and timeouts degrade to a miss.
func (c *Cache) Retrieve(ctx context.Context, sourceText string, requestedDims []int) (*RetrieveResult, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	ctx, span := observability.StartSpan(ctx, "embedding_cache.retrieve")
	defer span.End()
	start := time.Now()

	key := c.keys.DeriveKey(sourceText)

	if result, evicted := c.retrieveResident(key, requestedDims, start); result != nil {
		// A promotion may have displaced hot entries; dispose of them
		// now that the key lock is released.
		c.cascade(evicted, TierHot, c.nowFn())
		return result, nil
	}

	if result := c.retrieveCold(ctx, key, requestedDims, start); result != nil {
		return result, nil
	}

	now := c.nowFn()
	c.stats.recordMiss()
	c.events.OnEvent(newEvent(EventMiss, key, "", now))
	c.metrics.RecordCacheOperation("retrieve", false, time.Since(start).Seconds())
	return &RetrieveResult{
		Hit:               false,
		LatencyMS:         float64(time.Since(start).Microseconds()) / 1000.0,
		DimensionsFound:   []int{},
		DimensionsMissing: sortedCopy(requestedDims),
	}, nil
}

// Metrics returns a point-in-time performance snapshot.
func (c *Cache) Metrics() MetricsSnapshot {
	return c.stats.snapshot(c.hot, c.warm, c.nowFn())
}

// Close stops the background sweeper. The cache rejects operations
// afterwards.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.sweepStop != nil {
		close(c.sweepStop)
		<-c.sweepDone
	}
	return nil
}

// retrieveResident probes Hot then Warm under the key lock, handling
// lazy expiry, access-stat updates, score refresh, and promotion. A nil
// result means not resident. Entries displaced by a promotion are
// returned for the caller to cascade once the key lock is released.
func (c *Cache) retrieveResident(key CacheKey, requestedDims []int, start time.Time) (*RetrieveResult, []*CacheEntry) {
	unlock := c.locks.lock(key)
	defer unlock()

	now := c.nowFn()
	for _, store := range []*TierStore{c.hot, c.warm} {
		entry, ok := store.Get(key)
		if !ok {
			continue
		}
		if entry.Expired(now) {
			store.Remove(key)
			c.promoter.Forget(key)
			c.stats.expirations.Add(1)
			c.events.OnEvent(newEvent(EventExpire, key, entry.Tier, now))
			return nil, nil
		}

		store.Update(key, func(e *CacheEntry) {
			e.Metadata.AccessCount++
			e.Metadata.LastAccessed = now
			e.PriorityScore = c.scorer.Score(e.Metadata.SourceText, e.Embeddings, e.Metadata)
		})
		c.promoter.RecordAccess(key)

		tier := entry.Tier
		var displaced []*CacheEntry
		if tier == TierWarm && c.promoter.ShouldPromote(entry) {
			tier, displaced = c.promote(entry, now)
		}

		result := c.buildHit(entry.Embeddings, tier, entry.Metadata.GenerationCostCents, requestedDims, start)
		c.stats.recordHit(tier, time.Since(start), entry.Metadata.GenerationCostCents)
		c.events.OnEvent(newEvent(EventHit, key, tier, now))
		c.metrics.RecordCacheOperation("retrieve", true, time.Since(start).Seconds())
		return result, displaced
	}
	return nil, nil
}

// retrieveCold probes the cold tier without holding the key lock.
// Concurrent lookups for the same key collapse into one store call.
// Nil means miss (including unavailable or timed-out cold storage).
func (c *Cache) retrieveCold(ctx context.Context, key CacheKey, requestedDims []int, start time.Time) *RetrieveResult {
	if c.cold == nil {
		return nil
	}

	entry, err := c.coldGet(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, ErrColdMiss):
		case errors.Is(err, ErrSerialization):
			// Poisoned row: remove it so the sweep does not keep
			// tripping over it.
			c.logger.Warn("malformed cold entry, scheduling delete", map[string]interface{}{
				"cache_key": string(key),
			})
			c.coldDeleteAsync(key)
		default:
			c.logger.Warn("cold store unavailable, treating as miss", map[string]interface{}{
				"cache_key": string(key),
				"error":     err.Error(),
			})
			c.metrics.IncrementCounterWithLabels("embedding_cache_cold_errors", 1, nil)
		}
		return nil
	}

	now := c.nowFn()
	if entry.Expired(now) {
		c.coldDeleteAsync(key)
		return nil
	}

	// Cold hits are served in place. There is no automatic promotion
	// from cold: only a later Store call re-places the key, using the
	// access count bumped here.
	c.bumpColdAccessAsync(key)

	// The cold schema does not persist generation cost, so cold hits
	// contribute no cost-savings accounting.
	result := c.buildHit(entry.Embeddings, TierCold, 0, requestedDims, start)
	c.stats.recordHit(TierCold, time.Since(start), 0)
	c.events.OnEvent(newEvent(EventHit, key, TierCold, now))
	c.metrics.RecordCacheOperation("retrieve", true, time.Since(start).Seconds())
	return result
}

// promote transfers a Warm entry to Hot: remove, recompute TTL for the
// destination, insert. Runs under the entry's key lock; displaced hot
// entries are returned for the caller to cascade after unlocking.
func (c *Cache) promote(entry *CacheEntry, now time.Time) (Tier, []*CacheEntry) {
	if _, ok := c.warm.Remove(entry.Key); !ok {
		return entry.Tier, nil
	}
	entry.Metadata.ExpiresAt = now.Add(c.config.HotTTL)
	evicted := c.hot.Put(entry, now)

	c.stats.promotions.Add(1)
	c.events.OnEvent(newEvent(EventPromote, entry.Key, TierHot, now))
	c.metrics.IncrementCounterWithLabels("embedding_cache_promotions", 1, nil)
	c.logger.Debug("promoted entry to hot tier", map[string]interface{}{
		"cache_key":    string(entry.Key),
		"access_count": entry.Metadata.AccessCount,
	})
	return TierHot, evicted
}

// cascade disposes of evicted entries: offer to the next tier down
// when the priority score clears that tier's threshold, otherwise drop
// permanently. Insertions into the destination may evict further
// entries; those are disposed of too. Returns the number of entries
// evicted.
//
// Must be called with no key lock held: each evicted key's disposal
// acquires that key's own lock, so demotion serializes with concurrent
// Store and Retrieve of the same key, and a key evicted and re-stored
// in the gap is never re-inserted from the stale copy. Cold writes
// happen after the key lock is released; the resident tiers shadow any
// cold row the write races against.
func (c *Cache) cascade(evicted []*CacheEntry, from Tier, now time.Time) int {
	type pending struct {
		entry *CacheEntry
		from  Tier
	}
	queue := make([]pending, 0, len(evicted))
	for _, entry := range evicted {
		queue = append(queue, pending{entry: entry, from: from})
	}

	count := 0
	for len(queue) > 0 {
		entry, from := queue[0].entry, queue[0].from
		queue = queue[1:]

		count++
		c.stats.evictions.Add(1)
		c.events.OnEvent(newEvent(EventEvict, entry.Key, from, now))
		c.metrics.IncrementCounterWithLabels("embedding_cache_evictions", 1, map[string]string{"tier": string(from)})

		unlock := c.locks.lock(entry.Key)

		// A concurrent Store may have re-admitted the key while this
		// copy sat in the eviction batch. The copy is stale then, and
		// re-inserting it would leave the key resident in two tiers.
		if c.resident(entry.Key) {
			unlock()
			continue
		}

		demote := false
		switch {
		case from == TierHot && entry.PriorityScore > c.config.Cascade.WarmScore:
			entry.Metadata.ExpiresAt = now.Add(c.config.WarmTTL)
			for _, more := range c.warm.Put(entry, now) {
				queue = append(queue, pending{entry: more, from: TierWarm})
			}
		case from == TierWarm && entry.PriorityScore > c.config.Cascade.ColdScore && c.cold != nil:
			c.promoter.Forget(entry.Key)
			demote = true
		default:
			c.stats.drops.Add(1)
			c.promoter.Forget(entry.Key)
			c.events.OnEvent(newEvent(EventDrop, entry.Key, from, now))
		}
		unlock()

		if demote {
			if err := c.coldPut(entry, now); err != nil {
				c.logger.Warn("demotion to cold failed, dropping entry", map[string]interface{}{
					"cache_key": string(entry.Key),
					"error":     err.Error(),
				})
			}
		}
	}
	return count
}

// resident reports whether the key currently lives in a resident tier.
func (c *Cache) resident(key CacheKey) bool {
	if _, ok := c.hot.Get(key); ok {
		return true
	}
	_, ok := c.warm.Get(key)
	return ok
}

// reclaimResident removes any resident copy of the key and returns its
// access count, so a re-store replaces rather than duplicates.
func (c *Cache) reclaimResident(key CacheKey) int64 {
	var count int64
	if old, ok := c.hot.Remove(key); ok {
		count = old.Metadata.AccessCount
	}
	if old, ok := c.warm.Remove(key); ok && old.Metadata.AccessCount > count {
		count = old.Metadata.AccessCount
	}
	return count
}

// buildHit assembles a hit result, intersecting requested and stored
// dimensions. An empty request returns every stored dimension.
func (c *Cache) buildHit(stored EmbeddingSet, tier Tier, costCents float64, requestedDims []int, start time.Time) *RetrieveResult {
	if len(requestedDims) == 0 {
		requestedDims = stored.Dimensions()
	}

	found := make(EmbeddingSet)
	foundDims := make([]int, 0, len(requestedDims))
	missingDims := make([]int, 0)
	for _, dim := range sortedCopy(requestedDims) {
		if vec, ok := stored[dim]; ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			found[dim] = out
			foundDims = append(foundDims, dim)
		} else {
			missingDims = append(missingDims, dim)
		}
	}

	return &RetrieveResult{
		Hit:               true,
		Embeddings:        found,
		Tier:              tier,
		LatencyMS:         float64(time.Since(start).Microseconds()) / 1000.0,
		DimensionsFound:   foundDims,
		DimensionsMissing: missingDims,
		CostSavingsCents:  costCents,
	}
}

// coldGet fetches from the cold tier under the configured read
// timeout, respecting the caller's context.
func (c *Cache) coldGet(ctx context.Context, key CacheKey) (*ColdEntry, error) {
	v, err, _ := c.coldFlight.Do(string(key), func() (interface{}, error) {
		getCtx, cancel := context.WithTimeout(ctx, c.config.ColdReadTimeout)
		defer cancel()
		return c.cold.Get(getCtx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ColdEntry), nil
}

// coldPut persists an entry cold with the source text redacted, under
// the configured write timeout.
func (c *Cache) coldPut(entry *CacheEntry, now time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.ColdWriteTimeout)
	defer cancel()
	return c.cold.Put(ctx, &ColdEntry{
		Key:           entry.Key,
		Embeddings:    entry.Embeddings,
		AccessCount:   entry.Metadata.AccessCount,
		LastAccessed:  entry.Metadata.LastAccessed,
		PriorityScore: entry.PriorityScore,
		ExpiresAt:     now.Add(c.config.ColdTTL),
	})
}

func (c *Cache) coldDeleteAsync(key CacheKey) {
	if c.cold == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ColdWriteTimeout)
		defer cancel()
		if err := c.cold.Delete(ctx, key); err != nil {
			c.logger.Debug("cold delete failed", map[string]interface{}{
				"cache_key": string(key),
				"error":     err.Error(),
			})
		}
	}()
}

func (c *Cache) bumpColdAccessAsync(key CacheKey) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ColdWriteTimeout)
		defer cancel()
		if err := c.cold.BumpAccess(ctx, key); err != nil {
			c.logger.Debug("cold access bump failed", map[string]interface{}{
				"cache_key": string(key),
				"error":     err.Error(),
			})
		}
	}()
}

// filterSupported drops dimensions the cache is not configured for and
// vectors whose length does not match their declared dimension.
func (c *Cache) filterSupported(set EmbeddingSet) EmbeddingSet {
	out := make(EmbeddingSet, len(set))
	for dim, vec := range set {
		if !c.config.supportsDimension(dim) || len(vec) != dim {
			c.logger.Debug("dropping unsupported embedding dimension", map[string]interface{}{
				"dimension": dim,
				"length":    len(vec),
			})
			continue
		}
		out[dim] = vec
	}
	return out
}

func sortedCopy(dims []int) []int {
	out := make([]int, len(dims))
	copy(out, dims)
	sort.Ints(out)
	return out
}
