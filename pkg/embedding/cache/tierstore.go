package cache

import (
	"sort"
	"sync"
	"time"
)

// TierStore is a bounded in-memory key→entry map owning its resident
// entries exclusively. Insertion above capacity evicts the
// lowest-retention-value entries first, in batches, before admitting
// the new entry.
type TierStore struct {
	tier          Tier
	capacity      int
	evictFraction float64
	policy        EvictionPolicy

	mu      sync.RWMutex
	entries map[CacheKey]*CacheEntry
	bytes   int64
}

// NewTierStore creates a bounded store for one tier.
func NewTierStore(tier Tier, capacity int, evictFraction float64, policy EvictionPolicy) *TierStore {
	return &TierStore{
		tier:          tier,
		capacity:      capacity,
		evictFraction: evictFraction,
		policy:        policy,
		entries:       make(map[CacheKey]*CacheEntry),
	}
}

// Get returns the resident entry for the key, if any. The returned
// pointer is shared; mutations must go through the owning Cache's
// per-key lock.
func (s *TierStore) Get(key CacheKey) (*CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put admits the entry, evicting first if the store is at capacity.
// The evicted entries are returned to the caller, which owns them from
// that point (eviction cascade). Replacing an existing key never
// triggers eviction.
func (s *TierStore) Put(entry *CacheEntry, now time.Time) []*CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[entry.Key]; ok {
		s.bytes -= int64(old.SizeBytes())
		s.entries[entry.Key] = entry
		s.bytes += int64(entry.SizeBytes())
		return nil
	}

	var evicted []*CacheEntry
	if len(s.entries) >= s.capacity {
		evicted = s.evictLocked(now)
	}

	entry.Tier = s.tier
	s.entries[entry.Key] = entry
	s.bytes += int64(entry.SizeBytes())
	return evicted
}

// Update runs fn on the resident entry under the store lock, so field
// mutations cannot race with eviction ranking. Returns false when the
// key is not resident.
func (s *TierStore) Update(key CacheKey, fn func(*CacheEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Remove takes the entry out of the store and transfers ownership to
// the caller.
func (s *TierStore) Remove(key CacheKey) (*CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	s.bytes -= int64(e.SizeBytes())
	return e, true
}

// RemoveExpired removes and returns every entry whose TTL has elapsed.
func (s *TierStore) RemoveExpired(now time.Time) []*CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*CacheEntry
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			s.bytes -= int64(e.SizeBytes())
			expired = append(expired, e)
		}
	}
	return expired
}

// Len returns the resident entry count.
func (s *TierStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SizeBytes returns the approximate resident footprint.
func (s *TierStore) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// evictLocked removes the batch of lowest-retention-value entries.
// Batch size is a fraction of capacity (at least one) so eviction cost
// amortizes across many insertions.
func (s *TierStore) evictLocked(now time.Time) []*CacheEntry {
	batch := int(float64(s.capacity) * s.evictFraction)
	if batch < 1 {
		batch = 1
	}
	// Never evict more than needed to get under capacity by one slot.
	if over := len(s.entries) - s.capacity + 1; batch < over {
		batch = over
	}

	type ranked struct {
		entry *CacheEntry
		value float64
	}
	candidates := make([]ranked, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, ranked{entry: e, value: s.policy.RetentionValue(e, now)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].value < candidates[j].value
	})

	if batch > len(candidates) {
		batch = len(candidates)
	}
	evicted := make([]*CacheEntry, 0, batch)
	for _, c := range candidates[:batch] {
		delete(s.entries, c.entry.Key)
		s.bytes -= int64(c.entry.SizeBytes())
		evicted = append(evicted, c.entry)
	}
	return evicted
}
