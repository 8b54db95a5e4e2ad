package cache

import (
	"fmt"
	"time"
)

// Eviction policy names accepted in configuration.
const (
	PolicyLRU       = "lru"
	PolicyLFU       = "lfu"
	PolicyCostAware = "cost_aware"
	PolicyAdaptive  = "adaptive"
)

// EvictionPolicy ranks resident entries by retention value. Higher
// value means more worth keeping; the lowest-valued entries are evicted
// first.
type EvictionPolicy interface {
	Name() string
	RetentionValue(e *CacheEntry, now time.Time) float64
}

// NewEvictionPolicy builds the named policy.
func NewEvictionPolicy(name string) (EvictionPolicy, error) {
	switch name {
	case PolicyLRU:
		return lruPolicy{}, nil
	case PolicyLFU:
		return lfuPolicy{}, nil
	case PolicyCostAware:
		return costAwarePolicy{}, nil
	case PolicyAdaptive, "":
		return adaptivePolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidConfig, name)
	}
}

// lruPolicy keeps recently accessed entries: older access is lower
// value.
type lruPolicy struct{}

func (lruPolicy) Name() string { return PolicyLRU }

func (lruPolicy) RetentionValue(e *CacheEntry, now time.Time) float64 {
	return float64(e.Metadata.LastAccessed.UnixNano())
}

// lfuPolicy keeps frequently accessed entries.
type lfuPolicy struct{}

func (lfuPolicy) Name() string { return PolicyLFU }

func (lfuPolicy) RetentionValue(e *CacheEntry, now time.Time) float64 {
	return float64(e.Metadata.AccessCount)
}

// costAwarePolicy keeps entries that are expensive to regenerate
// relative to how often they are used: cheap, rarely protected entries
// go first.
type costAwarePolicy struct{}

func (costAwarePolicy) Name() string { return PolicyCostAware }

func (costAwarePolicy) RetentionValue(e *CacheEntry, now time.Time) float64 {
	return e.Metadata.GenerationCostCents / float64(e.Metadata.AccessCount+1)
}

// adaptivePolicy blends recency, frequency, regeneration cost, and
// embedding quality into a composite retention value in [0,1].
type adaptivePolicy struct{}

const adaptiveAgeHorizon = 7 * 24 * time.Hour

func (adaptivePolicy) Name() string { return PolicyAdaptive }

func (adaptivePolicy) RetentionValue(e *CacheEntry, now time.Time) float64 {
	age := now.Sub(e.Metadata.CreatedAt)
	ageFactor := 1 - float64(age)/float64(adaptiveAgeHorizon)
	if ageFactor < 0 {
		ageFactor = 0
	}
	accessFactor := minf(1, float64(e.Metadata.AccessCount)/10.0)
	costFactor := minf(1, e.Metadata.GenerationCostCents/5.0)
	qualityFactor := meanQuality(e.Metadata.QualityScores)

	return 0.3*ageFactor + 0.3*accessFactor + 0.2*costFactor + 0.2*qualityFactor
}
