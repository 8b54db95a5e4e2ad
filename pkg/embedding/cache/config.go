package cache

import (
	"fmt"
	"time"
)

// CascadeThresholds gate the eviction cascade: an evicted entry is
// offered to the next tier down only if its priority score clears the
// destination's threshold; otherwise it is dropped.
type CascadeThresholds struct {
	// WarmScore is the minimum score for a Hot-evicted entry to land
	// in Warm.
	WarmScore float64 `mapstructure:"warm_score"`
	// ColdScore is the minimum score for a Warm-evicted entry to be
	// persisted cold.
	ColdScore float64 `mapstructure:"cold_score"`
}

// Config holds the full cache configuration. Zero values are filled by
// DefaultConfig; Validate fails fast on configurations that cannot
// work (zero-sized tiers, unknown policies).
type Config struct {
	HotCapacity  int `mapstructure:"hot_capacity"`
	WarmCapacity int `mapstructure:"warm_capacity"`

	// Per-tier TTLs. Moving an entry between tiers recomputes its
	// expiry from the destination tier's TTL.
	HotTTL  time.Duration `mapstructure:"hot_ttl"`
	WarmTTL time.Duration `mapstructure:"warm_ttl"`
	ColdTTL time.Duration `mapstructure:"cold_ttl"`

	// EvictionPolicy is one of lru, lfu, cost_aware, adaptive.
	EvictionPolicy string `mapstructure:"eviction_policy"`
	// EvictionFraction is the share of capacity removed per eviction
	// pass, amortizing eviction cost across insertions.
	EvictionFraction float64 `mapstructure:"eviction_fraction"`

	// SupportedDimensions are the embedding resolutions the cache
	// accepts.
	SupportedDimensions []int `mapstructure:"supported_dimensions"`

	// EnableCompression turns on lossy quantization at store time.
	EnableCompression bool `mapstructure:"enable_compression"`
	// QuantizeDecimals is the decimal precision kept when compressing.
	QuantizeDecimals int `mapstructure:"quantize_decimals"`

	ScoreWeights ScoreWeights        `mapstructure:"score_weights"`
	Placement    PlacementThresholds `mapstructure:"placement"`
	Cascade      CascadeThresholds   `mapstructure:"cascade"`
	Promotion    PromotionConfig     `mapstructure:"promotion"`

	// ColdReadTimeout bounds how long a retrieve waits on the cold
	// tier before treating it as a miss. ColdWriteTimeout bounds
	// demotion writes.
	ColdReadTimeout  time.Duration `mapstructure:"cold_read_timeout"`
	ColdWriteTimeout time.Duration `mapstructure:"cold_write_timeout"`

	// SweepInterval enables the background TTL sweeper when positive.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		HotCapacity:         1000,
		WarmCapacity:        5000,
		HotTTL:              time.Hour,
		WarmTTL:             24 * time.Hour,
		ColdTTL:             7 * 24 * time.Hour,
		EvictionPolicy:      PolicyAdaptive,
		EvictionFraction:    0.1,
		SupportedDimensions: []int{256, 512, 1024, 2048},
		EnableCompression:   false,
		QuantizeDecimals:    3,
		ScoreWeights:        DefaultScoreWeights(),
		Placement:           DefaultPlacementThresholds(),
		Cascade:             CascadeThresholds{WarmScore: 0.3, ColdScore: 0.2},
		Promotion:           DefaultPromotionConfig(),
		ColdReadTimeout:     500 * time.Millisecond,
		ColdWriteTimeout:    2 * time.Second,
		SweepInterval:       0,
	}
}

// Validate reports configuration that must fail fast at construction.
func (c *Config) Validate() error {
	if c.HotCapacity <= 0 {
		return fmt.Errorf("%w: hot capacity must be positive, got %d", ErrInvalidConfig, c.HotCapacity)
	}
	if c.WarmCapacity <= 0 {
		return fmt.Errorf("%w: warm capacity must be positive, got %d", ErrInvalidConfig, c.WarmCapacity)
	}
	if c.EvictionFraction <= 0 || c.EvictionFraction > 1 {
		return fmt.Errorf("%w: eviction fraction must be in (0,1], got %v", ErrInvalidConfig, c.EvictionFraction)
	}
	if len(c.SupportedDimensions) == 0 {
		return fmt.Errorf("%w: at least one supported dimension is required", ErrInvalidConfig)
	}
	for _, d := range c.SupportedDimensions {
		if d <= 0 {
			return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, d)
		}
	}
	if c.QuantizeDecimals < 0 {
		return fmt.Errorf("%w: quantize decimals must be non-negative, got %d", ErrInvalidConfig, c.QuantizeDecimals)
	}
	if c.HotTTL <= 0 || c.WarmTTL <= 0 || c.ColdTTL <= 0 {
		return fmt.Errorf("%w: tier TTLs must be positive", ErrInvalidConfig)
	}
	if _, err := NewEvictionPolicy(c.EvictionPolicy); err != nil {
		return err
	}
	return nil
}

// ttlFor returns the destination tier's TTL.
func (c *Config) ttlFor(tier Tier) time.Duration {
	switch tier {
	case TierHot:
		return c.HotTTL
	case TierWarm:
		return c.WarmTTL
	default:
		return c.ColdTTL
	}
}

// supportsDimension reports whether the cache accepts the dimension.
func (c *Config) supportsDimension(dim int) bool {
	for _, d := range c.SupportedDimensions {
		if d == dim {
			return true
		}
	}
	return false
}
