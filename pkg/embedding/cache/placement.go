package cache

// PlacementThresholds define the score and access-count cut-offs used
// to pick an initial tier at store time.
type PlacementThresholds struct {
	HotScore   float64 `mapstructure:"hot_score"`
	HotAccess  int64   `mapstructure:"hot_access"`
	WarmScore  float64 `mapstructure:"warm_score"`
	WarmAccess int64   `mapstructure:"warm_access"`
}

// DefaultPlacementThresholds returns the standard placement cut-offs.
func DefaultPlacementThresholds() PlacementThresholds {
	return PlacementThresholds{
		HotScore:   0.8,
		HotAccess:  5,
		WarmScore:  0.4,
		WarmAccess: 1,
	}
}

// PlacementPolicy selects the initial tier for a newly stored entry.
// It is evaluated once at store time; afterwards only the promotion
// engine moves entries up and the eviction cascade moves them down.
type PlacementPolicy struct {
	thresholds PlacementThresholds
}

// NewPlacementPolicy creates a policy with the given thresholds.
func NewPlacementPolicy(thresholds PlacementThresholds) *PlacementPolicy {
	return &PlacementPolicy{thresholds: thresholds}
}

// SelectTier picks the tier for an entry from its priority score and
// historical access count.
func (p *PlacementPolicy) SelectTier(priorityScore float64, accessCount int64) Tier {
	switch {
	case priorityScore > p.thresholds.HotScore || accessCount > p.thresholds.HotAccess:
		return TierHot
	case priorityScore > p.thresholds.WarmScore || accessCount > p.thresholds.WarmAccess:
		return TierWarm
	default:
		return TierCold
	}
}
