package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectTier(t *testing.T) {
	policy := NewPlacementPolicy(DefaultPlacementThresholds())

	tests := []struct {
		name        string
		score       float64
		accessCount int64
		want        Tier
	}{
		{"high score goes hot", 0.81, 0, TierHot},
		{"frequent access goes hot", 0.1, 6, TierHot},
		{"mid score goes warm", 0.41, 0, TierWarm},
		{"repeat access goes warm", 0.1, 2, TierWarm},
		{"low score low access goes cold", 0.4, 1, TierCold},
		{"zero everything goes cold", 0, 0, TierCold},
		{"boundary score is not hot", 0.8, 0, TierWarm},
		{"boundary access is not hot", 0.5, 5, TierWarm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.SelectTier(tt.score, tt.accessCount))
		})
	}
}
