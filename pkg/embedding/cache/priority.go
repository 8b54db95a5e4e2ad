package cache

// ScoreWeights caps each component of the priority score. The default
// weights sum to 0.7, so a maximally valuable entry scores 0.7 unless
// weights are raised in configuration.
type ScoreWeights struct {
	// TextComplexity caps the length component: min(w, len/500).
	TextComplexity float64 `mapstructure:"text_complexity"`
	// Completeness weights the fraction of supported dimensions
	// present: w * present/supported.
	Completeness float64 `mapstructure:"completeness"`
	// RegenerationCost caps the cost component: min(w, cents/10).
	// Costlier-to-regenerate entries are worth protecting.
	RegenerationCost float64 `mapstructure:"regeneration_cost"`
	// Quality weights the mean per-dimension quality: w * mean.
	Quality float64 `mapstructure:"quality"`
}

// DefaultScoreWeights returns the standard weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		TextComplexity:   0.2,
		Completeness:     0.2,
		RegenerationCost: 0.2,
		Quality:          0.1,
	}
}

// PriorityScorer computes the retention priority of an entry, a value
// in [0,1] used for tier placement and eviction-cascade decisions.
type PriorityScorer struct {
	weights       ScoreWeights
	supportedDims int
}

// NewPriorityScorer creates a scorer over the given number of supported
// dimensions.
func NewPriorityScorer(weights ScoreWeights, supportedDims int) *PriorityScorer {
	if supportedDims <= 0 {
		supportedDims = 1
	}
	return &PriorityScorer{weights: weights, supportedDims: supportedDims}
}

// Score computes the priority of an entry from its source text,
// embeddings, and metadata. Pure function, clamped to [0,1].
func (s *PriorityScorer) Score(sourceText string, embeddings EmbeddingSet, meta EntryMetadata) float64 {
	score := 0.0

	// Longer texts are harder to reconstruct the exact phrasing of.
	score += minf(s.weights.TextComplexity, float64(len(sourceText))/500.0)

	// Entries holding more of the supported dimensions serve more
	// requests without regeneration.
	score += s.weights.Completeness * float64(len(embeddings)) / float64(s.supportedDims)

	// Protect entries that cost real money to regenerate.
	score += minf(s.weights.RegenerationCost, meta.GenerationCostCents/10.0)

	score += s.weights.Quality * meanQuality(meta.QualityScores)

	return clamp01(score)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
