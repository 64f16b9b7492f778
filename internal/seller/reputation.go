package seller

import (
	"fmt"
	"math"

	"github.com/guarzo/vinyldeals/internal/model"
)

// ReputationConfig tunes ScoreSellerReputation.
type ReputationConfig struct {
	FeedbackWeight float64 `toml:"feedback_weight"`
	PositiveWeight float64 `toml:"positive_weight"`
	// Saturation is the feedback count at which the score is fully trusted.
	Saturation     int     `toml:"saturation"`
	NewSellerScore float64 `toml:"new_seller_score"`
}

// DefaultReputationConfig returns the default reputation tuning.
func DefaultReputationConfig() ReputationConfig {
	return ReputationConfig{
		FeedbackWeight: 0.5,
		PositiveWeight: 0.5,
		Saturation:     1000,
		NewSellerScore: 35,
	}
}

// Validate checks the reputation tuning.
func (c ReputationConfig) Validate() error {
	if c.FeedbackWeight < 0 || c.PositiveWeight < 0 || c.FeedbackWeight+c.PositiveWeight <= 0 {
		return fmt.Errorf("reputation weights must be non-negative with a positive sum")
	}
	if c.Saturation < 1 {
		return fmt.Errorf("reputation saturation must be >= 1, got %d", c.Saturation)
	}
	if c.NewSellerScore <= 0 || c.NewSellerScore > 100 {
		return fmt.Errorf("new seller score must be in (0, 100], got %.2f", c.NewSellerScore)
	}
	return nil
}

// ScoreSellerReputation blends feedback quality with how much evidence backs
// it. Confidence grows with log10 of the feedback count and saturates, so a
// seller with no feedback gets NewSellerScore rather than zero.
func ScoreSellerReputation(s model.Seller, cfg ReputationConfig) float64 {
	score := finite(s.FeedbackScore)
	positive := finite(s.PositivePct)
	if score == 0 {
		score = positive
	}
	if positive == 0 {
		positive = score
	}

	quality := (cfg.FeedbackWeight*score + cfg.PositiveWeight*positive) / (cfg.FeedbackWeight + cfg.PositiveWeight)
	if math.IsNaN(quality) {
		quality = 0
	}

	confidence := 0.0
	if s.FeedbackCount > 0 && cfg.Saturation > 0 {
		confidence = math.Log10(1+float64(s.FeedbackCount)) / math.Log10(1+float64(cfg.Saturation))
		confidence = math.Min(confidence, 1)
	}

	result := cfg.NewSellerScore*(1-confidence) + quality*confidence
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return clamp(cfg.NewSellerScore)
	}
	return clamp(result)
}

// finite maps NaN and infinities to 0 and clamps to [0,100].
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
