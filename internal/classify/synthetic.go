package classify

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ppiankov/ictrisk/internal/model"
)

// maxLabelAttempts bounds the redraws spent steering a sample into its target tier
const maxLabelAttempts = 64

// ErrInvalidSampleCount is returned for a non-positive or oversized generation request
var ErrInvalidSampleCount = errors.New("invalid sample count")

func newRandSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GenerateSyntheticTrainingData produces n labeled samples for bootstrapping
// the classifier. Samples are spread round-robin over the configured tiers:
// each draws a per-factor truth rate inside its target band and is redrawn a
// bounded number of times until the rules agree. The label always comes from
// the rule-based qualifier, so the data never contradicts the rules.
func (c *Classifier) GenerateSyntheticTrainingData(n int) ([]model.SyntheticSample, error) {
	if n <= 0 || n > c.opts.MaxSyntheticSamples {
		return nil, fmt.Errorf("%w: %d (allowed 1-%d)", ErrInvalidSampleCount, n, c.opts.MaxSyntheticSamples)
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	tiers := c.registry.Tiers()
	samples := make([]model.SyntheticSample, 0, n)
	for i := 0; i < n; i++ {
		target := i % len(tiers)
		lo, hi := c.registry.BandRange(target)

		var factors model.RiskFactorMap
		var label model.Tier
		for attempt := 0; attempt < maxLabelAttempts; attempt++ {
			rate := (lo + c.rng.Float64()*(hi-lo)) / 100
			factors = c.drawFactors(rate)
			label = c.qualifier.Classify(factors)
			if label == tiers[target] {
				break
			}
		}

		samples = append(samples, model.SyntheticSample{Factors: factors, Label: label})
	}

	return samples, nil
}

// drawFactors sets every registered factor independently with probability rate
func (c *Classifier) drawFactors(rate float64) model.RiskFactorMap {
	factors := make(model.RiskFactorMap)
	for _, ref := range c.features {
		factors.Set(ref.Category, ref.Factor, c.rng.Float64() < rate)
	}
	return factors
}
