package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// momentum is the lag-one autocorrelation of the synthetic return series. A
// positive value makes the next direction weakly predictable from the past.
const momentum = 0.35

// Synthetic builds a deterministic market-like dataset: an AR(1) return series
// whose lagged returns, squashed into [0, 1], form the features and whose next
// return sign is the target.
func Synthetic(rng *rand.Rand, samples, features, reducedWidth int) (Dataset, error) {
	if samples <= 0 || features <= 0 {
		return Dataset{}, fmt.Errorf("%w: synthetic data needs samples and features > 0", ErrShape)
	}
	if reducedWidth <= 0 || reducedWidth > features {
		reducedWidth = features
	}

	total := samples + features + 1
	returns := make([]float64, total)
	for t := 1; t < total; t++ {
		returns[t] = momentum*returns[t-1] + 0.01*rng.NormFloat64()
	}

	inputs := mat.NewDense(features, samples, nil)
	targets := make([]float64, samples)
	for j := 0; j < samples; j++ {
		now := j + features
		for i := 0; i < features; i++ {
			inputs.Set(i, j, squash(returns[now-i]))
		}
		targets[j] = 1
		if returns[now+1] < 0 {
			targets[j] = -1
		}
	}
	return New(inputs, targets, reducedWidth)
}

func squash(r float64) float64 {
	return 1 / (1 + math.Exp(-r*100))
}
