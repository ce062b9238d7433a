package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"mixevo/internal/mixture"
)

var ErrNoCandidates = errors.New("no selection candidates")

// SelectOneAccordingToQuality picks an index with probability proportional to
// quality(item). Qualities must be non-negative; when all are zero the pick is
// uniform.
func SelectOneAccordingToQuality[T any](rng *rand.Rand, items []T, quality func(T) float64) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(items) == 0 {
		return 0, ErrNoCandidates
	}
	total := 0.0
	for i, item := range items {
		q := quality(item)
		if q < 0 {
			return 0, fmt.Errorf("negative quality %g at index %d", q, i)
		}
		total += q
	}
	if total == 0 {
		return rng.Intn(len(items)), nil
	}

	r := rng.Float64() * total
	for i, item := range items {
		r -= quality(item)
		if r < 0 {
			return i, nil
		}
	}
	// Rounding can leave r at zero; fall back to the last positive item.
	for i := len(items) - 1; i >= 0; i-- {
		if quality(items[i]) > 0 {
			return i, nil
		}
	}
	return len(items) - 1, nil
}

// SelectTwoAccordingToQuality picks two distinct indices. The second pick is
// drawn from the remaining items.
func SelectTwoAccordingToQuality[T any](rng *rand.Rand, items []T, quality func(T) float64) (int, int, error) {
	if len(items) < 2 {
		return 0, 0, fmt.Errorf("%w: need 2, have %d", ErrNoCandidates, len(items))
	}
	first, err := SelectOneAccordingToQuality(rng, items, quality)
	if err != nil {
		return 0, 0, err
	}
	rest := make([]int, 0, len(items)-1)
	for i := range items {
		if i != first {
			rest = append(rest, i)
		}
	}
	k, err := SelectOneAccordingToQuality(rng, rest, func(i int) float64 { return quality(items[i]) })
	if err != nil {
		return 0, 0, err
	}
	return first, rest[k], nil
}

// Pairing chooses parent pairs from the selected mixtures, ranked best first.
type Pairing interface {
	Name() string
	Pairs(rng *rand.Rand, selected []*mixture.Mixture, count int) ([][2]*mixture.Mixture, error)
}

// ShufflePairing shuffles the selected mixtures and pairs neighbours,
// wrapping around when more pairs are needed than the selection holds.
type ShufflePairing struct{}

func (ShufflePairing) Name() string {
	return "shuffle"
}

func (ShufflePairing) Pairs(rng *rand.Rand, selected []*mixture.Mixture, count int) ([][2]*mixture.Mixture, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(selected) < 2 {
		return nil, fmt.Errorf("%w: need 2, have %d", ErrNoCandidates, len(selected))
	}
	shuffled := append([]*mixture.Mixture(nil), selected...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	pairs := make([][2]*mixture.Mixture, 0, count)
	for k := 0; len(pairs) < count; k += 2 {
		pairs = append(pairs, [2]*mixture.Mixture{
			shuffled[k%len(shuffled)],
			shuffled[(k+1)%len(shuffled)],
		})
	}
	return pairs, nil
}

// QualityPairing draws each pair with quality-proportionate selection over
// fitness.
type QualityPairing struct{}

func (QualityPairing) Name() string {
	return "quality"
}

func (QualityPairing) Pairs(rng *rand.Rand, selected []*mixture.Mixture, count int) ([][2]*mixture.Mixture, error) {
	pairs := make([][2]*mixture.Mixture, 0, count)
	for len(pairs) < count {
		i, j, err := SelectTwoAccordingToQuality(rng, selected, (*mixture.Mixture).Fitness)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]*mixture.Mixture{selected[i], selected[j]})
	}
	return pairs, nil
}

// PairingByName resolves a configured pairing; empty means shuffle.
func PairingByName(name string) (Pairing, error) {
	switch name {
	case "", "shuffle":
		return ShufflePairing{}, nil
	case "quality":
		return QualityPairing{}, nil
	default:
		return nil, fmt.Errorf("unknown pairing: %s", name)
	}
}
