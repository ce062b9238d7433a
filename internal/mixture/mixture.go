// Package mixture combines RNN and RBF experts into a sign-voting ensemble.
package mixture

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"mixevo/internal/dataset"
	"mixevo/internal/expert"
	"mixevo/internal/gene"
)

var ErrNoExperts = errors.New("mixture has no experts")

// Mixture holds fixed-size expert lists. Crossover and mutation return new
// mixtures with new, untrained experts; a mixture is never changed in place
// except for its fitness.
type Mixture struct {
	ID  string
	RNN []*expert.RNN
	RBF []*expert.RBF

	fitness   float64
	evaluated bool
}

// Random builds a mixture with fully randomized chromosomes drawn from proto.
// IDs and RNN weight seeds are drawn from rng so a seeded run is repeatable.
func Random(rng *rand.Rand, proto gene.Chromosome, rnnCount, rbfCount int) *Mixture {
	m := &Mixture{
		ID:  newID(rng),
		RNN: make([]*expert.RNN, 0, rnnCount),
		RBF: make([]*expert.RBF, 0, rbfCount),
	}
	for i := 0; i < rnnCount; i++ {
		m.RNN = append(m.RNN, expert.NewRNN(proto.Randomize(rng), rng.Int63()))
	}
	for i := 0; i < rbfCount; i++ {
		m.RBF = append(m.RBF, expert.NewRBF(proto.Randomize(rng)))
	}
	return m
}

func newID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Experts lists RNN experts first, then RBF experts.
func (m *Mixture) Experts() []expert.Expert {
	out := make([]expert.Expert, 0, len(m.RNN)+len(m.RBF))
	for _, e := range m.RNN {
		out = append(out, e)
	}
	for _, e := range m.RBF {
		out = append(out, e)
	}
	return out
}

func (m *Mixture) Size() int { return len(m.RNN) + len(m.RBF) }

func (m *Mixture) Chromosomes() []gene.Chromosome {
	out := make([]gene.Chromosome, 0, m.Size())
	for _, e := range m.Experts() {
		out = append(out, e.Chromosome())
	}
	return out
}

// Trained reports whether every expert is trained. A mixture without
// experts is never trained.
func (m *Mixture) Trained() bool {
	if m.Size() == 0 {
		return false
	}
	for _, e := range m.Experts() {
		if !e.Trained() {
			return false
		}
	}
	return true
}

// Degenerate counts RBF experts that abstain.
func (m *Mixture) Degenerate() int {
	n := 0
	for _, e := range m.RBF {
		if e.IsDegenerate() {
			n++
		}
	}
	return n
}

func (m *Mixture) Reset() {
	for _, e := range m.Experts() {
		e.Reset()
	}
}

// Predict returns the sign of the average expert output.
func (m *Mixture) Predict(x []float64) float64 {
	preds := make([]float64, 0, m.Size())
	for _, e := range m.Experts() {
		preds = append(preds, e.Predict(x))
	}
	return Vote(preds...)
}

// Vote averages predictions, counting NaN as 0, and returns -1, 0 or +1.
// Zero is returned only for an exact tie or an empty vote.
func Vote(predictions ...float64) float64 {
	if len(predictions) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range predictions {
		if math.IsNaN(p) {
			continue
		}
		sum += p
	}
	return sign(sum / float64(len(predictions)))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// ComputeFitness resets every expert and scores one prediction per validation
// sample, in time order. Fitness is the fraction of samples whose predicted
// sign matches the target.
func (m *Mixture) ComputeFitness(validation dataset.Dataset) (float64, error) {
	if m.Size() == 0 {
		return 0, ErrNoExperts
	}
	if !m.Trained() {
		return 0, expert.ErrNotTrained
	}
	if err := validation.Validate(); err != nil {
		return 0, fmt.Errorf("validation data: %w", err)
	}
	samples := validation.Samples()
	m.Reset()
	hits := 0
	for j := 0; j < samples; j++ {
		if m.Predict(validation.Column(j)) == sign(validation.Targets[j]) {
			hits++
		}
	}
	m.fitness = float64(hits) / float64(samples)
	m.evaluated = true
	return m.fitness, nil
}

func (m *Mixture) Fitness() float64 { return m.fitness }

func (m *Mixture) Evaluated() bool { return m.evaluated }

// Crossover crosses experts position by position, RNN with RNN and RBF with
// RBF. Children get fresh IDs and fresh RNN seeds.
func (m *Mixture) Crossover(rng *rand.Rand, other *Mixture) (*Mixture, *Mixture, error) {
	if len(m.RNN) != len(other.RNN) || len(m.RBF) != len(other.RBF) {
		return nil, nil, fmt.Errorf("crossover %s x %s: expert counts differ", m.ID, other.ID)
	}
	a := &Mixture{ID: newID(rng), RNN: make([]*expert.RNN, len(m.RNN)), RBF: make([]*expert.RBF, len(m.RBF))}
	b := &Mixture{ID: newID(rng), RNN: make([]*expert.RNN, len(m.RNN)), RBF: make([]*expert.RBF, len(m.RBF))}
	for i := range m.RNN {
		ca, cb, err := m.RNN[i].Chromosome().Crossover(rng, other.RNN[i].Chromosome())
		if err != nil {
			return nil, nil, fmt.Errorf("crossover rnn %d: %w", i, err)
		}
		a.RNN[i] = expert.NewRNN(ca, rng.Int63())
		b.RNN[i] = expert.NewRNN(cb, rng.Int63())
	}
	for i := range m.RBF {
		ca, cb, err := m.RBF[i].Chromosome().Crossover(rng, other.RBF[i].Chromosome())
		if err != nil {
			return nil, nil, fmt.Errorf("crossover rbf %d: %w", i, err)
		}
		a.RBF[i] = expert.NewRBF(ca)
		b.RBF[i] = expert.NewRBF(cb)
	}
	return a, b, nil
}

// Mutate returns a mixture with the same ID whose experts are new and
// untrained, even when no gene changed. RNN seeds carry forward.
func (m *Mixture) Mutate(rng *rand.Rand, rate, dampingFactor float64) *Mixture {
	out := &Mixture{ID: m.ID, RNN: make([]*expert.RNN, len(m.RNN)), RBF: make([]*expert.RBF, len(m.RBF))}
	for i, e := range m.RNN {
		out.RNN[i] = expert.NewRNN(e.Chromosome().Mutate(rng, rate, dampingFactor), e.Seed())
	}
	for i, e := range m.RBF {
		out.RBF[i] = expert.NewRBF(e.Chromosome().Mutate(rng, rate, dampingFactor))
	}
	return out
}
