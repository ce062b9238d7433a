package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSequence(rng *rand.Rand, steps, width int) ([][]float64, [][]float64) {
	inputs := make([][]float64, steps)
	targets := make([][]float64, steps)
	for t := range inputs {
		inputs[t] = make([]float64, width)
		for k := range inputs[t] {
			inputs[t][k] = rng.Float64()
		}
		targets[t] = []float64{float64(2*rng.Intn(2) - 1)}
	}
	return inputs, targets
}

func TestSequenceGradientMatchesFiniteDifferences(t *testing.T) {
	tests := []struct {
		name  string
		specs []LayerSpec
	}{
		{name: "single-recurrent", specs: []LayerSpec{
			{Nodes: 3, Activation: Logistic, Recurrent: true},
			{Nodes: 1, Activation: Linear},
		}},
		{name: "two-recurrent", specs: []LayerSpec{
			{Nodes: 4, Activation: Logistic, Recurrent: true},
			{Nodes: 2, Activation: Logistic, Recurrent: true},
			{Nodes: 1, Activation: Linear},
		}},
		{name: "recurrent-output", specs: []LayerSpec{
			{Nodes: 2, Activation: Logistic},
			{Nodes: 1, Activation: Linear, Recurrent: true},
		}},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(100 + i)))
			net := newTestNetwork(t, 3, tc.specs...)
			net.Randomize(rng, 0.5)
			inputs, targets := randomSequence(rng, 12, 3)

			obj, err := NewSequenceObjective(net, inputs, targets)
			require.NoError(t, err)

			w := net.WeightVector()
			e, grad := obj.Evaluate(w)
			assert.InDelta(t, obj.Error(w), e, 1e-12)

			const h = 1e-6
			for k := range w {
				plus := append([]float64(nil), w...)
				minus := append([]float64(nil), w...)
				plus[k] += h
				minus[k] -= h
				numeric := (obj.Error(plus) - obj.Error(minus)) / (2 * h)
				assert.InDelta(t, numeric, grad[k], 1e-5, "weight %d", k)
			}
		})
	}
}

func TestSequenceObjectiveDoesNotTouchSourceNetwork(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	net := newTestNetwork(t, 2,
		LayerSpec{Nodes: 2, Activation: Logistic, Recurrent: true},
		LayerSpec{Nodes: 1, Activation: Linear},
	)
	net.Randomize(rng, 0.5)
	before := net.WeightVector()
	inputs, targets := randomSequence(rng, 5, 2)
	obj, err := NewSequenceObjective(net, inputs, targets)
	require.NoError(t, err)

	w := make([]float64, obj.Dimension())
	obj.Evaluate(w)
	assert.Equal(t, before, net.WeightVector())
}

func TestSequenceObjectiveValidation(t *testing.T) {
	net := newTestNetwork(t, 2, LayerSpec{Nodes: 1, Activation: Linear})
	_, err := NewSequenceObjective(net, nil, nil)
	require.Error(t, err)
	_, err = NewSequenceObjective(net, [][]float64{{1, 2}}, nil)
	require.Error(t, err)
	_, err = NewSequenceObjective(net, [][]float64{{1}}, [][]float64{{1}})
	require.Error(t, err)
}
