package rbf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestBasis(t *testing.T) {
	assert.Equal(t, 1.0, Basis([]float64{1, 2}, []float64{1, 2}, 0.5))
	assert.InDelta(t, math.Exp(-1), Basis([]float64{0, 0}, []float64{3, 4}, 5), 1e-12)
	assert.InDelta(t, math.Exp(-4), Basis([]float64{0}, []float64{2}, 1), 1e-12)
}

func sineSet(n int) ([][]float64, []float64) {
	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		x := float64(i) / float64(n-1) * 2 * math.Pi
		xs[i] = []float64{x}
		ys[i] = math.Sin(x)
	}
	return xs, ys
}

func TestTrainFitsSmoothFunction(t *testing.T) {
	xs, ys := sineSet(30)
	net, err := Train(xs, ys, 1e-4, 1.0)
	require.NoError(t, err)
	require.False(t, net.IsDegenerate())
	assert.Less(t, len(net.Centers), len(xs))
	assert.GreaterOrEqual(t, net.Explained, 1-1e-4)

	for i, x := range xs {
		assert.InDelta(t, ys[i], net.Predict(x), 0.05)
	}
}

func TestLooseToleranceSelectsFewerCentres(t *testing.T) {
	xs, ys := sineSet(30)
	tight, err := Train(xs, ys, 1e-6, 1.0)
	require.NoError(t, err)
	loose, err := Train(xs, ys, 0.2, 1.0)
	require.NoError(t, err)
	assert.Less(t, len(loose.Centers), len(tight.Centers))
	assert.Less(t, 1-loose.Explained, 0.2)
}

func TestForwardSelectionPicksDistinctCandidates(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	xs := make([][]float64, 25)
	ys := make([]float64, 25)
	for i := range xs {
		xs[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		ys[i] = float64(2*rng.Intn(2) - 1)
	}
	net, err := Train(xs, ys, 0, 0.8)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, j := range net.Selected {
		require.False(t, seen[j], "candidate %d selected twice", j)
		seen[j] = true
	}
	assert.Len(t, net.Weights, len(net.Centers))
}

func TestGramSchmidtResidualsStayOrthogonal(t *testing.T) {
	xs, ys := sineSet(12)
	net, err := Train(xs, ys, 0.3, 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, net.Selected)

	// Re-orthonormalize the selected columns in selection order and check the
	// explained variance adds up to what the selection reported.
	d := append([]float64(nil), ys...)
	mean := floats.Sum(d) / float64(len(d))
	floats.AddConst(-mean, d)
	floats.Scale(1/floats.Norm(d, 2), d)

	var bases [][]float64
	total := 0.0
	for _, j := range net.Selected {
		p := make([]float64, len(xs))
		for i := range xs {
			p[i] = Basis(xs[i], xs[j], 0.7)
		}
		w := append([]float64(nil), p...)
		for _, v := range bases {
			floats.AddScaled(w, -floats.Dot(v, p), v)
		}
		floats.Scale(1/floats.Norm(w, 2), w)
		for _, v := range bases {
			assert.InDelta(t, 0, floats.Dot(v, w), 1e-6)
		}
		bases = append(bases, w)
		q := floats.Dot(w, d)
		total += q * q
	}
	assert.InDelta(t, net.Explained, total, 1e-6)
}

func TestConstantTargetsFitBiasOnly(t *testing.T) {
	xs := [][]float64{{0}, {1}, {2}, {3}}
	ys := []float64{1, 1, 1, 1}
	net, err := Train(xs, ys, 0.01, 1)
	require.NoError(t, err)
	assert.Empty(t, net.Centers)
	assert.False(t, net.IsDegenerate())
	assert.InDelta(t, 1, net.Predict([]float64{10}), 1e-9)
}

func TestDegenerateNetworkAbstains(t *testing.T) {
	xs, ys := sineSet(10)
	net, err := Train(xs, ys, 0.01, 1)
	require.NoError(t, err)

	net.Degenerate = true
	net.Weights[0] = math.NaN()
	net.Bias = 42
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		assert.Equal(t, 0.0, net.Predict([]float64{rng.NormFloat64() * 100}))
	}
}

func TestNonFiniteSolutionMarksDegenerate(t *testing.T) {
	xs := [][]float64{{0}, {1}}
	ys := []float64{math.NaN(), 1}
	net, err := Train(xs, ys, 0, 1)
	require.NoError(t, err)
	assert.True(t, net.IsDegenerate())
	assert.Equal(t, 0.0, net.Predict([]float64{0.5}))
}

func TestTrainValidation(t *testing.T) {
	_, err := Train(nil, nil, 0.1, 1)
	require.ErrorIs(t, err, ErrEmptyTrainingSet)
	_, err = Train([][]float64{{1}}, []float64{1, 2}, 0.1, 1)
	require.Error(t, err)
	_, err = Train([][]float64{{1}}, []float64{1}, 0.1, 0)
	require.Error(t, err)
	_, err = Train([][]float64{{1}, {1, 2}}, []float64{1, 2}, 0.1, 1)
	require.Error(t, err)
}
