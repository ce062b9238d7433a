package scg

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic is 0.5*(w-c)'A(w-c) with diagonal A.
type quadratic struct {
	diag   []float64
	center []float64
}

func (q quadratic) Dimension() int { return len(q.diag) }

func (q quadratic) Error(w []float64) float64 {
	e, _ := q.Evaluate(w)
	return e
}

func (q quadratic) Evaluate(w []float64) (float64, []float64) {
	e := 0.0
	g := make([]float64, len(w))
	for i := range w {
		d := w[i] - q.center[i]
		e += 0.5 * q.diag[i] * d * d
		g[i] = q.diag[i] * d
	}
	return e, g
}

type rosenbrock struct{}

func (rosenbrock) Dimension() int { return 2 }

func (r rosenbrock) Error(w []float64) float64 {
	e, _ := r.Evaluate(w)
	return e
}

func (rosenbrock) Evaluate(w []float64) (float64, []float64) {
	x, y := w[0], w[1]
	e := (1-x)*(1-x) + 100*(y-x*x)*(y-x*x)
	g := []float64{
		-2*(1-x) - 400*x*(y-x*x),
		200 * (y - x*x),
	}
	return e, g
}

func TestMinimizeQuadratic(t *testing.T) {
	q := quadratic{
		diag:   []float64{1, 4, 9, 0.5, 2},
		center: []float64{1, -2, 3, 0.5, -1},
	}
	res, err := Minimize(context.Background(), q, make([]float64, 5), 200)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Error, 1e-9)
	for i, c := range q.center {
		assert.InDelta(t, c, res.Weights[i], 1e-4)
	}
	assert.Len(t, res.History, res.Iterations)
}

func TestMinimizeRosenbrock(t *testing.T) {
	res, err := Minimize(context.Background(), rosenbrock{}, []float64{-1.2, 1}, 2000)
	require.NoError(t, err)
	assert.Less(t, res.Error, 1e-4)
	assert.InDelta(t, 1, res.Weights[0], 5e-2)
	assert.InDelta(t, 1, res.Weights[1], 1e-1)
}

func TestHistoryIsNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	diag := make([]float64, 8)
	center := make([]float64, 8)
	for i := range diag {
		diag[i] = 0.1 + rng.Float64()*10
		center[i] = rng.NormFloat64()
	}
	res, err := Minimize(context.Background(), quadratic{diag: diag, center: center}, make([]float64, 8), 50)
	require.NoError(t, err)
	for i := 1; i < len(res.History); i++ {
		assert.LessOrEqual(t, res.History[i], res.History[i-1])
	}
}

func TestMinimizeStopsAtEpochMax(t *testing.T) {
	res, err := Minimize(context.Background(), rosenbrock{}, []float64{-1.2, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.History, 3)
	assert.False(t, res.Converged)
}

func TestMinimizeZeroEpochsReturnsStart(t *testing.T) {
	w0 := []float64{-1.2, 1}
	res, err := Minimize(context.Background(), rosenbrock{}, w0, 0)
	require.NoError(t, err)
	assert.Equal(t, w0, res.Weights)
	assert.Empty(t, res.History)
	assert.False(t, math.IsNaN(res.Error))
}

func TestMinimizeAtOptimum(t *testing.T) {
	q := quadratic{diag: []float64{1, 1}, center: []float64{2, 3}}
	res, err := Minimize(context.Background(), q, []float64{2, 3}, 10)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 0.0, res.Error)
}

func TestMinimizeIsDeterministic(t *testing.T) {
	a, err := Minimize(context.Background(), rosenbrock{}, []float64{0.3, -0.7}, 100)
	require.NoError(t, err)
	b, err := Minimize(context.Background(), rosenbrock{}, []float64{0.3, -0.7}, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMinimizeValidation(t *testing.T) {
	_, err := Minimize(context.Background(), rosenbrock{}, []float64{1}, 10)
	require.ErrorIs(t, err, ErrDimension)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Minimize(ctx, rosenbrock{}, []float64{0, 0}, 10)
	require.ErrorIs(t, err, context.Canceled)
}
