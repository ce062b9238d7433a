package dataset

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sequential(t *testing.T, samples int) Dataset {
	t.Helper()
	inputs := mat.NewDense(2, samples, nil)
	targets := make([]float64, samples)
	for j := 0; j < samples; j++ {
		inputs.Set(0, j, float64(j))
		inputs.Set(1, j, float64(-j))
		targets[j] = 1
		if j%2 == 1 {
			targets[j] = -1
		}
	}
	d, err := New(inputs, targets, 1)
	require.NoError(t, err)
	return d
}

func TestValidate(t *testing.T) {
	_, err := New(nil, nil, 1)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = New(mat.NewDense(1, 2, nil), []float64{1}, 1)
	require.ErrorIs(t, err, ErrShape)

	_, err = New(mat.NewDense(1, 2, nil), []float64{1, 0}, 1)
	require.ErrorIs(t, err, ErrTarget)

	_, err = New(mat.NewDense(1, 1, []float64{math.NaN()}), []float64{1}, 1)
	require.ErrorIs(t, err, ErrValue)

	_, err = New(mat.NewDense(2, 1, nil), []float64{1}, 3)
	require.ErrorIs(t, err, ErrShape)
}

func TestZeroDatasetReportsNoSamples(t *testing.T) {
	var d Dataset
	assert.Equal(t, 0, d.Samples())
	assert.Equal(t, 0, d.Features())
	assert.Equal(t, Shape{}, d.Shape())
	assert.ErrorIs(t, d.Validate(), ErrEmpty)
}

func TestClampWindow(t *testing.T) {
	tests := []struct {
		name                  string
		samples, offset, size int
		wantOffset, wantSize  int
	}{
		{name: "inside", samples: 10, offset: 2, size: 5, wantOffset: 2, wantSize: 5},
		{name: "overhang", samples: 10, offset: 8, size: 5, wantOffset: 5, wantSize: 5},
		{name: "oversize", samples: 10, offset: 3, size: 50, wantOffset: 0, wantSize: 10},
		{name: "negative-offset", samples: 10, offset: -4, size: 3, wantOffset: 0, wantSize: 3},
		{name: "tiny", samples: 10, offset: 9, size: 0, wantOffset: 8, wantSize: 2},
		{name: "single-sample", samples: 1, offset: 0, size: 0, wantOffset: 0, wantSize: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			offset, size := ClampWindow(tc.samples, tc.offset, tc.size)
			assert.Equal(t, tc.wantOffset, offset)
			assert.Equal(t, tc.wantSize, size)
		})
	}
}

func TestWindowPercent(t *testing.T) {
	d := sequential(t, 20)
	w := d.WindowPercent(25, 50)
	require.Equal(t, 10, w.Samples())
	assert.Equal(t, []float64{5, -5}, w.Column(0))
	assert.Equal(t, d.Targets[5:15], w.Targets)

	clamped := d.WindowPercent(90, 100)
	assert.Equal(t, 20, clamped.Samples())
	assert.Equal(t, []float64{0, 0}, clamped.Column(0))
}

func TestSplitPreservesOrder(t *testing.T) {
	d := sequential(t, 10)
	train, validation, err := d.Split(0.3)
	require.NoError(t, err)
	assert.Equal(t, 7, train.Samples())
	assert.Equal(t, 3, validation.Samples())
	assert.Equal(t, []float64{7, -7}, validation.Column(0))
	assert.Equal(t, 1, validation.ReducedWidth)

	_, _, err = d.Split(0)
	require.Error(t, err)
	_, _, err = sequential(t, 1).Split(0.5)
	require.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	data := "f1,f2,target\n0.1,0.2,1\n0.3,0.4,-1\n0.5,0.6,1\n"
	d, err := ReadCSV(strings.NewReader(data), 1)
	require.NoError(t, err)
	assert.Equal(t, Shape{Features: 2, Samples: 3, ReducedWidth: 1}, d.Shape())
	assert.Equal(t, []float64{0.3, 0.4}, d.Column(1))
	assert.Equal(t, []float64{1, -1, 1}, d.Targets)

	_, err = ReadCSV(strings.NewReader("a,b\n"), 1)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = ReadCSV(strings.NewReader("1,2,1\n1,1\n"), 1)
	require.Error(t, err)
	_, err = ReadCSV(strings.NewReader("1,2,0\n"), 1)
	require.ErrorIs(t, err, ErrTarget)
}

func TestSyntheticIsDeterministicAndValid(t *testing.T) {
	a, err := Synthetic(rand.New(rand.NewSource(4)), 40, 6, 3)
	require.NoError(t, err)
	b, err := Synthetic(rand.New(rand.NewSource(4)), 40, 6, 3)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	assert.True(t, mat.Equal(a.Inputs, b.Inputs))
	assert.Equal(t, a.Targets, b.Targets)
	assert.Equal(t, Shape{Features: 6, Samples: 40, ReducedWidth: 3}, a.Shape())

	for i := 0; i < a.Features(); i++ {
		for j := 0; j < a.Samples(); j++ {
			v := a.Inputs.At(i, j)
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}
