// Package rbf builds Gaussian radial-basis networks by orthogonal least
// squares forward selection of centres.
package rbf

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// dependenceThreshold is the relative residual norm below which a candidate
// column is treated as spanned by the already selected bases.
const dependenceThreshold = 1e-10

var ErrEmptyTrainingSet = errors.New("rbf training set is empty")

// Network is a trained Gaussian RBF network with an output bias.
type Network struct {
	Centers  [][]float64
	Weights  []float64
	Bias     float64
	Spread   float64
	Selected []int
	// Explained is the fraction of target variance captured by the selected
	// bases during forward selection.
	Explained  float64
	Degenerate bool
}

// Basis evaluates exp(-(|x-c|/spread)^2).
func Basis(x, c []float64, spread float64) float64 {
	r := floats.Distance(x, c, 2) / spread
	return math.Exp(-r * r)
}

// Train selects centres among the training vectors until the unexplained
// variance drops below tolerance or candidates run out, then fits the output
// layer by least squares.
func Train(xs [][]float64, ys []float64, tolerance, spread float64) (*Network, error) {
	n := len(xs)
	if n == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(ys) != n {
		return nil, fmt.Errorf("rbf target length mismatch: inputs=%d targets=%d", n, len(ys))
	}
	if !(spread > 0) {
		return nil, fmt.Errorf("rbf spread must be > 0, got %g", spread)
	}
	width := len(xs[0])
	for i, x := range xs {
		if len(x) != width {
			return nil, fmt.Errorf("rbf input %d: width %d, want %d", i, len(x), width)
		}
	}

	design := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			design.Set(i, j, Basis(xs[i], xs[j], spread))
		}
	}

	selected, explained := forwardSelect(design, ys, tolerance)
	net := &Network{
		Spread:    spread,
		Selected:  selected,
		Explained: explained,
		Centers:   make([][]float64, len(selected)),
	}
	for k, j := range selected {
		net.Centers[k] = append([]float64(nil), xs[j]...)
	}

	weights, bias, ok := solveOutputLayer(design, selected, ys)
	net.Weights = weights
	net.Bias = bias
	net.Degenerate = !ok
	return net, nil
}

// forwardSelect greedily picks the candidate columns of design whose
// orthonormalized residual best explains the mean-centred targets.
func forwardSelect(design *mat.Dense, ys []float64, tolerance float64) ([]int, float64) {
	n, candidates := design.Dims()

	d := append([]float64(nil), ys...)
	floats.AddConst(-stat.Mean(ys, nil), d)
	norm := floats.Norm(d, 2)
	if norm == 0 {
		return nil, 0
	}
	floats.Scale(1/norm, d)

	remaining := make([]int, candidates)
	residuals := make([][]float64, candidates)
	norms := make([]float64, candidates)
	for j := range remaining {
		remaining[j] = j
		residuals[j] = mat.Col(nil, j, design)
		norms[j] = floats.Norm(residuals[j], 2)
	}

	var (
		selected []int
		total    float64
	)
	for len(remaining) > 0 {
		bestPos := -1
		bestQuality := -1.0
		var bestBasis []float64
		for pos, j := range remaining {
			r := residuals[j]
			rn := floats.Norm(r, 2)
			if rn <= dependenceThreshold*norms[j] || rn == 0 {
				continue
			}
			w := make([]float64, n)
			floats.ScaleTo(w, 1/rn, r)
			quality := floats.Dot(w, d)
			quality *= quality
			if quality > bestQuality {
				bestPos, bestQuality, bestBasis = pos, quality, w
			}
		}
		if bestPos < 0 {
			break
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
		total += bestQuality

		// Keep every remaining residual orthogonal to all selected bases.
		for _, j := range remaining {
			floats.AddScaled(residuals[j], -floats.Dot(bestBasis, residuals[j]), bestBasis)
		}

		if 1-total < tolerance {
			break
		}
	}
	return selected, total
}

// solveOutputLayer fits weights for the selected raw basis columns plus a
// constant column against ys. ok is false when the solution is not finite.
func solveOutputLayer(design *mat.Dense, selected []int, ys []float64) ([]float64, float64, bool) {
	n, _ := design.Dims()
	cols := len(selected) + 1
	a := mat.NewDense(n, cols, nil)
	for k, j := range selected {
		for i := 0; i < n; i++ {
			a.Set(i, k, design.At(i, j))
		}
	}
	for i := 0; i < n; i++ {
		a.Set(i, cols-1, 1)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), ys...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return make([]float64, len(selected)), math.NaN(), false
		}
	}

	if x.Len() != cols {
		return make([]float64, len(selected)), math.NaN(), false
	}
	solution := make([]float64, cols)
	ok := true
	for i := range solution {
		solution[i] = x.AtVec(i)
		if math.IsNaN(solution[i]) || math.IsInf(solution[i], 0) {
			ok = false
		}
	}
	return append([]float64(nil), solution[:cols-1]...), solution[cols-1], ok
}

// Predict evaluates the network at x. A degenerate network abstains with 0.
func (n *Network) Predict(x []float64) float64 {
	if n.Degenerate {
		return 0
	}
	out := n.Bias
	for k, c := range n.Centers {
		out += n.Weights[k] * Basis(x, c, n.Spread)
	}
	return out
}

func (n *Network) IsDegenerate() bool {
	return n.Degenerate
}
