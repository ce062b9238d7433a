// Package scg implements Møller's Scaled Conjugate Gradient minimiser in the
// formulation with a Powell-Beale restart test.
package scg

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// Epsilon scales the finite-difference step used for the curvature estimate.
	Epsilon = 1e-3
	// Tau is the gradient-norm threshold for early termination.
	Tau        = 1e-5
	lambdaInit = 1.0
	// lambdaMin is the smallest normal float64.
	lambdaMin = 2.2250738585072014e-308
	lambdaMax = math.MaxFloat64
	// minIterationsBeforeConvergence guards the gradient-norm stop.
	minIterationsBeforeConvergence = 10
)

var ErrDimension = errors.New("objective dimension mismatch")

// Objective is a differentiable error surface.
type Objective interface {
	Dimension() int
	Error(w []float64) float64
	Evaluate(w []float64) (float64, []float64)
}

type Result struct {
	Weights    []float64
	Error      float64
	History    []float64
	Iterations int
	Converged  bool
}

// Minimize runs at most epochMax iterations from w0. The context is checked
// once per iteration.
func Minimize(ctx context.Context, obj Objective, w0 []float64, epochMax int) (Result, error) {
	dim := obj.Dimension()
	if len(w0) != dim {
		return Result{}, fmt.Errorf("%w: got=%d want=%d", ErrDimension, len(w0), dim)
	}
	if epochMax < 0 {
		return Result{}, fmt.Errorf("epoch max must be >= 0")
	}

	w := append([]float64(nil), w0...)
	e, g := obj.Evaluate(w)
	s := make([]float64, dim)
	floats.ScaleTo(s, -1, g)

	var (
		lambda  = lambdaInit
		success = true
		restart = 0
		sMax    = dim
		mu      float64
		kappa   float64
		gamma   float64
		history = make([]float64, 0, epochMax)
		trial   = make([]float64, dim)
		wNext   = make([]float64, dim)
	)

	n := 0
	converged := false
	for n < epochMax {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if success {
			mu = floats.Dot(s, g)
			if mu >= 0 {
				floats.ScaleTo(s, -1, g)
				mu = floats.Dot(s, g)
				restart = 0
			}
			kappa = floats.Dot(s, s)
			if kappa == 0 || math.IsNaN(kappa) || math.IsInf(kappa, 0) {
				// Zero gradient: nothing left to follow.
				converged = kappa == 0
				break
			}
			sigma := Epsilon / math.Sqrt(kappa)
			floats.AddScaledTo(trial, w, sigma, s)
			_, gTrial := obj.Evaluate(trial)
			floats.Sub(gTrial, g)
			gamma = floats.Dot(s, gTrial) / sigma
		}

		delta := gamma + lambda*kappa
		if delta <= 0 {
			delta = lambda * kappa
			lambda -= gamma / kappa
		}

		alpha := -mu / delta
		floats.AddScaledTo(wNext, w, alpha, s)
		eNext := obj.Error(wNext)
		rho := 2 * (eNext - e) / (alpha * mu)
		success = rho >= 0

		switch {
		case rho > 0.75:
			lambda = math.Max(lambda/2, lambdaMin)
		case rho < 0.25:
			lambda = math.Min(lambda+delta*(1-rho)/kappa, lambdaMax)
		}
		if math.IsNaN(lambda) {
			lambda = lambdaMax
		}

		gNext := g
		if success {
			copy(w, wNext)
			e, gNext = obj.Evaluate(w)
			restart++
		}

		switch {
		case restart == sMax || (restart >= 2 && floats.Dot(g, gNext) >= 0.2*floats.Dot(gNext, gNext)):
			floats.ScaleTo(s, -1, gNext)
			success = true
			restart = 0
		case success:
			diff := make([]float64, dim)
			floats.SubTo(diff, g, gNext)
			beta := floats.Dot(diff, gNext) / mu
			for i := range s {
				s[i] = -gNext[i] + beta*s[i]
			}
		}
		g = gNext

		history = append(history, e)
		n++
		if n > minIterationsBeforeConvergence && floats.Norm(g, 2) < Tau {
			converged = true
			break
		}
	}

	return Result{
		Weights:    w,
		Error:      e,
		History:    history,
		Iterations: n,
		Converged:  converged,
	}, nil
}
