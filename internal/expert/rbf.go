package expert

import (
	"context"
	"fmt"
	"math"

	"mixevo/internal/dataset"
	"mixevo/internal/gene"
	"mixevo/internal/preprocess"
	"mixevo/internal/rbf"
)

// RBF is a Gaussian radial-basis expert built by orthogonal least squares.
type RBF struct {
	chromosome gene.Chromosome

	trained  bool
	pipeline *preprocess.Pipeline
	net      *rbf.Network
}

func NewRBF(c gene.Chromosome) *RBF {
	return &RBF{chromosome: c}
}

func (e *RBF) Kind() Kind { return KindRBF }

func (e *RBF) Chromosome() gene.Chromosome { return e.chromosome }

func (e *RBF) Preprocessing() preprocess.Settings { return PreprocessingFor(e.chromosome) }

func (e *RBF) Trained() bool { return e.trained }

// PCAFallback reports that PCA was requested but the training window
// could not support it, so inputs were used unprojected.
func (e *RBF) PCAFallback() bool { return e.pipeline != nil && e.pipeline.Fallback }

func (e *RBF) Train(ctx context.Context, data dataset.Dataset) error {
	if e.trained {
		return ErrAlreadyTrained
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("rbf training data: %w", err)
	}
	window := trainingWindow(e.chromosome, data)
	pipeline, err := preprocess.Fit(e.Preprocessing(), window)
	if err != nil {
		return fmt.Errorf("rbf preprocessing: %w", err)
	}
	net, err := rbf.Train(pipeline.ApplyAll(window), window.Targets, e.chromosome.Value(gene.RBFTolerance), e.chromosome.Value(gene.RBFSpread))
	if err != nil {
		return fmt.Errorf("rbf training: %w", err)
	}
	e.pipeline = pipeline
	e.net = net
	e.trained = true
	return nil
}

// IsDegenerate reports a non-finite least-squares solution. Degenerate
// experts abstain.
func (e *RBF) IsDegenerate() bool {
	return e.net != nil && e.net.IsDegenerate()
}

// Network exposes the trained network, nil before training.
func (e *RBF) Network() *rbf.Network { return e.net }

func (e *RBF) Predict(x []float64) float64 {
	if !e.trained {
		return math.NaN()
	}
	if e.net.IsDegenerate() {
		return 0
	}
	return e.net.Predict(e.pipeline.Apply(x))
}

func (e *RBF) Reset() {}

func (e *RBF) RelativeComplexity(shape dataset.Shape) float64 {
	width := preprocess.EstimateWidth(e.Preprocessing(), shape)
	return float64(windowSize(e.chromosome, shape)) * float64(width)
}
