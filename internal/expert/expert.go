// Package expert wraps a chromosome and a trained network behind a single
// capability interface.
package expert

import (
	"context"
	"errors"

	"mixevo/internal/dataset"
	"mixevo/internal/gene"
	"mixevo/internal/preprocess"
)

type Kind string

const (
	KindRNN Kind = "rnn"
	KindRBF Kind = "rbf"
)

var (
	ErrAlreadyTrained = errors.New("expert already trained")
	ErrNotTrained     = errors.New("expert not trained")
)

// Expert is one predictor. Train runs at most once; Predict may advance
// internal state (recurrent registers) and is not safe for concurrent use.
type Expert interface {
	Kind() Kind
	Chromosome() gene.Chromosome
	Preprocessing() preprocess.Settings
	Train(ctx context.Context, data dataset.Dataset) error
	Trained() bool
	// Predict returns the raw network output for a full feature vector.
	Predict(x []float64) float64
	Reset()
	// RelativeComplexity is a cheap proxy for the training cost on data of
	// the given shape, used to order training jobs.
	RelativeComplexity(shape dataset.Shape) float64
}

// PreprocessingFor reads the pipeline genes of a chromosome.
func PreprocessingFor(c gene.Chromosome) preprocess.Settings {
	return preprocess.Settings{
		DatabaseB:        c.Bool(gene.DatabaseB),
		ComplementCoding: c.Bool(gene.ComplementCoding),
		PCA:              c.Bool(gene.PCA),
		Components:       c.Int(gene.PCIndex),
	}
}

// trainingWindow applies the chromosome's offset and size percentages.
func trainingWindow(c gene.Chromosome, data dataset.Dataset) dataset.Dataset {
	return data.WindowPercent(c.Value(gene.TrainOffset), c.Value(gene.TrainSize))
}

func windowSize(c gene.Chromosome, shape dataset.Shape) int {
	_, size := dataset.PercentWindow(shape.Samples, c.Value(gene.TrainOffset), c.Value(gene.TrainSize))
	return size
}
