package expert

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"mixevo/internal/dataset"
	"mixevo/internal/gene"
	"mixevo/internal/nn"
	"mixevo/internal/preprocess"
	"mixevo/internal/scg"
)

// initScale bounds the uniform initial weights.
const initScale = 0.5

// RNN is a recurrent expert trained by scaled conjugate gradient. Its initial
// weights come from its own seed, so equal chromosome and seed reproduce the
// same trained network.
type RNN struct {
	chromosome gene.Chromosome
	seed       int64

	trained  bool
	pipeline *preprocess.Pipeline
	net      *nn.Network
	result   scg.Result
}

func NewRNN(c gene.Chromosome, seed int64) *RNN {
	return &RNN{chromosome: c, seed: seed}
}

func (e *RNN) Kind() Kind { return KindRNN }

func (e *RNN) Chromosome() gene.Chromosome { return e.chromosome }

func (e *RNN) Seed() int64 { return e.seed }

func (e *RNN) Preprocessing() preprocess.Settings { return PreprocessingFor(e.chromosome) }

func (e *RNN) Trained() bool { return e.trained }

func (e *RNN) PCAFallback() bool { return e.pipeline != nil && e.pipeline.Fallback }

// Layers lists the hidden layers followed by the single linear output node.
func (e *RNN) Layers() []nn.LayerSpec {
	specs := []nn.LayerSpec{{
		Nodes:      max(e.chromosome.Int(gene.Hidden1), 1),
		Activation: nn.Logistic,
		Recurrent:  true,
	}}
	if h2 := e.chromosome.Int(gene.Hidden2); h2 > 0 {
		specs = append(specs, nn.LayerSpec{Nodes: h2, Activation: nn.Logistic, Recurrent: true})
	}
	return append(specs, nn.LayerSpec{Nodes: 1, Activation: nn.Linear})
}

func (e *RNN) Epochs() int {
	return max(e.chromosome.Int(gene.Epochs), 0)
}

func (e *RNN) Train(ctx context.Context, data dataset.Dataset) error {
	if e.trained {
		return ErrAlreadyTrained
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("rnn training data: %w", err)
	}
	window := trainingWindow(e.chromosome, data)
	pipeline, err := preprocess.Fit(e.Preprocessing(), window)
	if err != nil {
		return fmt.Errorf("rnn preprocessing: %w", err)
	}
	inputs := pipeline.ApplyAll(window)
	targets := make([][]float64, len(window.Targets))
	for t, y := range window.Targets {
		targets[t] = []float64{y}
	}

	net, err := nn.NewNetwork(pipeline.OutputWidth(), e.Layers())
	if err != nil {
		return fmt.Errorf("rnn network: %w", err)
	}
	net.Randomize(rand.New(rand.NewSource(e.seed)), initScale)

	obj, err := nn.NewSequenceObjective(net, inputs, targets)
	if err != nil {
		return fmt.Errorf("rnn objective: %w", err)
	}
	result, err := scg.Minimize(ctx, obj, net.WeightVector(), e.Epochs())
	if err != nil {
		return fmt.Errorf("rnn training: %w", err)
	}
	if err := net.SetWeightVector(result.Weights); err != nil {
		return err
	}
	net.Reset()

	e.pipeline = pipeline
	e.net = net
	e.result = result
	e.trained = true
	return nil
}

// TrainingError is the final SCG error; History holds one entry per
// iteration.
func (e *RNN) TrainingError() float64 { return e.result.Error }

func (e *RNN) History() []float64 { return append([]float64(nil), e.result.History...) }

func (e *RNN) Predict(x []float64) float64 {
	if !e.trained {
		return math.NaN()
	}
	out, err := e.net.Forward(e.pipeline.Apply(x))
	if err != nil {
		return math.NaN()
	}
	return out[0]
}

func (e *RNN) Reset() {
	if e.net != nil {
		e.net.Reset()
	}
}

func (e *RNN) RelativeComplexity(shape dataset.Shape) float64 {
	hidden := 0
	for _, spec := range e.Layers()[:len(e.Layers())-1] {
		hidden += spec.Nodes
	}
	width := preprocess.EstimateWidth(e.Preprocessing(), shape)
	return float64(hidden) * float64(max(e.Epochs(), 1)) * float64(width)
}
