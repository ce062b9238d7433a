package gene

import (
	"fmt"
	"math"
	"math/rand"
)

// Gene is a bounded, quantized hyperparameter. Value always lies on the grid
// min + k*granularity inside [Min, Max].
type Gene struct {
	Name        string  `json:"name" yaml:"name"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	Granularity float64 `json:"granularity" yaml:"granularity"`
	Value       float64 `json:"value" yaml:"value"`
}

// Quantize snaps v onto the grid min + k*step.
func Quantize(v, min, step float64) float64 {
	return math.Round((v-min)/step)*step + min
}

func NewGene(name string, min, max, granularity float64) (Gene, error) {
	g := Gene{Name: name, Min: min, Max: max, Granularity: granularity, Value: min}
	if err := g.validateRange(); err != nil {
		return Gene{}, err
	}
	return g, nil
}

// NewBoolGene returns a gene over {0, 1}.
func NewBoolGene(name string) Gene {
	return Gene{Name: name, Min: 0, Max: 1, Granularity: 1}
}

func (g Gene) validateRange() error {
	if g.Name == "" {
		return fmt.Errorf("gene name is required")
	}
	if math.IsNaN(g.Min) || math.IsNaN(g.Max) || g.Max < g.Min {
		return fmt.Errorf("gene %s: invalid range [%g, %g]", g.Name, g.Min, g.Max)
	}
	if !(g.Granularity > 0) {
		return fmt.Errorf("gene %s: granularity must be > 0", g.Name)
	}
	return nil
}

// Validate checks the range and that Value sits on the quantization grid.
func (g Gene) Validate() error {
	if err := g.validateRange(); err != nil {
		return err
	}
	if g.Value < g.Min || g.Value > g.Max {
		return fmt.Errorf("gene %s: value %g outside [%g, %g]", g.Name, g.Value, g.Min, g.Max)
	}
	if q := Quantize(g.Value, g.Min, g.Granularity); math.Abs(q-g.Value) > 1e-9*math.Max(1, math.Abs(g.Value)) {
		return fmt.Errorf("gene %s: value %g is not quantized by %g", g.Name, g.Value, g.Granularity)
	}
	return nil
}

func (g Gene) IsBool() bool {
	return g.Min == 0 && g.Max == 1 && g.Granularity == 1
}

func (g Gene) Bool() bool {
	return g.Value == 1
}

func (g Gene) Int() int {
	return int(math.Round(g.Value))
}

// WithValue returns a copy holding v snapped to the grid and clamped to range.
func (g Gene) WithValue(v float64) Gene {
	g.Value = g.snap(v)
	return g
}

// RandomValue draws uniformly in [Min, Max] and quantizes.
func (g Gene) RandomValue(rng *rand.Rand) float64 {
	return g.snap(g.Min + rng.Float64()*(g.Max-g.Min))
}

func (g Gene) Randomize(rng *rand.Rand) Gene {
	g.Value = g.RandomValue(rng)
	return g
}

// Mutate returns a mutated copy. Boolean genes flip with probability
// 1/dampingFactor (always when dampingFactor is 0). Numeric genes move to the
// damped average of the current value and a uniform draw.
func (g Gene) Mutate(rng *rand.Rand, dampingFactor float64) Gene {
	if g.IsBool() {
		if dampingFactor == 0 || rng.Float64() < 1/dampingFactor {
			g.Value = 1 - g.Value
		}
		return g
	}
	r := g.Min + rng.Float64()*(g.Max-g.Min)
	g.Value = g.snap((dampingFactor*g.Value + r) / (dampingFactor + 1))
	return g
}

// Normalized maps Value into [0, 1] by the gene's own range.
func (g Gene) Normalized() float64 {
	if g.Max == g.Min {
		return 0
	}
	return (g.Value - g.Min) / (g.Max - g.Min)
}

// snap quantizes and pulls grid points that overshoot the range back inside.
func (g Gene) snap(v float64) float64 {
	q := Quantize(v, g.Min, g.Granularity)
	if q > g.Max {
		q = math.Floor((g.Max-g.Min)/g.Granularity)*g.Granularity + g.Min
	}
	if q < g.Min {
		q = g.Min
	}
	return q
}
