// Package dataset holds the contract between the feature pipeline and the
// training engine: a features x samples input matrix with aligned +/-1
// direction targets.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty  = errors.New("dataset is empty")
	ErrShape  = errors.New("dataset shape mismatch")
	ErrTarget = errors.New("dataset target must be -1 or +1")
	ErrValue  = errors.New("dataset contains non-finite input")
)

// minWindow is the smallest training window handed to an expert when the
// dataset has enough samples.
const minWindow = 2

// Dataset is read-only once built. Columns are time-ordered samples, rows are
// features. The first ReducedWidth rows form the reduced feature subset
// ("database A").
type Dataset struct {
	Inputs       *mat.Dense
	Targets      []float64
	ReducedWidth int
}

func New(inputs *mat.Dense, targets []float64, reducedWidth int) (Dataset, error) {
	d := Dataset{Inputs: inputs, Targets: targets, ReducedWidth: reducedWidth}
	if err := d.Validate(); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

// Validate fails fast on malformed data.
func (d Dataset) Validate() error {
	if d.Inputs == nil || d.Inputs.IsEmpty() {
		return ErrEmpty
	}
	features, samples := d.Inputs.Dims()
	if features == 0 || samples == 0 {
		return ErrEmpty
	}
	if len(d.Targets) != samples {
		return fmt.Errorf("%w: %d samples, %d targets", ErrShape, samples, len(d.Targets))
	}
	if d.ReducedWidth <= 0 || d.ReducedWidth > features {
		return fmt.Errorf("%w: reduced width %d outside [1, %d]", ErrShape, d.ReducedWidth, features)
	}
	for j, y := range d.Targets {
		if y != 1 && y != -1 {
			return fmt.Errorf("%w: sample %d has %g", ErrTarget, j, y)
		}
	}
	for i := 0; i < features; i++ {
		for j := 0; j < samples; j++ {
			if v := d.Inputs.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: feature %d sample %d", ErrValue, i, j)
			}
		}
	}
	return nil
}

func (d Dataset) Samples() int {
	if d.Inputs == nil {
		return 0
	}
	_, c := d.Inputs.Dims()
	return c
}

func (d Dataset) Features() int {
	if d.Inputs == nil {
		return 0
	}
	r, _ := d.Inputs.Dims()
	return r
}

// Column returns a copy of sample j.
func (d Dataset) Column(j int) []float64 {
	return mat.Col(nil, j, d.Inputs)
}

// Window returns the samples [offset, offset+size) after clamping both to the
// available range. The result shares storage with d.
func (d Dataset) Window(offset, size int) Dataset {
	offset, size = ClampWindow(d.Samples(), offset, size)
	return Dataset{
		Inputs:       d.Inputs.Slice(0, d.Features(), offset, offset+size).(*mat.Dense),
		Targets:      d.Targets[offset : offset+size],
		ReducedWidth: d.ReducedWidth,
	}
}

// WindowPercent converts offset and size percentages of the available
// samples into a clamped window.
func (d Dataset) WindowPercent(offsetPct, sizePct float64) Dataset {
	offset, size := PercentWindow(d.Samples(), offsetPct, sizePct)
	return d.Window(offset, size)
}

// PercentWindow maps percentages onto sample indices and clamps the result.
func PercentWindow(samples int, offsetPct, sizePct float64) (int, int) {
	offset := int(math.Round(offsetPct / 100 * float64(samples)))
	size := int(math.Round(sizePct / 100 * float64(samples)))
	return ClampWindow(samples, offset, size)
}

// ClampWindow pulls a window inside [0, samples). Windows too small are grown
// to minWindow (or to every sample when fewer exist), shifting the offset
// back if needed.
func ClampWindow(samples, offset, size int) (int, int) {
	if samples <= 0 {
		return 0, 0
	}
	floor := minWindow
	if samples < floor {
		floor = samples
	}
	if size < floor {
		size = floor
	}
	if size > samples {
		size = samples
	}
	if offset < 0 {
		offset = 0
	}
	if offset+size > samples {
		offset = samples - size
	}
	return offset, size
}

// Split keeps the leading samples for training and the trailing
// validationFraction for validation, preserving time order.
func (d Dataset) Split(validationFraction float64) (Dataset, Dataset, error) {
	if !(validationFraction > 0 && validationFraction < 1) {
		return Dataset{}, Dataset{}, fmt.Errorf("validation fraction must be in (0, 1), got %g", validationFraction)
	}
	samples := d.Samples()
	validation := int(math.Round(validationFraction * float64(samples)))
	train := samples - validation
	if validation < 1 || train < 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("%w: %d samples cannot be split by %g", ErrShape, samples, validationFraction)
	}
	features := d.Features()
	return Dataset{
			Inputs:       d.Inputs.Slice(0, features, 0, train).(*mat.Dense),
			Targets:      d.Targets[:train],
			ReducedWidth: d.ReducedWidth,
		}, Dataset{
			Inputs:       d.Inputs.Slice(0, features, train, samples).(*mat.Dense),
			Targets:      d.Targets[train:],
			ReducedWidth: d.ReducedWidth,
		}, nil
}

type Shape struct {
	Features     int
	Samples      int
	ReducedWidth int
}

func (d Dataset) Shape() Shape {
	return Shape{Features: d.Features(), Samples: d.Samples(), ReducedWidth: d.ReducedWidth}
}
