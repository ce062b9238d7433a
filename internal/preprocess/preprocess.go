// Package preprocess is the default input pipeline applied by experts before
// training and prediction: feature subset selection, optional complement
// coding and optional PCA projection fitted on the training window.
package preprocess

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mixevo/internal/dataset"
)

type Settings struct {
	// DatabaseB selects every feature; otherwise only the reduced subset.
	DatabaseB        bool
	ComplementCoding bool
	PCA              bool
	// Components is the number of leading principal components kept.
	Components int
}

func (s Settings) String() string {
	parts := []string{"A"}
	if s.DatabaseB {
		parts[0] = "B"
	}
	if s.ComplementCoding {
		parts = append(parts, "cc")
	}
	if s.PCA {
		parts = append(parts, fmt.Sprintf("pca%d", s.Components))
	}
	return strings.Join(parts, "+")
}

// Pipeline is fitted once and then read-only.
type Pipeline struct {
	settings Settings
	features int
	// PCA state, nil when projection is off or could not be fitted.
	mean  []float64
	basis *mat.Dense
	// Fallback is set when PCA was requested but the window could not
	// support it.
	Fallback bool
}

// Fit prepares the pipeline on a training window. PCA components are
// recomputed from the window itself.
func Fit(settings Settings, window dataset.Dataset) (*Pipeline, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{settings: settings, features: window.ReducedWidth}
	if settings.DatabaseB {
		p.features = window.Features()
	}
	if !settings.PCA {
		return p, nil
	}

	samples := window.Samples()
	width := p.codedWidth()
	if samples < 2 {
		p.Fallback = true
		return p, nil
	}
	coded := mat.NewDense(samples, width, nil)
	for j := 0; j < samples; j++ {
		coded.SetRow(j, p.code(window.Column(j)))
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(coded, nil); !ok {
		p.Fallback = true
		return p, nil
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, available := vecs.Dims()
	k := settings.Components
	if k < 1 {
		k = 1
	}
	if k > available {
		k = available
	}

	p.mean = make([]float64, width)
	for i := range p.mean {
		p.mean[i] = stat.Mean(mat.Col(nil, i, coded), nil)
	}
	p.basis = mat.DenseCopyOf(vecs.Slice(0, width, 0, k))
	return p, nil
}

func (p *Pipeline) Settings() Settings {
	return p.settings
}

// OutputWidth is the length of vectors produced by Apply.
func (p *Pipeline) OutputWidth() int {
	if p.basis != nil {
		_, k := p.basis.Dims()
		return k
	}
	return p.codedWidth()
}

func (p *Pipeline) codedWidth() int {
	if p.settings.ComplementCoding {
		return 2 * p.features
	}
	return p.features
}

// Apply maps one full feature vector through the fitted pipeline.
func (p *Pipeline) Apply(x []float64) []float64 {
	coded := p.code(x)
	if p.basis == nil {
		return coded
	}
	centred := make([]float64, len(coded))
	for i, v := range coded {
		centred[i] = v - p.mean[i]
	}
	var out mat.VecDense
	out.MulVec(p.basis.T(), mat.NewVecDense(len(centred), centred))
	return append([]float64(nil), out.RawVector().Data...)
}

// ApplyAll maps every sample of d, in order.
func (p *Pipeline) ApplyAll(d dataset.Dataset) [][]float64 {
	out := make([][]float64, d.Samples())
	for j := range out {
		out[j] = p.Apply(d.Column(j))
	}
	return out
}

func (p *Pipeline) code(x []float64) []float64 {
	out := make([]float64, 0, p.codedWidth())
	out = append(out, x[:p.features]...)
	if p.settings.ComplementCoding {
		for _, v := range x[:p.features] {
			out = append(out, 1-v)
		}
	}
	return out
}

// EstimateWidth predicts OutputWidth without fitting.
func EstimateWidth(settings Settings, shape dataset.Shape) int {
	width := shape.ReducedWidth
	if settings.DatabaseB {
		width = shape.Features
	}
	if settings.ComplementCoding {
		width *= 2
	}
	if settings.PCA && settings.Components > 0 && settings.Components < width {
		width = settings.Components
	}
	return width
}
