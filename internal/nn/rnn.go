package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RecurrentRest is the value recurrent registers hold after Reset: the
// midpoint of the logistic sigmoid.
const RecurrentRest = 0.5

var ErrWeightCount = errors.New("weight vector length mismatch")

type LayerSpec struct {
	Nodes      int
	Activation string
	Recurrent  bool
}

type layer struct {
	spec   LayerSpec
	act    Activation
	inputs int
	// w is nodes x inputs, row major by node.
	w []float64
	// wr is nodes x nodes and only present for recurrent layers.
	wr   []float64
	bias []float64
	// state is the layer output from the previous time step.
	state []float64
}

// Network is a layered partially-recurrent network. Each layer computes
// z = act(W*x + bias + Wr*r) where r is its own output from the previous step.
// The last layer carries no bias.
type Network struct {
	inputs int
	layers []layer
}

func NewNetwork(inputs int, specs []LayerSpec) (*Network, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("network input width must be > 0")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("network requires at least one layer")
	}
	n := &Network{inputs: inputs, layers: make([]layer, len(specs))}
	width := inputs
	for i, spec := range specs {
		if spec.Nodes <= 0 {
			return nil, fmt.Errorf("layer %d: node count must be > 0", i)
		}
		act, err := GetActivation(spec.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		l := layer{
			spec:   spec,
			act:    act,
			inputs: width,
			w:      make([]float64, spec.Nodes*width),
			state:  make([]float64, spec.Nodes),
		}
		if spec.Recurrent {
			l.wr = make([]float64, spec.Nodes*spec.Nodes)
		}
		if i < len(specs)-1 {
			l.bias = make([]float64, spec.Nodes)
		}
		n.layers[i] = l
		width = spec.Nodes
	}
	n.Reset()
	return n, nil
}

func (n *Network) InputWidth() int {
	return n.inputs
}

func (n *Network) OutputWidth() int {
	return n.layers[len(n.layers)-1].spec.Nodes
}

func (n *Network) Layers() []LayerSpec {
	specs := make([]LayerSpec, len(n.layers))
	for i, l := range n.layers {
		specs[i] = l.spec
	}
	return specs
}

// Reset returns every recurrent register to RecurrentRest.
func (n *Network) Reset() {
	for i := range n.layers {
		for j := range n.layers[i].state {
			n.layers[i].state[j] = RecurrentRest
		}
	}
}

// State returns a copy of the recurrent register of layer i.
func (n *Network) State(i int) []float64 {
	return append([]float64(nil), n.layers[i].state...)
}

// Forward applies one time step and advances the recurrent state.
func (n *Network) Forward(x []float64) ([]float64, error) {
	if len(x) != n.inputs {
		return nil, fmt.Errorf("input width mismatch: got=%d want=%d", len(x), n.inputs)
	}
	in := x
	for i := range n.layers {
		l := &n.layers[i]
		out := make([]float64, l.spec.Nodes)
		l.activate(in, l.state, out, nil)
		copy(l.state, out)
		in = out
	}
	return append([]float64(nil), in...), nil
}

// activate computes the layer output for input x and recurrent input r into
// z, storing pre-activations into a when a is non-nil.
func (l *layer) activate(x, r, z, a []float64) {
	for j := 0; j < l.spec.Nodes; j++ {
		sum := floats.Dot(l.w[j*l.inputs:(j+1)*l.inputs], x)
		if l.wr != nil {
			sum += floats.Dot(l.wr[j*l.spec.Nodes:(j+1)*l.spec.Nodes], r)
		}
		if l.bias != nil {
			sum += l.bias[j]
		}
		if a != nil {
			a[j] = sum
		}
		z[j] = l.act.Func(sum)
	}
}

// WeightCount is the length of the weight vector: per layer, input weights,
// then recurrent weights, then biases.
func (n *Network) WeightCount() int {
	count := 0
	for _, l := range n.layers {
		count += len(l.w) + len(l.wr) + len(l.bias)
	}
	return count
}

func (n *Network) WeightVector() []float64 {
	out := make([]float64, 0, n.WeightCount())
	for _, l := range n.layers {
		out = append(out, l.w...)
		out = append(out, l.wr...)
		out = append(out, l.bias...)
	}
	return out
}

func (n *Network) SetWeightVector(w []float64) error {
	if len(w) != n.WeightCount() {
		return fmt.Errorf("%w: got=%d want=%d", ErrWeightCount, len(w), n.WeightCount())
	}
	offset := 0
	for i := range n.layers {
		l := &n.layers[i]
		offset += copy(l.w, w[offset:])
		offset += copy(l.wr, w[offset:offset+len(l.wr)])
		offset += copy(l.bias, w[offset:offset+len(l.bias)])
	}
	return nil
}

// Randomize draws every weight uniformly from [-scale, scale].
// Draws follow the weight-vector layout.
func (n *Network) Randomize(rng *rand.Rand, scale float64) {
	for i := range n.layers {
		l := &n.layers[i]
		for _, ws := range [][]float64{l.w, l.wr, l.bias} {
			for k := range ws {
				ws[k] = (2*rng.Float64() - 1) * scale
			}
		}
	}
}

// Clone returns an independent copy including the recurrent state.
func (n *Network) Clone() *Network {
	out := &Network{inputs: n.inputs, layers: make([]layer, len(n.layers))}
	for i, l := range n.layers {
		out.layers[i] = layer{
			spec:   l.spec,
			act:    l.act,
			inputs: l.inputs,
			w:      append([]float64(nil), l.w...),
			state:  append([]float64(nil), l.state...),
		}
		if l.wr != nil {
			out.layers[i].wr = append([]float64(nil), l.wr...)
		}
		if l.bias != nil {
			out.layers[i].bias = append([]float64(nil), l.bias...)
		}
	}
	return out
}
