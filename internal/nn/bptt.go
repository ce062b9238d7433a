package nn

import (
	"fmt"
)

// SequenceObjective measures a network against an ordered training sequence.
// Recurrent state starts at RecurrentRest for every evaluation and carries
// across exemplars. The error is half the summed squared output error.
type SequenceObjective struct {
	net     *Network
	inputs  [][]float64
	targets [][]float64
}

func NewSequenceObjective(net *Network, inputs, targets [][]float64) (*SequenceObjective, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("training sequence is empty")
	}
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("sequence length mismatch: inputs=%d targets=%d", len(inputs), len(targets))
	}
	for t := range inputs {
		if len(inputs[t]) != net.InputWidth() {
			return nil, fmt.Errorf("exemplar %d: input width %d, want %d", t, len(inputs[t]), net.InputWidth())
		}
		if len(targets[t]) != net.OutputWidth() {
			return nil, fmt.Errorf("exemplar %d: target width %d, want %d", t, len(targets[t]), net.OutputWidth())
		}
	}
	return &SequenceObjective{net: net.Clone(), inputs: inputs, targets: targets}, nil
}

func (o *SequenceObjective) Dimension() int {
	return o.net.WeightCount()
}

// Error runs the sequence forward with weights w.
func (o *SequenceObjective) Error(w []float64) float64 {
	if err := o.net.SetWeightVector(w); err != nil {
		panic(err)
	}
	o.net.Reset()
	total := 0.0
	for t, x := range o.inputs {
		out, _ := o.net.Forward(x)
		for k, y := range out {
			d := y - o.targets[t][k]
			total += 0.5 * d * d
		}
	}
	return total
}

// Evaluate returns the error and its gradient with respect to w, obtained by
// backpropagation through the whole unrolled sequence.
func (o *SequenceObjective) Evaluate(w []float64) (float64, []float64) {
	if err := o.net.SetWeightVector(w); err != nil {
		panic(err)
	}
	o.net.Reset()

	layers := o.net.layers
	steps := len(o.inputs)

	// Per step and layer: layer input x, recurrent input r, pre-activation a
	// and output z.
	type trace struct {
		x, r, a, z []float64
	}
	traces := make([][]trace, steps)
	total := 0.0
	for t, input := range o.inputs {
		traces[t] = make([]trace, len(layers))
		x := input
		for i := range layers {
			l := &layers[i]
			tr := trace{
				x: x,
				a: make([]float64, l.spec.Nodes),
				z: make([]float64, l.spec.Nodes),
			}
			if l.wr != nil {
				tr.r = append([]float64(nil), l.state...)
			}
			l.activate(tr.x, tr.r, tr.z, tr.a)
			copy(l.state, tr.z)
			traces[t][i] = tr
			x = tr.z
		}
		out := traces[t][len(layers)-1].z
		for k, y := range out {
			d := y - o.targets[t][k]
			total += 0.5 * d * d
		}
	}

	grad := make([]float64, len(w))
	offsets := make([]int, len(layers))
	offset := 0
	for i, l := range layers {
		offsets[i] = offset
		offset += len(l.w) + len(l.wr) + len(l.bias)
	}

	// carry[i] holds dE/dz_i(t) flowing back from step t+1 through Wr_i.
	carry := make([][]float64, len(layers))
	for i, l := range layers {
		carry[i] = make([]float64, l.spec.Nodes)
	}

	last := len(layers) - 1
	for t := steps - 1; t >= 0; t-- {
		out := traces[t][last].z
		upstream := make([]float64, len(out))
		for k, y := range out {
			upstream[k] = y - o.targets[t][k]
		}
		for i := last; i >= 0; i-- {
			l := &layers[i]
			tr := traces[t][i]
			nodes := l.spec.Nodes
			delta := make([]float64, nodes)
			for j := 0; j < nodes; j++ {
				dz := upstream[j]
				if l.wr != nil {
					dz += carry[i][j]
				}
				delta[j] = dz * l.act.Derivative(tr.a[j], tr.z[j])
			}

			base := offsets[i]
			for j, d := range delta {
				if d == 0 {
					continue
				}
				row := grad[base+j*l.inputs : base+(j+1)*l.inputs]
				for k, xv := range tr.x {
					row[k] += d * xv
				}
			}
			base += len(l.w)
			if l.wr != nil {
				for j, d := range delta {
					row := grad[base+j*nodes : base+(j+1)*nodes]
					for k, rv := range tr.r {
						row[k] += d * rv
					}
				}
				base += len(l.wr)
				next := make([]float64, nodes)
				for j, d := range delta {
					for k := 0; k < nodes; k++ {
						next[k] += l.wr[j*nodes+k] * d
					}
				}
				carry[i] = next
			}
			for j, d := range delta {
				if l.bias != nil {
					grad[base+j] += d
				}
			}

			if i > 0 {
				down := make([]float64, l.inputs)
				for j, d := range delta {
					for k := 0; k < l.inputs; k++ {
						down[k] += l.w[j*l.inputs+k] * d
					}
				}
				upstream = down
			}
		}
	}
	return total, grad
}
