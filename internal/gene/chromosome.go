package gene

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrSchemaMismatch = errors.New("chromosome schema mismatch")
	ErrUnknownGene    = errors.New("unknown gene")
)

// Gene names of the shared expert schema. RNN experts ignore the RBF genes and
// RBF experts ignore the RNN genes.
const (
	Epochs           = "epochs"
	DatabaseB        = "database_b"
	TrainOffset      = "train_offset_pct"
	TrainSize        = "train_size_pct"
	ComplementCoding = "complement_coding"
	PCA              = "pca"
	PCIndex          = "pc_index"
	RBFTolerance     = "rbf_tolerance"
	RBFSpread        = "rbf_spread"
	Hidden1          = "hidden1"
	Hidden2          = "hidden2"
)

// Chromosome is an ordered, fixed-schema list of genes. It is treated as a
// value: every operation returns a new chromosome.
type Chromosome struct {
	genes []Gene
}

func NewChromosome(genes ...Gene) (Chromosome, error) {
	seen := make(map[string]struct{}, len(genes))
	for _, g := range genes {
		if err := g.validateRange(); err != nil {
			return Chromosome{}, err
		}
		if _, dup := seen[g.Name]; dup {
			return Chromosome{}, fmt.Errorf("duplicate gene %s", g.Name)
		}
		seen[g.Name] = struct{}{}
	}
	return Chromosome{genes: append([]Gene(nil), genes...)}, nil
}

// DefaultProto returns the proto-chromosome: gene ranges and granularities
// used to randomize new experts.
func DefaultProto() Chromosome {
	return Chromosome{genes: []Gene{
		{Name: Epochs, Min: 10, Max: 200, Granularity: 10, Value: 10},
		NewBoolGene(DatabaseB),
		{Name: TrainOffset, Min: 0, Max: 90, Granularity: 1},
		{Name: TrainSize, Min: 10, Max: 100, Granularity: 1, Value: 10},
		NewBoolGene(ComplementCoding),
		NewBoolGene(PCA),
		{Name: PCIndex, Min: 1, Max: 10, Granularity: 1, Value: 1},
		{Name: RBFTolerance, Min: 0.001, Max: 0.2, Granularity: 0.001, Value: 0.001},
		{Name: RBFSpread, Min: 0.1, Max: 10, Granularity: 0.1, Value: 0.1},
		{Name: Hidden1, Min: 1, Max: 20, Granularity: 1, Value: 1},
		{Name: Hidden2, Min: 0, Max: 10, Granularity: 1},
	}}
}

func (c Chromosome) Len() int {
	return len(c.genes)
}

func (c Chromosome) At(i int) Gene {
	return c.genes[i]
}

func (c Chromosome) Genes() []Gene {
	return append([]Gene(nil), c.genes...)
}

func (c Chromosome) Names() []string {
	names := make([]string, len(c.genes))
	for i, g := range c.genes {
		names[i] = g.Name
	}
	return names
}

func (c Chromosome) Lookup(name string) (Gene, bool) {
	for _, g := range c.genes {
		if g.Name == name {
			return g, true
		}
	}
	return Gene{}, false
}

// Value returns the named gene value or 0 when the schema lacks it.
func (c Chromosome) Value(name string) float64 {
	g, _ := c.Lookup(name)
	return g.Value
}

func (c Chromosome) Int(name string) int {
	g, _ := c.Lookup(name)
	return g.Int()
}

func (c Chromosome) Bool(name string) bool {
	g, _ := c.Lookup(name)
	return g.Bool()
}

// With returns a copy with the named gene replaced.
func (c Chromosome) With(g Gene) (Chromosome, error) {
	out := c.Genes()
	for i := range out {
		if out[i].Name == g.Name {
			out[i] = g
			return Chromosome{genes: out}, nil
		}
	}
	return Chromosome{}, fmt.Errorf("%w: %s", ErrUnknownGene, g.Name)
}

// Set returns a copy with the named gene holding v (quantized and clamped).
func (c Chromosome) Set(name string, v float64) (Chromosome, error) {
	g, ok := c.Lookup(name)
	if !ok {
		return Chromosome{}, fmt.Errorf("%w: %s", ErrUnknownGene, name)
	}
	return c.With(g.WithValue(v))
}

// Randomize draws every gene uniformly within its range.
func (c Chromosome) Randomize(rng *rand.Rand) Chromosome {
	out := make([]Gene, len(c.genes))
	for i, g := range c.genes {
		out[i] = g.Randomize(rng)
	}
	return Chromosome{genes: out}
}

// SameSchema reports whether both chromosomes carry the same gene names in
// the same order.
func (c Chromosome) SameSchema(other Chromosome) bool {
	if len(c.genes) != len(other.genes) {
		return false
	}
	for i := range c.genes {
		if c.genes[i].Name != other.genes[i].Name {
			return false
		}
	}
	return true
}

// Crossover swaps whole genes between the parents position by position with
// probability 0.5 and returns the two children.
func (c Chromosome) Crossover(rng *rand.Rand, other Chromosome) (Chromosome, Chromosome, error) {
	if !c.SameSchema(other) {
		return Chromosome{}, Chromosome{}, ErrSchemaMismatch
	}
	a := c.Genes()
	b := other.Genes()
	for i := range a {
		if rng.Float64() < 0.5 {
			a[i], b[i] = b[i], a[i]
		}
	}
	return Chromosome{genes: a}, Chromosome{genes: b}, nil
}

// Mutate mutates each gene independently with probability rate.
func (c Chromosome) Mutate(rng *rand.Rand, rate, dampingFactor float64) Chromosome {
	out := make([]Gene, len(c.genes))
	for i, g := range c.genes {
		if rng.Float64() < rate {
			g = g.Mutate(rng, dampingFactor)
		}
		out[i] = g
	}
	return Chromosome{genes: out}
}

func (c Chromosome) Validate() error {
	for _, g := range c.genes {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Chromosome) String() string {
	s := "{"
	for i, g := range c.genes {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", g.Name, g.Value)
	}
	return s + "}"
}
