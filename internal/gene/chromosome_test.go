package gene

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProtoIsValid(t *testing.T) {
	proto := DefaultProto()
	require.NoError(t, proto.Validate())
	assert.Equal(t, []string{
		Epochs, DatabaseB, TrainOffset, TrainSize, ComplementCoding, PCA,
		PCIndex, RBFTolerance, RBFSpread, Hidden1, Hidden2,
	}, proto.Names())
	for _, name := range []string{DatabaseB, ComplementCoding, PCA} {
		g, ok := proto.Lookup(name)
		require.True(t, ok)
		assert.True(t, g.IsBool(), name)
	}
}

func TestRandomizeProducesValidChromosomes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	proto := DefaultProto()
	for i := 0; i < 200; i++ {
		c := proto.Randomize(rng)
		require.NoError(t, c.Validate())
		require.True(t, c.SameSchema(proto))
	}
}

func TestCrossoverPreservesSchema(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	proto := DefaultProto()
	for i := 0; i < 100; i++ {
		a := proto.Randomize(rng)
		b := proto.Randomize(rng)
		childA, childB, err := a.Crossover(rng, b)
		require.NoError(t, err)
		assert.Equal(t, a.Names(), childA.Names())
		assert.Equal(t, a.Names(), childB.Names())
		require.NoError(t, childA.Validate())
		require.NoError(t, childB.Validate())
	}
}

func TestCrossoverSwapsWholeGenes(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	proto := DefaultProto()
	a := proto.Randomize(rng)
	b := proto.Randomize(rng)
	childA, childB, err := a.Crossover(rng, b)
	require.NoError(t, err)
	for i := 0; i < a.Len(); i++ {
		ga, gb := childA.At(i), childB.At(i)
		fromA := ga == a.At(i) && gb == b.At(i)
		swapped := ga == b.At(i) && gb == a.At(i)
		assert.True(t, fromA || swapped, "gene %s interpolated", ga.Name)
	}
}

func TestCrossoverSwapRateIsHalf(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	x := Gene{Name: "x", Min: 0, Max: 1, Granularity: 1, Value: 0}
	y := Gene{Name: "y", Min: 0, Max: 1, Granularity: 1, Value: 0}
	a, err := NewChromosome(x.WithValue(0), y.WithValue(0))
	require.NoError(t, err)
	b, err := NewChromosome(x.WithValue(1), y.WithValue(1))
	require.NoError(t, err)

	swaps := 0
	const trials = 10000
	for i := 0; i < trials; i++ {
		child, _, err := a.Crossover(rng, b)
		require.NoError(t, err)
		if child.Value("x") == 1 {
			swaps++
		}
	}
	assert.InDelta(t, 0.5, float64(swaps)/trials, 0.03)
}

func TestCrossoverRejectsDifferentSchemas(t *testing.T) {
	a, err := NewChromosome(NewBoolGene("a"))
	require.NoError(t, err)
	b, err := NewChromosome(NewBoolGene("b"))
	require.NoError(t, err)
	_, _, err = a.Crossover(rand.New(rand.NewSource(1)), b)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestMutateRateZeroKeepsValues(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	c := DefaultProto().Randomize(rng)
	assert.Equal(t, c.Genes(), c.Mutate(rng, 0, 0).Genes())
}

func TestMutateRateOneWithZeroDampingFlipsEveryBool(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	c := DefaultProto().Randomize(rng)
	mutated := c.Mutate(rng, 1, 0)
	for _, name := range []string{DatabaseB, ComplementCoding, PCA} {
		assert.NotEqual(t, c.Bool(name), mutated.Bool(name), name)
	}
	require.NoError(t, mutated.Validate())
}

func TestMutateDoesNotAlterReceiver(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	c := DefaultProto().Randomize(rng)
	before := c.Genes()
	_ = c.Mutate(rng, 1, 0)
	assert.Equal(t, before, c.Genes())
}

func TestSetAndLookup(t *testing.T) {
	c := DefaultProto()
	c2, err := c.Set(Hidden1, 7.4)
	require.NoError(t, err)
	assert.Equal(t, 7, c2.Int(Hidden1))
	assert.Equal(t, 1, c.Int(Hidden1))

	_, err = c.Set("nope", 1)
	require.ErrorIs(t, err, ErrUnknownGene)

	c3, err := c.Set(Hidden1, 500)
	require.NoError(t, err)
	assert.Equal(t, 20, c3.Int(Hidden1))
}

func TestNewChromosomeRejectsDuplicates(t *testing.T) {
	_, err := NewChromosome(NewBoolGene("a"), NewBoolGene("a"))
	require.Error(t, err)
}

func TestDiversity(t *testing.T) {
	g := Gene{Name: "x", Min: 0, Max: 10, Granularity: 1}
	same, err := NewChromosome(g.WithValue(5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, Diversity([]Chromosome{same, same, same}))

	lo, err := NewChromosome(g.WithValue(0))
	require.NoError(t, err)
	hi, err := NewChromosome(g.WithValue(10))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, Diversity([]Chromosome{lo, hi}), 1e-12)
	assert.Equal(t, 0.0, Diversity([]Chromosome{lo}))
}
