package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	input := sampleRun("run-1", time.Unix(100, 0).UTC())
	require.NoError(t, store.SaveRun(ctx, input))

	output, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok, "expected persisted run")
	assert.Equal(t, "m1", output.Best.ID)
	assert.Len(t, output.Best.Experts, 2)
	assert.Equal(t, 0.65, output.FitnessHistory[1])

	output.FitnessHistory[0] = -1
	output.Best.Experts[0].Genes[0].Value = -1
	again, _, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0.55, again.FitnessHistory[0], "stored run mutated through a returned copy")
	assert.Equal(t, 50.0, again.Best.Experts[0].Genes[0].Value, "stored run mutated through a returned copy")
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	base := time.Unix(1000, 0).UTC()
	for _, run := range []struct {
		id string
		at time.Time
	}{
		{"c", base.Add(time.Minute)},
		{"b", base},
		{"a", base},
	} {
		require.NoError(t, store.SaveRun(ctx, sampleRun(run.id, run.at)), run.id)
	}

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, 2, runs[0].Generations)
	assert.Equal(t, 0.65, runs[0].BestFitness)

	require.NoError(t, store.DeleteRun(ctx, "b"))
	_, ok, err := store.GetRun(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "expected run b to be deleted")
}

func TestMemoryStoreRejectsMissingID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	assert.Error(t, store.SaveRun(ctx, sampleRun("x", time.Now())), "save before init")
	require.NoError(t, store.Init(ctx))
	assert.Error(t, store.SaveRun(ctx, sampleRun("", time.Now())), "missing id")
}
