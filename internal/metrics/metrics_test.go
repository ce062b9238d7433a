package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExpert(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveExpert("rnn", 10*time.Millisecond, false)
	c.ObserveExpert("rbf", time.Millisecond, true)
	c.ObserveExpert("rbf", time.Millisecond, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExpertsTrained.WithLabelValues("rnn")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ExpertsTrained.WithLabelValues("rbf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DegenerateExperts))
}

func TestObserveGeneration(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	c.ObserveGeneration(0.7, 0.55, 0.8, 0.12)
	c.ObserveGeneration(0.75, 0.6, 0.8, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Generations))
	assert.Equal(t, 0.75, testutil.ToFloat64(c.Fitness.WithLabelValues("best")))
	assert.Equal(t, 0.8, testutil.ToFloat64(c.Fitness.WithLabelValues("best_ever")))
	assert.Equal(t, 0.1, testutil.ToFloat64(c.Diversity))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilCollectorsAreNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveExpert("rnn", time.Second, true)
		c.ObserveGeneration(1, 1, 1, 0)
	})
}
