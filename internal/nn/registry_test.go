package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGetActivation(t *testing.T) {
	resetActivationRegistryForTests()
	t.Cleanup(resetActivationRegistryForTests)

	err := RegisterActivation(Activation{
		Name:       "quad",
		Func:       func(a float64) float64 { return a * a },
		Derivative: func(a, _ float64) float64 { return 2 * a },
	})
	require.NoError(t, err)

	act, err := GetActivation("quad")
	require.NoError(t, err)
	assert.Equal(t, 9.0, act.Func(3))
	assert.Equal(t, 6.0, act.Derivative(3, 9))
}

func TestRegisterActivationValidation(t *testing.T) {
	resetActivationRegistryForTests()
	t.Cleanup(resetActivationRegistryForTests)

	require.Error(t, RegisterActivation(Activation{Func: func(a float64) float64 { return a }}))
	require.Error(t, RegisterActivation(Activation{Name: "nil-derivative", Func: func(a float64) float64 { return a }}))
	require.ErrorIs(t, RegisterActivation(Activation{
		Name:       Linear,
		Func:       func(a float64) float64 { return a },
		Derivative: func(_, _ float64) float64 { return 1 },
	}), ErrActivationExists)
}

func TestGetActivationNotFound(t *testing.T) {
	_, err := GetActivation("missing")
	require.ErrorIs(t, err, ErrActivationNotFound)
}

func TestBuiltinActivations(t *testing.T) {
	assert.Equal(t, []string{Linear, Logistic}, ListActivations())

	logistic, err := GetActivation(Logistic)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, logistic.Func(0), 1e-12)
	assert.InDelta(t, 0.25, logistic.Derivative(0, 0.5), 1e-12)

	linear, err := GetActivation(Linear)
	require.NoError(t, err)
	assert.Equal(t, -2.5, linear.Func(-2.5))
	assert.Equal(t, 1.0, linear.Derivative(-2.5, -2.5))
}
