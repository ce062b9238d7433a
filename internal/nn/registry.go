package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	Logistic = "logistic"
	Linear   = "linear"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

type ActivationFunc func(a float64) float64

// DerivativeFunc returns dz/da given the pre-activation a and output z.
type DerivativeFunc func(a, z float64) float64

type Activation struct {
	Name       string
	Func       ActivationFunc
	Derivative DerivativeFunc
}

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]Activation
}{
	m: make(map[string]Activation),
}

func init() {
	initializeBuiltInActivations()
}

func initializeBuiltInActivations() {
	MustRegisterActivation(Activation{
		Name: Logistic,
		Func: func(a float64) float64 {
			return 1.0 / (1.0 + math.Exp(-a))
		},
		Derivative: func(_, z float64) float64 {
			return z * (1 - z)
		},
	})
	MustRegisterActivation(Activation{
		Name:       Linear,
		Func:       func(a float64) float64 { return a },
		Derivative: func(_, _ float64) float64 { return 1 },
	})
}

func RegisterActivation(act Activation) error {
	if act.Name == "" {
		return errors.New("activation name is required")
	}
	if act.Func == nil || act.Derivative == nil {
		return errors.New("activation function and derivative are required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[act.Name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, act.Name)
	}
	activationRegistry.m[act.Name] = act
	return nil
}

func MustRegisterActivation(act Activation) {
	if err := RegisterActivation(act); err != nil {
		panic(err)
	}
}

func GetActivation(name string) (Activation, error) {
	activationRegistry.mu.RLock()
	act, ok := activationRegistry.m[name]
	activationRegistry.mu.RUnlock()
	if !ok {
		return Activation{}, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return act, nil
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetActivationRegistryForTests() {
	activationRegistry.mu.Lock()
	activationRegistry.m = make(map[string]Activation)
	activationRegistry.mu.Unlock()
	initializeBuiltInActivations()
}
