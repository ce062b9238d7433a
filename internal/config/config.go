// Package config loads run configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"mixevo/internal/gene"
)

var ErrInvalid = errors.New("invalid config")

type DataConfig struct {
	// CSV is a file with one sample per row and the target in the last
	// column. When empty a synthetic series is generated.
	CSV          string `yaml:"csv"`
	Samples      int    `yaml:"samples"`
	Features     int    `yaml:"features"`
	ReducedWidth int    `yaml:"reduced_width"`
	// Seed for synthetic data; 0 uses the run seed.
	Seed int64 `yaml:"seed"`
}

// GeneOverride replaces the range of one proto-chromosome gene. Unset fields
// keep the default.
type GeneOverride struct {
	Name        string   `yaml:"name"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Granularity *float64 `yaml:"granularity"`
}

type RunConfig struct {
	RunID              string         `yaml:"run_id"`
	Seed               int64          `yaml:"seed"`
	PopulationSize     int            `yaml:"population_size"`
	SelectionSize      int            `yaml:"selection_size"`
	Generations        int            `yaml:"generations"`
	MutationRate       float64        `yaml:"mutation_rate"`
	DampingFactor      float64        `yaml:"damping_factor"`
	RNNExperts         int            `yaml:"rnn_experts"`
	RBFExperts         int            `yaml:"rbf_experts"`
	Workers            int            `yaml:"workers"`
	Pairing            string         `yaml:"pairing"`
	ValidationFraction float64        `yaml:"validation_fraction"`
	Store              string         `yaml:"store"`
	DBPath             string         `yaml:"db_path"`
	LogLevel           string         `yaml:"log_level"`
	LogFormat          string         `yaml:"log_format"`
	MetricsAddr        string         `yaml:"metrics_addr"`
	Data               DataConfig     `yaml:"data"`
	Genes              []GeneOverride `yaml:"genes"`
}

func Default() RunConfig {
	return RunConfig{
		Seed:               1,
		PopulationSize:     20,
		SelectionSize:      10,
		Generations:        10,
		MutationRate:       0.1,
		DampingFactor:      2,
		RNNExperts:         2,
		RBFExperts:         2,
		Workers:            runtime.NumCPU(),
		Pairing:            "shuffle",
		ValidationFraction: 0.25,
		LogLevel:           "info",
		LogFormat:          "console",
		Data: DataConfig{
			Samples:      400,
			Features:     8,
			ReducedWidth: 4,
		},
	}
}

// Load overlays the YAML file at path on Default and validates the result.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return RunConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays YAML on Default. Unknown keys are rejected.
func Parse(data []byte) (RunConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return RunConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func (c RunConfig) Validate() error {
	var problems []string
	if c.PopulationSize < 2 {
		problems = append(problems, "population_size must be >= 2")
	}
	if c.SelectionSize < 2 || c.SelectionSize > c.PopulationSize {
		problems = append(problems, "selection_size must be in [2, population_size]")
	}
	if c.Generations < 1 {
		problems = append(problems, "generations must be >= 1")
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		problems = append(problems, "mutation_rate must be in [0, 1]")
	}
	if c.DampingFactor < 0 {
		problems = append(problems, "damping_factor must be >= 0")
	}
	if c.RNNExperts < 0 || c.RBFExperts < 0 || c.RNNExperts+c.RBFExperts == 0 {
		problems = append(problems, "rnn_experts + rbf_experts must be > 0")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must be >= 0")
	}
	switch c.Pairing {
	case "", "shuffle", "quality":
	default:
		problems = append(problems, fmt.Sprintf("unknown pairing %q", c.Pairing))
	}
	if !(c.ValidationFraction > 0 && c.ValidationFraction < 1) {
		problems = append(problems, "validation_fraction must be in (0, 1)")
	}
	switch c.Store {
	case "", "memory", "file", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unknown store %q", c.Store))
	}
	if c.Data.CSV == "" {
		if c.Data.Samples < 4 {
			problems = append(problems, "data.samples must be >= 4")
		}
		if c.Data.Features < 1 {
			problems = append(problems, "data.features must be >= 1")
		}
	}
	if c.Data.ReducedWidth < 1 || (c.Data.CSV == "" && c.Data.ReducedWidth > c.Data.Features) {
		problems = append(problems, "data.reduced_width must be in [1, data.features]")
	}
	if _, err := c.Proto(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Proto returns the default proto-chromosome with gene overrides applied.
func (c RunConfig) Proto() (gene.Chromosome, error) {
	proto := gene.DefaultProto()
	seen := make(map[string]bool, len(c.Genes))
	for _, o := range c.Genes {
		if seen[o.Name] {
			return gene.Chromosome{}, fmt.Errorf("gene %s overridden twice", o.Name)
		}
		seen[o.Name] = true

		g, ok := proto.Lookup(o.Name)
		if !ok {
			return gene.Chromosome{}, fmt.Errorf("%w: %s", gene.ErrUnknownGene, o.Name)
		}
		lo, hi, step := g.Min, g.Max, g.Granularity
		if o.Min != nil {
			lo = *o.Min
		}
		if o.Max != nil {
			hi = *o.Max
		}
		if o.Granularity != nil {
			step = *o.Granularity
		}
		updated, err := gene.NewGene(o.Name, lo, hi, step)
		if err != nil {
			return gene.Chromosome{}, fmt.Errorf("gene %s: %w", o.Name, err)
		}
		proto, err = proto.With(updated)
		if err != nil {
			return gene.Chromosome{}, err
		}
	}
	return proto, nil
}
