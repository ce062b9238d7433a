package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"mixevo/internal/dataset"
	"mixevo/internal/expert"
	"mixevo/internal/gene"
	"mixevo/internal/logging"
	"mixevo/internal/metrics"
	"mixevo/internal/mixture"
)

// Settings are the run parameters recorded with a result.
type Settings struct {
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	SelectionSize  int     `json:"selection_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	DampingFactor  float64 `json:"damping_factor"`
	RNNExperts     int     `json:"rnn_experts"`
	RBFExperts     int     `json:"rbf_experts"`
	Workers        int     `json:"workers"`
	Pairing        string  `json:"pairing"`
	Trainer        string  `json:"trainer"`
}

type MonitorConfig struct {
	Proto          gene.Chromosome
	PopulationSize int
	SelectionSize  int
	Generations    int
	MutationRate   float64
	DampingFactor  float64
	RNNExperts     int
	RBFExperts     int
	Workers        int
	Seed           int64
	Pairing        Pairing
	Trainer        Trainer
	Observer       Observer
	Logger         *zap.Logger
	Metrics        *metrics.Collectors
}

type RunResult struct {
	Best             *mixture.Mixture
	BestFitness      float64
	FitnessHistory   []float64
	DiversityHistory []float64
	BestEverHistory  []float64
	Generations      []GenerationSummary
	FinalPopulation  []*mixture.Mixture
	Settings         Settings
}

// PopulationMonitor runs the generational loop. A monitor owns one seeded
// random source; Run is not safe for concurrent use.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
	log *zap.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Proto.Len() == 0 {
		cfg.Proto = gene.DefaultProto()
	}
	if err := cfg.Proto.Validate(); err != nil {
		return nil, fmt.Errorf("proto chromosome: %w", err)
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be >= 2")
	}
	if cfg.SelectionSize < 2 || cfg.SelectionSize > cfg.PopulationSize {
		return nil, fmt.Errorf("selection size must be in [2, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.DampingFactor < 0 {
		return nil, fmt.Errorf("damping factor must be >= 0")
	}
	if cfg.RNNExperts < 0 || cfg.RBFExperts < 0 || cfg.RNNExperts+cfg.RBFExperts == 0 {
		return nil, fmt.Errorf("mixtures need at least one expert")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Pairing == nil {
		cfg.Pairing = ShufflePairing{}
	}
	if cfg.Trainer == nil {
		cfg.Trainer = ParallelTrainer{Workers: cfg.Workers, Logger: cfg.Logger, Metrics: cfg.Metrics}
	}
	if cfg.Observer == nil {
		cfg.Observer = FuncObserver{}
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: logging.OrNop(cfg.Logger),
	}, nil
}

func (m *PopulationMonitor) Settings() Settings {
	return Settings{
		Seed:           m.cfg.Seed,
		PopulationSize: m.cfg.PopulationSize,
		SelectionSize:  m.cfg.SelectionSize,
		Generations:    m.cfg.Generations,
		MutationRate:   m.cfg.MutationRate,
		DampingFactor:  m.cfg.DampingFactor,
		RNNExperts:     m.cfg.RNNExperts,
		RBFExperts:     m.cfg.RBFExperts,
		Workers:        m.cfg.Workers,
		Pairing:        m.cfg.Pairing.Name(),
		Trainer:        m.cfg.Trainer.Name(),
	}
}

// Run evolves a fresh population for the configured number of generations.
// The context is checked at the start of every generation and by the trainer
// before each job. A training error aborts the run.
func (m *PopulationMonitor) Run(ctx context.Context, train, validation dataset.Dataset) (RunResult, error) {
	if err := train.Validate(); err != nil {
		return RunResult{}, fmt.Errorf("training data: %w", err)
	}
	if err := validation.Validate(); err != nil {
		return RunResult{}, fmt.Errorf("validation data: %w", err)
	}
	if train.Features() != validation.Features() {
		return RunResult{}, fmt.Errorf("%w: training has %d features, validation %d", dataset.ErrShape, train.Features(), validation.Features())
	}

	m.cfg.Observer.OnState(0, StateInit)
	population := make([]*mixture.Mixture, m.cfg.PopulationSize)
	for i := range population {
		population[i] = mixture.Random(m.rng, m.cfg.Proto, m.cfg.RNNExperts, m.cfg.RBFExperts)
	}

	result := RunResult{
		FitnessHistory:   make([]float64, 0, m.cfg.Generations),
		DiversityHistory: make([]float64, 0, m.cfg.Generations),
		BestEverHistory:  make([]float64, 0, m.cfg.Generations),
		Generations:      make([]GenerationSummary, 0, m.cfg.Generations),
		Settings:         m.Settings(),
	}

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		m.cfg.Observer.OnState(gen, StateTrainAll)
		start := time.Now()
		if err := m.trainAll(ctx, gen, population, train); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		trainingTime := time.Since(start)

		m.cfg.Observer.OnState(gen, StateEvaluate)
		if err := m.evaluateAll(ctx, population, validation); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}

		m.cfg.Observer.OnState(gen, StateRank)
		ranked := rank(population)
		best := ranked[0]
		if result.Best == nil || best.Fitness() > result.BestFitness {
			result.Best = best
			result.BestFitness = best.Fitness()
		}
		summary := m.summarize(gen, ranked, result.BestFitness, trainingTime)
		result.FitnessHistory = append(result.FitnessHistory, summary.BestFitness)
		result.DiversityHistory = append(result.DiversityHistory, summary.Diversity)
		result.BestEverHistory = append(result.BestEverHistory, result.BestFitness)
		result.Generations = append(result.Generations, summary)

		m.cfg.Metrics.ObserveGeneration(summary.BestFitness, summary.MeanFitness, summary.BestEverFitness, summary.Diversity)
		m.log.Info("generation complete",
			zap.Int("generation", gen),
			zap.Float64("best", summary.BestFitness),
			zap.Float64("mean", summary.MeanFitness),
			zap.Float64("diversity", summary.Diversity),
			zap.Float64("best_ever", summary.BestEverFitness),
			zap.Int("degenerate", summary.Degenerate),
			zap.Duration("training", trainingTime),
		)
		m.cfg.Observer.OnGeneration(summary)

		if gen == m.cfg.Generations-1 {
			result.FinalPopulation = ranked
			break
		}

		m.cfg.Observer.OnState(gen, StateSelectCrossoverMutate)
		next, err := m.nextPopulation(ranked)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		population = next
	}

	m.cfg.Observer.OnState(m.cfg.Generations-1, StateDone)
	return result, nil
}

func (m *PopulationMonitor) trainAll(ctx context.Context, gen int, population []*mixture.Mixture, train dataset.Dataset) error {
	experts := make([]expert.Expert, 0, len(population)*(m.cfg.RNNExperts+m.cfg.RBFExperts))
	for _, mix := range population {
		experts = append(experts, mix.Experts()...)
	}
	return m.cfg.Trainer.Train(ctx, experts, train, func(trained, total int) {
		m.cfg.Observer.OnProgress(gen, trained, total)
	})
}

// evaluateAll scores mixtures concurrently; each mixture owns its experts.
func (m *PopulationMonitor) evaluateAll(ctx context.Context, population []*mixture.Mixture, validation dataset.Dataset) error {
	p := pool.New().
		WithMaxGoroutines(m.cfg.Workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, mix := range population {
		mix := mix
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := mix.ComputeFitness(validation); err != nil {
				return fmt.Errorf("fitness of %s: %w", mix.ID, err)
			}
			return nil
		})
	}
	return p.Wait()
}

// rank returns mixtures sorted by descending fitness. Equal fitness keeps
// population order.
func rank(population []*mixture.Mixture) []*mixture.Mixture {
	ranked := append([]*mixture.Mixture(nil), population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness() > ranked[j].Fitness()
	})
	return ranked
}

func (m *PopulationMonitor) summarize(gen int, ranked []*mixture.Mixture, bestEver float64, trainingTime time.Duration) GenerationSummary {
	fitness := make([]float64, len(ranked))
	chromosomes := make([]gene.Chromosome, 0, len(ranked)*ranked[0].Size())
	degenerate := 0
	for i, mix := range ranked {
		fitness[i] = mix.Fitness()
		chromosomes = append(chromosomes, mix.Chromosomes()...)
		degenerate += mix.Degenerate()
	}
	return GenerationSummary{
		Generation:      gen,
		BestFitness:     fitness[0],
		MeanFitness:     stat.Mean(fitness, nil),
		MinFitness:      fitness[len(fitness)-1],
		Diversity:       gene.Diversity(chromosomes),
		BestEverFitness: bestEver,
		BestMixtureID:   ranked[0].ID,
		Degenerate:      degenerate,
		TrainingTime:    trainingTime,
	}
}

// nextPopulation keeps the top PopulationSize-SelectionSize mixtures as
// elites, fills the rest with crossover children of the top SelectionSize,
// then mutates every member so all experts are new and untrained.
func (m *PopulationMonitor) nextPopulation(ranked []*mixture.Mixture) ([]*mixture.Mixture, error) {
	size := m.cfg.PopulationSize
	eliteCount := size - m.cfg.SelectionSize
	next := make([]*mixture.Mixture, 0, size)
	next = append(next, ranked[:eliteCount]...)

	gap := size - eliteCount
	pairs, err := m.cfg.Pairing.Pairs(m.rng, ranked[:m.cfg.SelectionSize], (gap+1)/2)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	for _, pair := range pairs {
		a, b, err := pair[0].Crossover(m.rng, pair[1])
		if err != nil {
			return nil, err
		}
		next = append(next, a)
		if len(next) < size {
			next = append(next, b)
		}
	}

	for i, mix := range next {
		next[i] = mix.Mutate(m.rng, m.cfg.MutationRate, m.cfg.DampingFactor)
	}
	return next, nil
}
