package evo

import "time"

type State int

const (
	StateInit State = iota
	StateTrainAll
	StateEvaluate
	StateRank
	StateSelectCrossoverMutate
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateTrainAll:
		return "train_all"
	case StateEvaluate:
		return "evaluate"
	case StateRank:
		return "rank"
	case StateSelectCrossoverMutate:
		return "select_crossover_mutate"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// GenerationSummary is reported once per generation after ranking.
type GenerationSummary struct {
	Generation      int           `json:"generation"`
	BestFitness     float64       `json:"best_fitness"`
	MeanFitness     float64       `json:"mean_fitness"`
	MinFitness      float64       `json:"min_fitness"`
	Diversity       float64       `json:"diversity"`
	BestEverFitness float64       `json:"best_ever_fitness"`
	BestMixtureID   string        `json:"best_mixture_id"`
	Degenerate      int           `json:"degenerate"`
	TrainingTime    time.Duration `json:"training_time"`
}

// Observer is notified from the goroutine running the monitor. OnProgress is
// serialized but may be called from a training worker.
type Observer interface {
	OnState(generation int, state State)
	OnProgress(generation, trained, total int)
	OnGeneration(summary GenerationSummary)
}

// FuncObserver adapts optional callbacks to Observer.
type FuncObserver struct {
	State      func(generation int, state State)
	Progress   func(generation, trained, total int)
	Generation func(summary GenerationSummary)
}

func (o FuncObserver) OnState(generation int, state State) {
	if o.State != nil {
		o.State(generation, state)
	}
}

func (o FuncObserver) OnProgress(generation, trained, total int) {
	if o.Progress != nil {
		o.Progress(generation, trained, total)
	}
}

func (o FuncObserver) OnGeneration(summary GenerationSummary) {
	if o.Generation != nil {
		o.Generation(summary)
	}
}
