package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type GeneRecord struct {
	Name        string  `json:"name"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Granularity float64 `json:"granularity"`
	Value       float64 `json:"value"`
}

type ExpertRecord struct {
	Kind          string       `json:"kind"`
	Seed          int64        `json:"seed,omitempty"`
	Preprocessing string       `json:"preprocessing"`
	Degenerate    bool         `json:"degenerate,omitempty"`
	Genes         []GeneRecord `json:"genes"`
}

type MixtureRecord struct {
	VersionedRecord
	ID      string         `json:"id"`
	Fitness float64        `json:"fitness"`
	Experts []ExpertRecord `json:"experts"`
}

type GenerationRecord struct {
	Generation      int     `json:"generation"`
	BestFitness     float64 `json:"best_fitness"`
	MeanFitness     float64 `json:"mean_fitness"`
	MinFitness      float64 `json:"min_fitness"`
	Diversity       float64 `json:"diversity"`
	BestEverFitness float64 `json:"best_ever_fitness"`
	BestMixtureID   string  `json:"best_mixture_id"`
	Degenerate      int     `json:"degenerate"`
	TrainingMillis  int64   `json:"training_ms"`
}

type RunSettings struct {
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

// DataRecord describes the matrices a run was trained and scored on, with
// enough detail to rebuild them.
type DataRecord struct {
	CSV                string  `json:"csv,omitempty"`
	SyntheticSeed      int64   `json:"synthetic_seed,omitempty"`
	Samples            int     `json:"samples"`
	Features           int     `json:"features"`
	ReducedWidth       int     `json:"reduced_width"`
	ValidationFraction float64 `json:"validation_fraction"`
	TrainingSamples    int     `json:"training_samples"`
	ValidationSamples  int     `json:"validation_samples"`
}

type RunRecord struct {
	VersionedRecord
	ID               string             `json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	Settings         RunSettings        `json:"settings"`
	Data             DataRecord         `json:"data"`
	Proto            []GeneRecord       `json:"proto"`
	Best             MixtureRecord      `json:"best"`
	FitnessHistory   []float64          `json:"fitness_history"`
	DiversityHistory []float64          `json:"diversity_history"`
	BestEverHistory  []float64          `json:"best_ever_history"`
	Generations      []GenerationRecord `json:"generations"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"best_fitness"`
}

func (r RunRecord) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		Generations: len(r.FitnessHistory),
		BestFitness: r.Best.Fitness,
	}
}
