package storage

import (
	"time"

	"mixevo/internal/model"
)

func sampleRun(id string, createdAt time.Time) model.RunRecord {
	run := model.RunRecord{
		ID:        id,
		CreatedAt: createdAt,
		Settings: model.RunSettings{
			Seed:           7,
			PopulationSize: 4,
			SelectionSize:  2,
			Generations:    2,
			RNNExperts:     1,
			RBFExperts:     1,
			Pairing:        "shuffle",
		},
		Data: model.DataRecord{SyntheticSeed: 3, Samples: 40, Features: 4, ReducedWidth: 2, ValidationFraction: 0.5, TrainingSamples: 20, ValidationSamples: 20},
		Best: model.MixtureRecord{
			ID:      "m1",
			Fitness: 0.65,
			Experts: []model.ExpertRecord{
				{Kind: "rnn", Seed: 99, Preprocessing: "A", Genes: []model.GeneRecord{{Name: "epochs", Min: 10, Max: 200, Granularity: 10, Value: 50}}},
				{Kind: "rbf", Preprocessing: "B+cc", Degenerate: true, Genes: []model.GeneRecord{{Name: "rbf_spread", Min: 0.1, Max: 10, Granularity: 0.1, Value: 1.2}}},
			},
		},
		FitnessHistory:   []float64{0.55, 0.65},
		DiversityHistory: []float64{0.08, 0.05},
		BestEverHistory:  []float64{0.55, 0.65},
		Generations: []model.GenerationRecord{
			{Generation: 0, BestFitness: 0.55, MeanFitness: 0.5},
			{Generation: 1, BestFitness: 0.65, MeanFitness: 0.52},
		},
	}
	Stamp(&run.VersionedRecord)
	Stamp(&run.Best.VersionedRecord)
	return run
}
