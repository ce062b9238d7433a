// Package mixevo is the public entry point: run an evolution, persist the
// result, and read stored runs back.
package mixevo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mixevo/internal/config"
	"mixevo/internal/dataset"
	"mixevo/internal/evo"
	"mixevo/internal/gene"
	"mixevo/internal/logging"
	"mixevo/internal/metrics"
	"mixevo/internal/mixture"
	"mixevo/internal/model"
	"mixevo/internal/storage"
)

const (
	defaultDBPath  = "mixevo.db"
	defaultRunsDir = "runs"
)

type Options struct {
	StoreKind string
	// DBPath is the sqlite file or, for the file store, the runs directory.
	DBPath  string
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

type Client struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Collectors

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	Config   config.RunConfig
	Observer evo.Observer
}

type RunSummary struct {
	RunID            string
	BestFitness      float64
	FitnessHistory   []float64
	DiversityHistory []float64
	Best             model.MixtureRecord
	Elapsed          time.Duration
}

type RunsRequest struct {
	Limit int
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ReplayRequest struct {
	RunID   string
	Latest  bool
	Workers int
}

type ReplaySummary struct {
	RunID           string
	MixtureID       string
	RecordedFitness float64
	ReplayedFitness float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultPath(storeKind)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   store,
		log:     logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}, nil
}

func defaultPath(storeKind string) string {
	if storeKind == "file" {
		return defaultRunsDir
	}
	return defaultDBPath
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run evolves a population under req.Config and stores the result.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	data := DataRecordFor(cfg)
	train, validation, err := LoadData(data)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load data: %w", err)
	}
	data.Features = train.Features()
	data.TrainingSamples = train.Samples()
	data.ValidationSamples = validation.Samples()

	proto, err := cfg.Proto()
	if err != nil {
		return RunSummary{}, err
	}
	pairing, err := evo.PairingByName(cfg.Pairing)
	if err != nil {
		return RunSummary{}, err
	}

	logger := c.log.With(zap.String("run_id", runID))
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Proto:          proto,
		PopulationSize: cfg.PopulationSize,
		SelectionSize:  cfg.SelectionSize,
		Generations:    cfg.Generations,
		MutationRate:   cfg.MutationRate,
		DampingFactor:  cfg.DampingFactor,
		RNNExperts:     cfg.RNNExperts,
		RBFExperts:     cfg.RBFExperts,
		Workers:        cfg.Workers,
		Seed:           cfg.Seed,
		Pairing:        pairing,
		Observer:       req.Observer,
		Logger:         logger,
		Metrics:        c.metrics,
	})
	if err != nil {
		return RunSummary{}, err
	}

	logger.Info("run started",
		zap.Int("population", cfg.PopulationSize),
		zap.Int("generations", cfg.Generations),
		zap.Int("training_samples", data.TrainingSamples),
		zap.Int("validation_samples", data.ValidationSamples),
	)
	start := time.Now()
	result, err := monitor.Run(ctx, train, validation)
	if err != nil {
		return RunSummary{}, err
	}
	elapsed := time.Since(start)

	record := newRunRecord(runID, time.Now().UTC(), proto, data, result)
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	logger.Info("run stored",
		zap.Float64("best_fitness", result.BestFitness),
		zap.Duration("elapsed", elapsed),
	)

	return RunSummary{
		RunID:            runID,
		BestFitness:      result.BestFitness,
		FitnessHistory:   append([]float64(nil), result.FitnessHistory...),
		DiversityHistory: append([]float64(nil), result.DiversityHistory...),
		Best:             record.Best,
		Elapsed:          elapsed,
	}, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunSummary, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]model.GenerationRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	run, err := c.lookup(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history := run.Generations
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]model.GenerationRecord(nil), history...), nil
}

func (c *Client) Show(ctx context.Context, req ShowRequest) (model.RunRecord, error) {
	return c.lookup(ctx, req.RunID, req.Latest)
}

func (c *Client) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("delete requires run id")
	}
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return c.store.DeleteRun(ctx, runID)
}

// Replay rebuilds the stored best mixture, retrains it on the recorded data
// and scores it again. Equal fitness confirms the run is reproducible.
func (c *Client) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	run, err := c.lookup(ctx, req.RunID, req.Latest)
	if err != nil {
		return ReplaySummary{}, err
	}
	best, err := mixture.FromRecord(run.Best)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("rebuild mixture %s: %w", run.Best.ID, err)
	}
	train, validation, err := LoadData(run.Data)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("load data: %w", err)
	}

	trainer := evo.ParallelTrainer{Workers: req.Workers, Logger: c.log, Metrics: c.metrics}
	if err := trainer.Train(ctx, best.Experts(), train, nil); err != nil {
		return ReplaySummary{}, err
	}
	fitness, err := best.ComputeFitness(validation)
	if err != nil {
		return ReplaySummary{}, err
	}
	return ReplaySummary{
		RunID:           run.ID,
		MixtureID:       best.ID,
		RecordedFitness: run.Best.Fitness,
		ReplayedFitness: fitness,
	}, nil
}

func (c *Client) lookup(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	if runID != "" && latest {
		return model.RunRecord{}, errors.New("use either run id or latest")
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.RunRecord{}, err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, errors.New("no runs available")
		}
		runID = runs[len(runs)-1].ID
	}
	if runID == "" {
		return model.RunRecord{}, errors.New("run id or latest is required")
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

// DataRecordFor describes the data a config asks for. Synthetic data uses
// the run seed unless data.seed is set.
func DataRecordFor(cfg config.RunConfig) model.DataRecord {
	rec := model.DataRecord{
		CSV:                cfg.Data.CSV,
		ReducedWidth:       cfg.Data.ReducedWidth,
		ValidationFraction: cfg.ValidationFraction,
	}
	if rec.CSV == "" {
		rec.SyntheticSeed = cfg.Data.Seed
		if rec.SyntheticSeed == 0 {
			rec.SyntheticSeed = cfg.Seed
		}
		rec.Samples = cfg.Data.Samples
		rec.Features = cfg.Data.Features
	}
	return rec
}

// LoadData builds the full dataset and splits it into training and
// validation parts in time order.
func LoadData(rec model.DataRecord) (dataset.Dataset, dataset.Dataset, error) {
	var (
		full dataset.Dataset
		err  error
	)
	if rec.CSV != "" {
		full, err = dataset.LoadCSV(rec.CSV, rec.ReducedWidth)
	} else {
		full, err = dataset.Synthetic(rand.New(rand.NewSource(rec.SyntheticSeed)), rec.Samples, rec.Features, rec.ReducedWidth)
	}
	if err != nil {
		return dataset.Dataset{}, dataset.Dataset{}, err
	}
	return full.Split(rec.ValidationFraction)
}

func newRunRecord(runID string, createdAt time.Time, proto gene.Chromosome, data model.DataRecord, result evo.RunResult) model.RunRecord {
	s := result.Settings
	rec := model.RunRecord{
		ID:        runID,
		CreatedAt: createdAt,
		Settings: model.RunSettings{
			Seed:           s.Seed,
			PopulationSize: s.PopulationSize,
			SelectionSize:  s.SelectionSize,
			Generations:    s.Generations,
			MutationRate:   s.MutationRate,
			DampingFactor:  s.DampingFactor,
			RNNExperts:     s.RNNExperts,
			RBFExperts:     s.RBFExperts,
			Workers:        s.Workers,
			Pairing:        s.Pairing,
			Trainer:        s.Trainer,
		},
		Data:             data,
		Proto:            mixture.GeneRecords(proto),
		Best:             result.Best.Record(),
		FitnessHistory:   append([]float64(nil), result.FitnessHistory...),
		DiversityHistory: append([]float64(nil), result.DiversityHistory...),
		BestEverHistory:  append([]float64(nil), result.BestEverHistory...),
		Generations:      make([]model.GenerationRecord, 0, len(result.Generations)),
	}
	for _, g := range result.Generations {
		rec.Generations = append(rec.Generations, model.GenerationRecord{
			Generation:      g.Generation,
			BestFitness:     g.BestFitness,
			MeanFitness:     g.MeanFitness,
			MinFitness:      g.MinFitness,
			Diversity:       g.Diversity,
			BestEverFitness: g.BestEverFitness,
			BestMixtureID:   g.BestMixtureID,
			Degenerate:      g.Degenerate,
			TrainingMillis:  g.TrainingTime.Milliseconds(),
		})
	}
	storage.Stamp(&rec.VersionedRecord)
	storage.Stamp(&rec.Best.VersionedRecord)
	return rec
}
