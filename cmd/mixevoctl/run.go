package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/term"

	"mixevo/internal/config"
	"mixevo/internal/evo"
	"mixevo/internal/logging"
	"mixevo/internal/metrics"
	"mixevo/pkg/mixevo"
)

func runRun(ctx context.Context, args []string) error {
	defaults := config.Default()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML run config; flags set explicitly override it")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", defaults.Seed, "rng seed")
	population := fs.Int("pop", defaults.PopulationSize, "population size")
	selection := fs.Int("select", defaults.SelectionSize, "mixtures kept as parents each generation")
	generations := fs.Int("gens", defaults.Generations, "generation count")
	mutationRate := fs.Float64("mutation-rate", defaults.MutationRate, "per-gene mutation probability")
	damping := fs.Float64("damping", defaults.DampingFactor, "mutation damping factor")
	rnnExperts := fs.Int("rnn", defaults.RNNExperts, "recurrent experts per mixture")
	rbfExperts := fs.Int("rbf", defaults.RBFExperts, "radial basis experts per mixture")
	workers := fs.Int("workers", defaults.Workers, "worker count")
	pairing := fs.String("pairing", defaults.Pairing, "parent pairing: shuffle|quality")
	validation := fs.Float64("validation", defaults.ValidationFraction, "trailing fraction of samples used for validation")
	csvPath := fs.String("csv", "", "CSV series with the target in the last column (synthetic data when empty)")
	samples := fs.Int("samples", defaults.Data.Samples, "synthetic sample count")
	features := fs.Int("features", defaults.Data.Features, "synthetic feature count")
	reducedWidth := fs.Int("reduced-width", defaults.Data.ReducedWidth, "columns kept by column-subset preprocessing")
	dataSeed := fs.Int64("data-seed", 0, "synthetic data seed (0 uses --seed)")
	storeKind := fs.String("store", "", "store backend: memory|file|sqlite (default from config or build)")
	dbPath := fs.String("db-path", "", "sqlite database path or runs directory")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	logFormat := fs.String("log-format", defaults.LogFormat, "log format: console|json")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	showProgress := fs.Bool("progress", true, "draw a progress line when stderr is a terminal")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"run-id", func() { cfg.RunID = *runID }},
		{"seed", func() { cfg.Seed = *seed }},
		{"pop", func() { cfg.PopulationSize = *population }},
		{"select", func() { cfg.SelectionSize = *selection }},
		{"gens", func() { cfg.Generations = *generations }},
		{"mutation-rate", func() { cfg.MutationRate = *mutationRate }},
		{"damping", func() { cfg.DampingFactor = *damping }},
		{"rnn", func() { cfg.RNNExperts = *rnnExperts }},
		{"rbf", func() { cfg.RBFExperts = *rbfExperts }},
		{"workers", func() { cfg.Workers = *workers }},
		{"pairing", func() { cfg.Pairing = *pairing }},
		{"validation", func() { cfg.ValidationFraction = *validation }},
		{"csv", func() { cfg.Data.CSV = *csvPath }},
		{"samples", func() { cfg.Data.Samples = *samples }},
		{"features", func() { cfg.Data.Features = *features }},
		{"reduced-width", func() { cfg.Data.ReducedWidth = *reducedWidth }},
		{"data-seed", func() { cfg.Data.Seed = *dataSeed }},
		{"store", func() { cfg.Store = *storeKind }},
		{"db-path", func() { cfg.DBPath = *dbPath }},
		{"log-level", func() { cfg.LogLevel = *logLevel }},
		{"log-format", func() { cfg.LogFormat = *logFormat }},
		{"metrics-addr", func() { cfg.MetricsAddr = *metricsAddr }},
	}
	for _, o := range overrides {
		if set[o.flag] {
			o.apply()
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	registry := prometheus.NewRegistry()
	collectors, err := metrics.New(registry)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, registry, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	client, err := mixevo.New(mixevo.Options{
		StoreKind: cfg.Store,
		DBPath:    cfg.DBPath,
		Logger:    logger,
		Metrics:   collectors,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var observer evo.Observer
	var bar *progressLine
	if *showProgress && !*jsonOut && isTerminal(os.Stderr) {
		bar = &progressLine{generations: cfg.Generations}
		observer = bar.observer()
	}

	summary, err := client.Run(ctx, mixevo.RunRequest{Config: cfg, Observer: observer})
	bar.finish()
	if err != nil {
		return err
	}

	if *jsonOut {
		type runOutput struct {
			RunID            string    `json:"run_id"`
			BestFitness      float64   `json:"best_fitness"`
			BestMixtureID    string    `json:"best_mixture_id"`
			FitnessHistory   []float64 `json:"fitness_history"`
			DiversityHistory []float64 `json:"diversity_history"`
			ElapsedMillis    int64     `json:"elapsed_ms"`
		}
		return writeJSON(runOutput{
			RunID:            summary.RunID,
			BestFitness:      summary.BestFitness,
			BestMixtureID:    summary.Best.ID,
			FitnessHistory:   summary.FitnessHistory,
			DiversityHistory: summary.DiversityHistory,
			ElapsedMillis:    summary.Elapsed.Milliseconds(),
		})
	}

	fmt.Fprintf(stdout, "run_id=%s best_fitness=%.4f best_mixture=%s generations=%d elapsed=%s\n",
		summary.RunID, summary.BestFitness, summary.Best.ID, len(summary.FitnessHistory), summary.Elapsed.Round(time.Millisecond))
	for i, f := range summary.FitnessHistory {
		fmt.Fprintf(stdout, "gen=%d best=%.4f diversity=%.4f\n", i, f, summary.DiversityHistory[i])
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// progressLine redraws a single status line on stderr.
type progressLine struct {
	mu          sync.Mutex
	generations int
	generation  int
	state       evo.State
	trained     int
	total       int
	best        float64
	drawn       bool
}

func (p *progressLine) observer() evo.Observer {
	return evo.FuncObserver{
		State: func(gen int, s evo.State) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.generation, p.state = gen, s
			p.draw()
		},
		Progress: func(gen, trained, total int) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.generation, p.trained, p.total = gen, trained, total
			p.draw()
		},
		Generation: func(s evo.GenerationSummary) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.best = s.BestEverFitness
			p.draw()
		},
	}
}

func (p *progressLine) draw() {
	fmt.Fprintf(stderr, "\r\033[Kgen %d/%d %-24s experts %d/%d best %.4f",
		p.generation+1, p.generations, p.state, p.trained, p.total, p.best)
	p.drawn = true
}

func (p *progressLine) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(stderr)
	}
}
