package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"mixevo/internal/config"
	"mixevo/internal/storage"
	"mixevo/pkg/mixevo"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "config":
		return runConfig(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind *string
	path *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|file|sqlite"),
		path: fs.String("db-path", "", "sqlite database path or runs directory (default per store)"),
	}
}

func (s storeFlags) client() (*mixevo.Client, error) {
	return mixevo.New(mixevo.Options{StoreKind: *s.kind, DBPath: *s.path})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *store.kind)
	return nil
}

func runConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML run config to validate and print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, mixevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created=%s (%s) generations=%d best_fitness=%.4f\n",
			r.ID,
			r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			humanize.Time(r.CreatedAt),
			r.Generations,
			r.BestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max generations to show (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, mixevo.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, g := range history {
		fmt.Fprintf(stdout, "gen=%d best=%.4f mean=%.4f min=%.4f best_ever=%.4f diversity=%.4f degenerate=%d\n",
			g.Generation, g.BestFitness, g.MeanFitness, g.MinFitness, g.BestEverFitness, g.Diversity, g.Degenerate)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit the full run record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rec, err := client.Show(ctx, mixevo.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(rec)
	}

	s := rec.Settings
	fmt.Fprintf(stdout, "run_id=%s created=%s seed=%d\n", rec.ID, rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), s.Seed)
	fmt.Fprintf(stdout, "population=%d selection=%d generations=%d mutation_rate=%.3f damping=%.3f pairing=%s trainer=%s\n",
		s.PopulationSize, s.SelectionSize, s.Generations, s.MutationRate, s.DampingFactor, s.Pairing, s.Trainer)
	source := "synthetic"
	if rec.Data.CSV != "" {
		source = rec.Data.CSV
	}
	fmt.Fprintf(stdout, "data=%s features=%d training=%s validation=%s\n",
		source,
		rec.Data.Features,
		humanize.Comma(int64(rec.Data.TrainingSamples)),
		humanize.Comma(int64(rec.Data.ValidationSamples)),
	)
	fmt.Fprintf(stdout, "best mixture=%s fitness=%.4f experts=%d\n", rec.Best.ID, rec.Best.Fitness, len(rec.Best.Experts))
	for i, e := range rec.Best.Experts {
		genes := make([]string, 0, len(e.Genes))
		for _, g := range e.Genes {
			genes = append(genes, fmt.Sprintf("%s=%g", g.Name, g.Value))
		}
		line := fmt.Sprintf("  expert=%d kind=%s preprocessing=%q genes=[%s]", i, e.Kind, e.Preprocessing, strings.Join(genes, " "))
		if e.Degenerate {
			line += " degenerate"
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	workers := fs.Int("workers", 1, "worker count for retraining")
	strict := fs.Bool("strict", false, "fail when the replayed fitness differs from the stored one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Replay(ctx, mixevo.ReplayRequest{RunID: *runID, Latest: *latest, Workers: *workers})
	if err != nil {
		return err
	}
	match := summary.RecordedFitness == summary.ReplayedFitness
	fmt.Fprintf(stdout, "run_id=%s mixture=%s recorded=%.6f replayed=%.6f match=%t\n",
		summary.RunID, summary.MixtureID, summary.RecordedFitness, summary.ReplayedFitness, match)
	if *strict && !match {
		return fmt.Errorf("replayed fitness %.6f differs from recorded %.6f", summary.ReplayedFitness, summary.RecordedFitness)
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Delete(ctx, *runID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted run_id=%s\n", *runID)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: mixevoctl <init|config|run|runs|fitness|show|replay|delete> [flags]", msg)
}
