package evo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"mixevo/internal/dataset"
	"mixevo/internal/expert"
	"mixevo/internal/logging"
	"mixevo/internal/metrics"
)

// ProgressFunc receives the number of experts trained so far and the total.
// Calls are serialized and trained is strictly increasing.
type ProgressFunc func(trained, total int)

// Trainer trains every expert once. An error from any expert aborts the call.
type Trainer interface {
	Name() string
	Train(ctx context.Context, experts []expert.Expert, data dataset.Dataset, onProgress ProgressFunc) error
}

// SerialTrainer trains experts one after another in the given order.
type SerialTrainer struct {
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

func (SerialTrainer) Name() string {
	return "serial"
}

func (t SerialTrainer) Train(ctx context.Context, experts []expert.Expert, data dataset.Dataset, onProgress ProgressFunc) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("training data: %w", err)
	}
	progress := newProgress(len(experts), onProgress)
	for i, e := range experts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := trainOne(ctx, e, data, logging.OrNop(t.Logger), t.Metrics); err != nil {
			return fmt.Errorf("train expert %d: %w", i, err)
		}
		progress.done()
	}
	return nil
}

// ParallelTrainer trains on a bounded pool, most expensive experts first so
// long jobs do not start last. Scheduling stops after the first error.
type ParallelTrainer struct {
	Workers int
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

func (ParallelTrainer) Name() string {
	return "parallel"
}

func (t ParallelTrainer) Train(ctx context.Context, experts []expert.Expert, data dataset.Dataset, onProgress ProgressFunc) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("training data: %w", err)
	}
	workers := t.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := logging.OrNop(t.Logger)
	ordered := OrderByComplexity(experts, data.Shape())
	progress := newProgress(len(ordered), onProgress)

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, e := range ordered {
		e := e
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := trainOne(ctx, e, data, logger, t.Metrics); err != nil {
				return fmt.Errorf("train %s expert: %w", e.Kind(), err)
			}
			progress.done()
			return nil
		})
	}
	return p.Wait()
}

// OrderByComplexity returns a copy sorted by descending RelativeComplexity.
// Ties keep their input order.
func OrderByComplexity(experts []expert.Expert, shape dataset.Shape) []expert.Expert {
	type costed struct {
		e    expert.Expert
		cost float64
	}
	items := make([]costed, len(experts))
	for i, e := range experts {
		items[i] = costed{e: e, cost: e.RelativeComplexity(shape)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].cost > items[j].cost
	})
	out := make([]expert.Expert, len(items))
	for i, item := range items {
		out[i] = item.e
	}
	return out
}

func trainOne(ctx context.Context, e expert.Expert, data dataset.Dataset, logger *zap.Logger, m *metrics.Collectors) error {
	start := time.Now()
	if err := e.Train(ctx, data); err != nil {
		return err
	}
	elapsed := time.Since(start)

	degenerate := false
	if rbf, ok := e.(*expert.RBF); ok && rbf.IsDegenerate() {
		degenerate = true
		logger.Warn("degenerate rbf network",
			zap.Stringer("chromosome", e.Chromosome()),
		)
	}
	if fb, ok := e.(interface{ PCAFallback() bool }); ok && fb.PCAFallback() {
		logger.Warn("pca fallback, training on unprojected inputs",
			zap.String("kind", string(e.Kind())),
			zap.Stringer("chromosome", e.Chromosome()),
		)
	}
	m.ObserveExpert(string(e.Kind()), elapsed, degenerate)
	logger.Debug("expert trained",
		zap.String("kind", string(e.Kind())),
		zap.Stringer("preprocessing", e.Preprocessing()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

type progress struct {
	mu      sync.Mutex
	trained int
	total   int
	fn      ProgressFunc
}

func newProgress(total int, fn ProgressFunc) *progress {
	return &progress{total: total, fn: fn}
}

func (p *progress) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trained++
	if p.fn != nil {
		p.fn(p.trained, p.total)
	}
}
