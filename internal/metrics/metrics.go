// Package metrics exposes Prometheus collectors for training runs.
//
//   - mixevo_experts_trained_total{kind}     experts trained, by rnn|rbf
//   - mixevo_expert_training_seconds{kind}   wall time per expert
//   - mixevo_degenerate_experts_total        RBF experts with non-finite weights
//   - mixevo_generations_total               completed generations
//   - mixevo_fitness{stat}                   best, mean and best_ever fitness of the last generation
//   - mixevo_diversity                       normalized gene variance of the last generation
//
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collectors struct {
	ExpertsTrained    *prometheus.CounterVec
	TrainingSeconds   *prometheus.HistogramVec
	DegenerateExperts prometheus.Counter
	Generations       prometheus.Counter
	Fitness           *prometheus.GaugeVec
	Diversity         prometheus.Gauge
}

// New builds the collectors and registers them on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		ExpertsTrained: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mixevo_experts_trained_total",
				Help: "Experts trained",
			},
			[]string{"kind"},
		),
		TrainingSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mixevo_expert_training_seconds",
				Help:    "Wall time spent training one expert",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"kind"},
		),
		DegenerateExperts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mixevo_degenerate_experts_total",
				Help: "RBF experts whose least-squares solve was non-finite",
			},
		),
		Generations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mixevo_generations_total",
				Help: "Completed generations",
			},
		),
		Fitness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mixevo_fitness",
				Help: "Fitness of the last completed generation (best, mean, best_ever)",
			},
			[]string{"stat"},
		),
		Diversity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mixevo_diversity",
				Help: "Mean normalized per-gene variance of the last completed generation",
			},
		),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{
		c.ExpertsTrained,
		c.TrainingSeconds,
		c.DegenerateExperts,
		c.Generations,
		c.Fitness,
		c.Diversity,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) ObserveExpert(kind string, elapsed time.Duration, degenerate bool) {
	if c == nil {
		return
	}
	c.ExpertsTrained.WithLabelValues(kind).Inc()
	c.TrainingSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	if degenerate {
		c.DegenerateExperts.Inc()
	}
}

func (c *Collectors) ObserveGeneration(best, mean, bestEver, diversity float64) {
	if c == nil {
		return
	}
	c.Generations.Inc()
	c.Fitness.WithLabelValues("best").Set(best)
	c.Fitness.WithLabelValues("mean").Set(mean)
	c.Fitness.WithLabelValues("best_ever").Set(bestEver)
	c.Diversity.Set(diversity)
}
