// Package metrics exposes search counters on a dedicated Prometheus registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the optimizer.
	Registry = prometheus.NewRegistry()

	// MovesEvaluated counts tentatively applied moves by operator.
	MovesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrpils_moves_evaluated_total", Help: "Moves applied tentatively and re-evaluated."},
		[]string{"operator"},
	)
	// MovesAccepted counts committed moves by operator.
	MovesAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrpils_moves_accepted_total", Help: "Moves committed after verification."},
		[]string{"operator"},
	)
	// MovesRejected counts reverted moves by operator and reason (worse, overhang, structural).
	MovesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrpils_moves_rejected_total", Help: "Moves reverted after verification."},
		[]string{"operator", "reason"},
	)
	// Iterations counts ILS loops.
	Iterations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "vrpils_ils_iterations_total", Help: "Iterated local search loops."},
	)
	// Perturbations counts perturbation steps by kind and outcome.
	Perturbations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrpils_perturbations_total", Help: "Perturbation steps."},
		[]string{"kind", "outcome"},
	)
	// BlockRounds counts block splitter rounds by outcome (improved, kept).
	BlockRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrpils_block_rounds_total", Help: "Block splitter rounds."},
		[]string{"outcome"},
	)
	// BestFitness tracks the best fitness of the latest run.
	BestFitness = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vrpils_best_fitness", Help: "Best fitness found by the latest run."},
	)
	// SearchDuration records phase durations in seconds.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrpils_search_duration_seconds", Help: "Search phase duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 10)},
		[]string{"phase"},
	)
)

// RegisterDefault registers every collector once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(MovesEvaluated)
		Registry.MustRegister(MovesAccepted)
		Registry.MustRegister(MovesRejected)
		Registry.MustRegister(Iterations)
		Registry.MustRegister(Perturbations)
		Registry.MustRegister(BlockRounds)
		Registry.MustRegister(BestFitness)
		Registry.MustRegister(SearchDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
