package opt

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog"

	"vrpils/internal/errs"
	"vrpils/internal/metrics"
	"vrpils/internal/progress"
	"vrpils/internal/solution"
)

// minWeight keeps every operator selectable.
const minWeight = 0.01

// Engine runs iterated local search: perturb, intensify, accept or restore,
// until the loop count or the time budget is spent.
type Engine struct {
	opts Options
	log  zerolog.Logger
	pub  progress.Publisher
}

// Result is the outcome of one Optimize call.
type Result struct {
	RunID string
	Best  *solution.Solution
	Stats *Stats
}

// NewEngine validates opts. pub may be nil.
func NewEngine(opts Options, log zerolog.Logger, pub progress.Publisher) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for _, name := range opts.Operators {
		if _, err := NewOperator(name, opts); err != nil {
			return nil, err
		}
	}
	return &Engine{opts: opts.Defaults(), log: log, pub: pub}, nil
}

// Options returns the engine's options with defaults applied.
func (e *Engine) Options() Options { return e.opts }

// NewRun starts a run with the engine's options, logger and publisher.
func (e *Engine) NewRun(ctx context.Context, s *solution.Solution) *Run {
	return NewRun(ctx, s.Model, e.opts, e.log, e.pub)
}

// Optimize improves a copy of s and returns the best solution found. The
// input is never modified. On a structural error the best solution so far
// is returned together with the error.
func (e *Engine) Optimize(ctx context.Context, s *solution.Solution) (*Result, error) {
	run := e.NewRun(ctx, s)
	best, err := e.Improve(run, s)
	res := &Result{RunID: run.ID, Best: best, Stats: run.Stats}
	metrics.SearchDuration.WithLabelValues("ils").Observe(run.Elapsed().Seconds())
	if best != nil {
		metrics.BestFitness.Set(best.Fitness())
	}
	run.Publish(progress.TypeFinished, map[string]any{
		"best_fitness": run.Stats.BestFitness,
		"iterations":   run.Stats.Iterations,
		"elapsed_ms":   run.Stats.Elapsed.Milliseconds(),
	})
	return res, err
}

// Improve runs the search loop under run on a copy of s.
func (e *Engine) Improve(run *Run, s *solution.Solution) (*solution.Solution, error) {
	if s.Speculating() {
		return nil, errs.New(errs.CodeInternal, "improve called inside a speculative edit")
	}
	st := run.Stats
	defer func() { st.Elapsed = run.Elapsed() }()

	ops, err := Operators(s.Model, run.Options.Operators, run.Options)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		st.op(op.Name())
	}

	cur := s.Clone()
	if err := cur.Normalize(); err != nil {
		return nil, err
	}
	st.InitialFitness = cur.Fitness()
	best := cur.Clone()
	st.BestFitness = best.Fitness()

	if err := intensify(run, cur, ops); err != nil {
		return best, err
	}
	best = keepBest(run, best, cur)

	for it := 0; it < run.Options.Loops && !run.Expired(); it++ {
		st.Iterations++
		metrics.Iterations.Inc()

		backup := cur.Clone()
		n, err := perturb(run, cur)
		if err != nil {
			return best, err
		}
		st.Perturbations++
		if n == 0 {
			st.FailedPerturbs++
		}
		if err := intensify(run, cur, ops); err != nil {
			return best, err
		}

		if accept(run, cur, backup) {
			if !cur.Quality().Better(backup.Quality(), run.Options.Epsilon) {
				st.AcceptedWorse++
			}
		} else {
			cur = backup
			st.Restored++
		}
		best = keepBest(run, best, cur)

		run.every.Do(func() {
			run.log.Info().
				Int("iteration", it+1).
				Float64("current", cur.Fitness()).
				Float64("best", best.Fitness()).
				Dur("elapsed", run.Elapsed()).
				Msg("ils progress")
		})
	}
	return best, nil
}

// accept implements record-to-record acceptance: strictly better always
// passes, anything else only within Threshold of the incumbent.
func accept(run *Run, cur, incumbent *solution.Solution) bool {
	eps := run.Options.Epsilon
	if cur.Quality().Better(incumbent.Quality(), eps) {
		return true
	}
	thr := run.Options.Threshold
	return thr > 0 && cur.Fitness() <= incumbent.Fitness()*(1+thr)
}

func keepBest(run *Run, best, cur *solution.Solution) *solution.Solution {
	if !cur.Quality().Better(best.Quality(), run.Options.Epsilon) {
		return best
	}
	st := run.Stats
	st.Improvements++
	st.BestFitness = cur.Fitness()
	q := cur.Quality()
	run.log.Debug().Float64("fitness", q.Fitness()).Float64("penalty", q.Penalty).Msg("new best")
	run.Publish(progress.TypeImproved, map[string]any{
		"fitness":   q.Fitness(),
		"cost":      q.Cost,
		"penalty":   q.Penalty,
		"routes":    q.Routes,
		"iteration": st.Iterations,
	})
	return cur.Clone()
}

// intensify descends with weighted random operator choice until every
// operator is exhausted. An improvement makes all operators eligible again.
func intensify(run *Run, s *solution.Solution, ops []Operator) error {
	st := run.Stats
	exhausted := make([]bool, len(ops))
	weights := make([]float64, len(ops))
	left := len(ops)
	for left > 0 && !run.Expired() {
		for i, op := range ops {
			weights[i] = 0
			if !exhausted[i] {
				weights[i] = st.op(op.Name()).Weight
			}
		}
		i := selectOp(weights, run.rng)
		op := ops[i]
		ost := st.op(op.Name())
		ost.Selected++
		st.Steps++

		improved, err := Descend(run, s, op)
		if err != nil {
			return err
		}
		ost.Weight *= run.Options.Decay
		if improved {
			ost.Improved++
			ost.Weight += run.Options.Reward
			clear(exhausted)
			left = len(ops)
		}
		ost.Weight = max(ost.Weight, minWeight)
		exhausted[i] = true
		left--
		if st.Steps%run.Options.SnapshotEvery == 0 {
			st.snapshot()
		}
	}
	return nil
}

// selectOp is a roulette wheel over weights. Zero weights are never picked
// while any weight is positive.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if r < acc {
			return i
		}
	}
	return last
}
