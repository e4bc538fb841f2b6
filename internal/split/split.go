// Package split runs the local search on random blocks of routes in
// parallel and recombines the results.
package split

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vrpils/internal/errs"
	"vrpils/internal/metrics"
	"vrpils/internal/model"
	"vrpils/internal/opt"
	"vrpils/internal/progress"
	"vrpils/internal/solution"
)

// Options tune the splitter. Zero values select defaults.
type Options struct {
	Blocks  int // blocks per round, default 4
	Workers int // concurrent block searches, default 4
	Rounds  int // split rounds, default 5
	// Loops overrides the engine's ILS loops inside each block.
	Loops int
}

// Defaults fills unset fields.
func (o Options) Defaults() Options {
	if o.Blocks <= 0 {
		o.Blocks = 4
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Rounds <= 0 {
		o.Rounds = 5
	}
	return o
}

// Validate rejects negative values.
func (o Options) Validate() error {
	if o.Blocks < 0 || o.Workers < 0 || o.Rounds < 0 || o.Loops < 0 {
		return errs.Configuration("split options must not be negative: %+v", o)
	}
	return nil
}

// Splitter partitions a plan's routes into blocks, improves every block
// independently with the engine and joins the blocks back together. A round
// is kept only when the joined plan is better.
type Splitter struct {
	engine *opt.Engine
	opts   Options
	log    zerolog.Logger
}

// New builds a splitter around engine.
func New(engine *opt.Engine, opts Options, log zerolog.Logger) (*Splitter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{engine: engine, opts: opts.Defaults(), log: log.With().Str("component", "split").Logger()}, nil
}

// Optimize improves a copy of s round by round until the round count or the
// time budget is spent. The input is never modified.
func (sp *Splitter) Optimize(ctx context.Context, s *solution.Solution) (*opt.Result, error) {
	run := sp.engine.NewRun(ctx, s)
	st := run.Stats
	cur := s.Clone()
	if err := cur.Normalize(); err != nil {
		return nil, err
	}
	st.InitialFitness = cur.Fitness()
	st.BestFitness = cur.Fitness()
	res := &opt.Result{RunID: run.ID, Best: cur, Stats: st}

	for round := 1; round <= sp.opts.Rounds && !run.Expired(); round++ {
		next, err := sp.Round(run, cur)
		if err != nil {
			st.Elapsed = run.Elapsed()
			return res, fmt.Errorf("split round %d: %w", round, err)
		}
		st.Rounds++
		outcome := "kept"
		if next.Quality().Better(cur.Quality(), run.Options.Epsilon) {
			outcome = "improved"
			cur = next
			st.Improvements++
			st.BestFitness = cur.Fitness()
			res.Best = cur
		}
		metrics.BlockRounds.WithLabelValues(outcome).Inc()
		run.Publish(progress.TypeSplitRound, map[string]any{
			"round":   round,
			"outcome": outcome,
			"fitness": cur.Fitness(),
		})
		sp.log.Info().
			Str("run_id", run.ID).
			Int("round", round).
			Str("outcome", outcome).
			Float64("fitness", cur.Fitness()).
			Msg("split round")
	}
	st.Elapsed = run.Elapsed()
	metrics.SearchDuration.WithLabelValues("split").Observe(st.Elapsed.Seconds())
	metrics.BestFitness.Set(cur.Fitness())
	run.Publish(progress.TypeFinished, map[string]any{
		"best_fitness": cur.Fitness(),
		"rounds":       st.Rounds,
		"elapsed_ms":   st.Elapsed.Milliseconds(),
	})
	return res, nil
}

// block is one independent sub-problem.
type block struct {
	routes []int
	seed   int64
	sub    *solution.Solution
	best   *solution.Solution
	stats  *opt.Stats
}

// Round runs one split round on s and returns the recombined plan. s is not
// modified. Block sub-searches share nothing mutable: each owns cloned
// routes, its own random source and statistics.
func (sp *Splitter) Round(run *opt.Run, s *solution.Solution) (*solution.Solution, error) {
	blocks, err := sp.partition(run, s)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(run.Context())
	g.SetLimit(sp.opts.Workers)
	for _, b := range blocks {
		g.Go(func() error {
			child := run.Child(gctx, b.seed)
			if sp.opts.Loops > 0 {
				child.Options.Loops = sp.opts.Loops
			}
			best, err := sp.engine.Improve(child, b.sub)
			b.stats = child.Stats
			if err != nil {
				return err
			}
			b.best = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	joined := make([]*model.Route, 0, len(s.Routes))
	for _, b := range blocks {
		run.Stats.Merge(b.stats)
		for _, r := range b.best.Routes {
			if !r.Empty() {
				joined = append(joined, r)
			}
		}
	}
	next := s.Clone()
	next.Routes = joined
	if err := next.Normalize(); err != nil {
		return nil, err
	}
	return next, nil
}

// partition deals the shuffled non-empty routes of s round-robin into
// blocks and builds one sub-solution per block. Each block may use the
// vehicles its routes already occupy plus a round-robin share of the spare
// vehicles of each depot. Seeds are drawn here, before any goroutine
// starts, so a run is reproducible for a fixed seed.
func (sp *Splitter) partition(run *opt.Run, s *solution.Solution) ([]*block, error) {
	rng := run.Rand()
	var used []int
	for i, r := range s.Routes {
		if !r.Empty() {
			used = append(used, i)
		}
	}
	rng.Shuffle(len(used), func(i, j int) { used[i], used[j] = used[j], used[i] })

	n := min(sp.opts.Blocks, max(len(used), 1))
	blocks := make([]*block, n)
	for k := range blocks {
		blocks[k] = &block{seed: rng.Int63()}
	}
	for i, r := range used {
		b := blocks[i%n]
		b.routes = append(b.routes, r)
	}

	spare := make(map[int]int, len(s.Model.Depots))
	for _, d := range s.Model.Depots {
		if l, ok := s.Limit(d.Depot); ok {
			spare[d.Depot] = max(l-s.Used(d.Depot), 0)
		}
	}
	for k, b := range blocks {
		routes := make([]*model.Route, 0, len(b.routes))
		count := make(map[int]int)
		for _, r := range b.routes {
			routes = append(routes, s.Routes[r].Clone())
			count[s.Routes[r].Depot()]++
		}
		sub, err := solution.New(s.Model, routes)
		if err != nil {
			return nil, err
		}
		for _, d := range s.Model.Depots {
			id := d.Depot
			if _, ok := s.Limit(id); !ok {
				continue
			}
			share := spare[id] / n
			if k < spare[id]%n {
				share++
			}
			sub.SetLimit(id, count[id]+share)
		}
		b.sub = sub
	}
	return blocks, nil
}
