// Package opt improves route plans by local search.
//
// Operators propose moves with a closed-form distance delta, the Driver
// applies them tentatively and keeps only those the evaluator confirms, and
// the Engine wraps everything into an iterated local search with adaptive
// operator selection and perturbation.
package opt

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/progress"
)

// Perturbation kinds.
const (
	PerturbRelocate = "relocate"
	PerturbRuin     = "ruin"
)

// Options tune the search. Zero values select defaults.
type Options struct {
	// Loops and MaxRunningTime override the model parameters when set.
	Loops          int
	MaxRunningTime time.Duration
	Seed           int64

	// Operators names the neighborhoods to cycle through; empty selects every
	// operator the model supports.
	Operators []string

	MaxSegment     int // relocate and swap segment length cap
	OrOptWindow    int // or-opt and path-exchange reach in tour positions
	ThreeOptWindow int // 3-opt segment length cap
	MaxQueue       int // candidates kept per search

	Perturbation   string
	PerturbMoves   int
	PerturbRetries int
	RuinSize       int
	// RuinRadius, when positive, limits the ruin to stops within this
	// distance of the seed stop. The seed itself always goes.
	RuinRadius float64

	// Threshold accepts a perturbed solution whose fitness stays within
	// incumbent*(1+Threshold). 0 accepts improvements only.
	Threshold float64
	Epsilon   float64

	Reward        float64
	Decay         float64
	SnapshotEvery int

	// ProgressEvery throttles progress log lines.
	ProgressEvery time.Duration
}

// Defaults fills unset fields.
func (o Options) Defaults() Options {
	if o.MaxSegment <= 0 {
		o.MaxSegment = 3
	}
	if o.OrOptWindow <= 0 {
		o.OrOptWindow = 30
	}
	if o.ThreeOptWindow <= 0 {
		o.ThreeOptWindow = 8
	}
	if o.MaxQueue <= 0 {
		o.MaxQueue = 20000
	}
	if o.Perturbation == "" {
		o.Perturbation = PerturbRelocate
	}
	if o.PerturbMoves <= 0 {
		o.PerturbMoves = 3
	}
	if o.PerturbRetries <= 0 {
		o.PerturbRetries = 25
	}
	if o.RuinSize <= 0 {
		o.RuinSize = 8
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 1e-9
	}
	if o.Reward <= 0 {
		o.Reward = 0.1
	}
	if o.Decay <= 0 || o.Decay >= 1 {
		o.Decay = 0.999
	}
	if o.SnapshotEvery <= 0 {
		o.SnapshotEvery = 50
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 2 * time.Second
	}
	return o
}

// Validate rejects option values no default can repair.
func (o Options) Validate() error {
	if o.Loops < 0 {
		return errs.Configuration("loops must not be negative, got %d", o.Loops)
	}
	if o.MaxRunningTime < 0 {
		return errs.Configuration("max running time must not be negative")
	}
	if o.RuinRadius < 0 {
		return errs.Configuration("ruin radius must not be negative, got %g", o.RuinRadius)
	}
	if o.Threshold < 0 {
		return errs.Configuration("acceptance threshold must not be negative, got %g", o.Threshold)
	}
	switch o.Perturbation {
	case "", PerturbRelocate, PerturbRuin:
	default:
		return errs.Configuration("unknown perturbation %q", o.Perturbation)
	}
	return nil
}

// Run is the per-run context threaded through the search: randomness,
// budget, logging, progress publishing and statistics.
type Run struct {
	ID      string
	Options Options
	Stats   *Stats

	ctx      context.Context
	rng      *rand.Rand
	start    time.Time
	deadline time.Time
	log      zerolog.Logger
	pub      progress.Publisher
	every    *rate.Sometimes
	checks   int
}

// NewRun starts the clock. The budget is the options' running time, else
// the model's.
func NewRun(ctx context.Context, m *model.Model, opts Options, log zerolog.Logger, pub progress.Publisher) *Run {
	opts = opts.Defaults()
	if opts.Loops <= 0 {
		opts.Loops = m.Loops()
	}
	if opts.MaxRunningTime <= 0 {
		opts.MaxRunningTime = m.Params.MaxRunningTime
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := uuid.NewString()
	r := &Run{
		ID:      id,
		Options: opts,
		Stats:   newStats(),
		ctx:     ctx,
		rng:     rand.New(rand.NewSource(seed)),
		start:   time.Now(),
		log:     log.With().Str("run_id", id).Logger(),
		pub:     pub,
		every:   &rate.Sometimes{Interval: opts.ProgressEvery},
	}
	if opts.MaxRunningTime > 0 {
		r.deadline = r.start.Add(opts.MaxRunningTime)
	}
	return r
}

// Child derives a run for an independent sub-search: same id, budget and
// publisher, its own randomness and statistics. Children may run
// concurrently with each other but not with r. A non-nil ctx replaces the
// parent's.
func (r *Run) Child(ctx context.Context, seed int64) *Run {
	c := *r
	if ctx != nil {
		c.ctx = ctx
	}
	c.Stats = newStats()
	c.rng = rand.New(rand.NewSource(seed))
	c.every = &rate.Sometimes{Interval: r.Options.ProgressEvery}
	c.checks = 0
	return &c
}

// Expired reports whether the time budget is spent or the context is done.
func (r *Run) Expired() bool {
	if r.ctx != nil && r.ctx.Err() != nil {
		return true
	}
	return !r.deadline.IsZero() && time.Now().After(r.deadline)
}

// expiredSometimes checks the budget every 64 calls, for inner loops.
func (r *Run) expiredSometimes() bool {
	r.checks++
	if r.checks&63 != 0 {
		return false
	}
	return r.Expired()
}

// Context is the run's context.
func (r *Run) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Elapsed is the time since the run started.
func (r *Run) Elapsed() time.Duration { return time.Since(r.start) }

// Logger returns the run-scoped logger.
func (r *Run) Logger() *zerolog.Logger { return &r.log }

// Rand exposes the run's random source.
func (r *Run) Rand() *rand.Rand { return r.rng }

// Publish sends an event tagged with the run id, if a publisher is set.
func (r *Run) Publish(typ string, data map[string]any) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(r.ID, progress.NewEvent(typ, data))
}
