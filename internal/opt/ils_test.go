package opt

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/progress"
	"vrpils/internal/seed"
)

func TestOptimizeImprovesAndKeepsInput(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 30}, model.Params{}, 5, 21)
	start := s.Fitness()
	before := layout(s)
	pub := &recorder{}

	e, err := NewEngine(Options{Loops: 6, Seed: 4}, zerolog.Nop(), pub)
	require.NoError(t, err)
	res, err := e.Optimize(context.Background(), s)
	require.NoError(t, err)

	assert.Less(t, res.Best.Fitness(), start)
	assert.Equal(t, 30, res.Best.Customers())
	require.NoError(t, res.Best.Validate())
	assert.Equal(t, before, layout(s))
	assert.Equal(t, start, s.Fitness())

	st := res.Stats
	assert.Equal(t, 6, st.Iterations)
	assert.Equal(t, 6, st.Perturbations)
	assert.InDelta(t, start, st.InitialFitness, 1e-9)
	assert.InDelta(t, res.Best.Fitness(), st.BestFitness, 1e-9)
	assert.Positive(t, st.Improvements)
	assert.LessOrEqual(t, st.AcceptedWorse+st.Restored, st.Iterations)
	assert.NotEmpty(t, res.RunID)

	types := pub.types()
	require.NotEmpty(t, types)
	assert.Contains(t, types, progress.TypeImproved)
	assert.Equal(t, progress.TypeFinished, types[len(types)-1])
}

func TestOptimizeIsReproducible(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 20}, model.Params{}, 3, 8)
	e, err := NewEngine(Options{Loops: 4, Seed: 99}, zerolog.Nop(), nil)
	require.NoError(t, err)
	a, err := e.Optimize(context.Background(), s)
	require.NoError(t, err)
	b, err := e.Optimize(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, layout(a.Best), layout(b.Best))
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRuinAndRecreateKeepsEveryStop(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 20}, model.Params{}, 3, 13)
	run := testRun(s.Model, Options{Perturbation: PerturbRuin, RuinSize: 6})
	n, err := ruinRecreate(run, s)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 20, s.Customers())
	assert.False(t, s.Speculating())
	assert.Equal(t, s.Evaluator().Routes(s.Routes), s.Quality())
}

func TestRuinAndRecreateMovesWholeShipments(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Shipments: 6}, model.Params{PDP: true}, 2, 17)
	run := testRun(s.Model, Options{Perturbation: PerturbRuin, RuinSize: 4})
	_, err := ruinRecreate(run, s)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Customers())
	assert.Zero(t, s.Quality().Precedence)
}

func TestRuinRadiusLimitsTheCluster(t *testing.T) {
	s := line(t, 6, []int{1, 2, 3, 4, 5, 6})
	run := testRun(s.Model, Options{Perturbation: PerturbRuin, RuinSize: 6, RuinRadius: 0.5})
	n, err := ruinRecreate(run, s)
	require.NoError(t, err)
	// neighbours on the axis sit one unit apart
	assert.Equal(t, 1, n)

	run = testRun(s.Model, Options{Perturbation: PerturbRuin, RuinSize: 6, RuinRadius: 1.5})
	n, err = ruinRecreate(run, s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 3)
	assert.Equal(t, 6, s.Customers())
	assert.Equal(t, s.Evaluator().Routes(s.Routes), s.Quality())
}

func TestOptimizeWithRuinInPDPMode(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 5, Shipments: 6}, model.Params{PDP: true}, 3, 31)
	start := s.Fitness()
	e, err := NewEngine(Options{Loops: 5, Seed: 2, Perturbation: PerturbRuin, Threshold: 0.05}, zerolog.Nop(), nil)
	require.NoError(t, err)
	res, err := e.Optimize(context.Background(), s)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Best.Fitness(), start)
	assert.Equal(t, 17, res.Best.Customers())
	assert.Zero(t, res.Best.Quality().Precedence)
}

func TestOptimizeStopsOnCancelledContext(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 15}, model.Params{}, 3, 6)
	e, err := NewEngine(Options{Loops: 1000, Seed: 1}, zerolog.Nop(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Optimize(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Iterations)
	assert.InDelta(t, s.Fitness(), res.Best.Fitness(), 1e-9)
}

func TestNewEngineRejectsBadOptions(t *testing.T) {
	_, err := NewEngine(Options{Operators: []string{"teleport"}}, zerolog.Nop(), nil)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
	_, err = NewEngine(Options{Threshold: -1}, zerolog.Nop(), nil)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
	_, err = NewEngine(Options{Perturbation: "shake"}, zerolog.Nop(), nil)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
	_, err = NewEngine(Options{RuinRadius: -1}, zerolog.Nop(), nil)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
}

func TestAccept(t *testing.T) {
	good := line(t, 3, []int{1, 2, 3})
	bad := line(t, 3, []int{2, 1, 3})
	require.InDelta(t, 6.0, good.Fitness(), 1e-9)
	require.InDelta(t, 8.0, bad.Fitness(), 1e-9)

	strict := testRun(good.Model, Options{})
	assert.True(t, accept(strict, good, bad))
	assert.False(t, accept(strict, bad, good))

	loose := testRun(good.Model, Options{Threshold: 0.5})
	assert.True(t, accept(loose, bad, good))
	tight := testRun(good.Model, Options{Threshold: 0.1})
	assert.False(t, accept(tight, bad, good))
}

func TestSelectOpSkipsZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for range 200 {
		assert.Equal(t, 1, selectOp([]float64{0, 2, 0}, rng))
	}
	seen := map[int]bool{}
	for range 500 {
		seen[selectOp([]float64{1, 0, 1}, rng)] = true
	}
	assert.Equal(t, map[int]bool{0: true, 2: true}, seen)
}

func TestIntensifyAdaptsWeights(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 20}, model.Params{}, 4, 12)
	run := testRun(s.Model, Options{SnapshotEvery: 1})
	ops, err := Operators(s.Model, []string{OpRelocate, OpSwap}, run.Options)
	require.NoError(t, err)
	require.NoError(t, intensify(run, s, ops))

	st := run.Stats
	assert.Positive(t, st.Steps)
	assert.Len(t, st.Snapshots, st.Steps)
	for _, name := range []string{OpRelocate, OpSwap} {
		o := st.Operators[name]
		require.NotNil(t, o)
		assert.Positive(t, o.Selected)
		assert.GreaterOrEqual(t, o.Weight, minWeight)
	}
	assert.Positive(t, st.Operators[OpRelocate].Improved)
}
