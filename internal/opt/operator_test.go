package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/seed"
	"vrpils/internal/solution"
)

// instancesFor builds closed, open and, where the operator allows it,
// multi-depot plans with a fixed cost per used route.
func instancesFor(t *testing.T, name string) map[string]*solution.Solution {
	t.Helper()
	pdp := name == OpPairMove || name == OpPairExchange
	tour := name == OpTwoOpt || name == OpThreeOpt
	build := func(depots int, p model.Params) *solution.Solution {
		cfg := seed.InstanceConfig{Customers: 18, Depots: depots}
		if pdp {
			cfg = seed.InstanceConfig{Customers: 4, Shipments: 6}
			p.PDP = true
		}
		s := scrambled(t, cfg, p, 4, 7)
		s.Model.Vehicle.FixedCost = 3
		s.Evaluate()
		return s
	}
	out := map[string]*solution.Solution{
		"closed": build(1, model.Params{}),
		"open":   build(1, model.Params{OpenStart: true, OpenEnd: true}),
	}
	if !pdp && !tour {
		out["multi-depot"] = build(3, model.Params{OpenEnd: true})
	}
	return out
}

func TestChangeReverseChangeRoundTrip(t *testing.T) {
	for _, name := range AllOperators {
		for variant, s := range instancesFor(t, name) {
			t.Run(name+"/"+variant, func(t *testing.T) {
				run := testRun(s.Model, Options{})
				op, err := NewOperator(name, run.Options)
				require.NoError(t, err)
				require.NoError(t, op.Check(s.Model))

				q, err := op.Search(run, s)
				require.NoError(t, err)
				if variant == "closed" {
					require.Positive(t, q.Len(), "a scrambled plan leaves moves to make")
				}

				before := layout(s)
				quality := s.Quality()
				n := 0
				for c := range q.All() {
					if n++; n > 60 {
						break
					}
					routes, err := op.Change(s, c)
					require.NoError(t, err, "candidate %+v", *c)
					s.Touch(routes...)
					assert.Equal(t, s.Evaluator().Routes(s.Routes), s.Quality())
					// every gain is the exact cost delta, fixed costs included
					assert.InDelta(t, c.Gain, quality.Cost-s.Quality().Cost, 1e-6, "candidate %+v", *c)
					require.NoError(t, op.ReverseChange(s, c))
					s.Reset()
					require.Equal(t, before, layout(s), "candidate %+v", *c)
					require.Equal(t, quality, s.Quality())
				}
			})
		}
	}
}

func TestTwoOptUncrossesRoute(t *testing.T) {
	// A and D sit close to the depot, B and C far out; A B C D crosses itself
	s := planar(t, model.Params{}, []model.Point{{X: 0, Y: 1}, {X: 3, Y: 2}, {X: 0, Y: 2}, {X: 3, Y: 1}}, []int{1, 2, 3, 4})
	run := testRun(s.Model, Options{})
	op := &TwoOpt{}
	q, err := op.Search(run, s)
	require.NoError(t, err)

	var best *Candidate
	for c := range q.All() {
		best = c
		break
	}
	require.NotNil(t, best)
	assert.Equal(t, 2, best.P1)
	assert.Equal(t, 3, best.P2)
	assert.InDelta(t, 2*math.Sqrt(10)-2, best.Gain, 1e-9)

	routes, err := op.Change(s, best)
	require.NoError(t, err)
	s.Touch(routes...)
	s.Fixate()
	assert.Equal(t, [][]string{{"A", "C", "B", "D"}}, layout(s))
}

func TestTwoOptPricesEmptiedRoute(t *testing.T) {
	// reversing the separator of [B] with B itself folds B into route 0
	s := line(t, 2, []int{1}, []int{2})
	s.Model.Vehicle.FixedCost = 10
	s.Evaluate()
	run := testRun(s.Model, Options{})
	op := &TwoOpt{}
	q, err := op.Search(run, s)
	require.NoError(t, err)

	var fold *Candidate
	for c := range q.All() {
		if c.P1 == 2 && c.P2 == 3 {
			fold = c
		}
	}
	require.NotNil(t, fold)
	assert.InDelta(t, 12.0, fold.Gain, 1e-9)

	before := s.Quality()
	routes, err := op.Change(s, fold)
	require.NoError(t, err)
	s.Touch(routes...)
	assert.InDelta(t, fold.Gain, before.Cost-s.Quality().Cost, 1e-9)
	s.Fixate()
	assert.Equal(t, [][]string{{"A", "B"}, nil}, layout(s))
}

// spread puts A B on one end of the axis and C D far out, served by one
// vehicle on open routes in the order A C B D.
func spread(t *testing.T) *solution.Solution {
	t.Helper()
	pts := []model.Point{{X: 1}, {X: 2}, {X: 100}, {X: 101}}
	s := planar(t, model.Params{OpenStart: true, OpenEnd: true}, pts, []int{1, 3, 2, 4})
	s.Model.Vehicle.Count = 1
	require.NoError(t, s.Normalize())
	require.Len(t, s.Routes, 2)
	require.True(t, s.IsOverhang(1))
	return s
}

func TestTourOperatorsKeepVehicleCount(t *testing.T) {
	for _, op := range []Operator{&TwoOpt{}, &ThreeOpt{}} {
		t.Run(op.Name(), func(t *testing.T) {
			s := spread(t)
			run := testRun(s.Model, Options{})
			q, err := op.Search(run, s)
			require.NoError(t, err)
			for c := range q.All() {
				routes, err := op.Change(s, c)
				require.NoError(t, err)
				s.Touch(routes...)
				assert.Zero(t, s.Excess(), "candidate %+v opens a second route", *c)
				require.NoError(t, op.ReverseChange(s, c))
				s.Reset()
			}

			improved, err := Descend(run, s, op)
			require.NoError(t, err)
			assert.True(t, improved)
			assert.Zero(t, s.Overhangs())
			assert.Equal(t, 1, s.Used(0))
			assert.Len(t, layout(s)[0], 4)
			assert.InDelta(t, 100.0, s.Quality().Distance, 1e-9)
		})
	}
}

func TestDescendNeverWorsens(t *testing.T) {
	for _, name := range []string{OpRelocate, OpSwap, OpSegmentSwap, OpTwoOpt, OpThreeOpt, OpPathExchange} {
		t.Run(name, func(t *testing.T) {
			s := scrambled(t, seed.InstanceConfig{Customers: 25}, model.Params{}, 4, 3)
			run := testRun(s.Model, Options{})
			op, err := NewOperator(name, run.Options)
			require.NoError(t, err)
			start := s.Fitness()

			improved, err := Descend(run, s, op)
			require.NoError(t, err)
			assert.True(t, improved)
			assert.Less(t, s.Fitness(), start)
			assert.Equal(t, 25, s.Customers())
			assert.False(t, s.Speculating())
			require.NoError(t, s.Validate())
			assert.Equal(t, s.Evaluator().Routes(s.Routes), s.Quality())
			assert.NotZero(t, run.Stats.Operators[name].Accepted)
		})
	}
}

func TestPairMoveKeepsPrecedence(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Shipments: 8}, model.Params{PDP: true}, 3, 5)
	require.Zero(t, s.Quality().Precedence)
	run := testRun(s.Model, Options{})
	start := s.Fitness()

	improved, err := Descend(run, s, &PairMove{})
	require.NoError(t, err)
	assert.True(t, improved)
	assert.Less(t, s.Fitness(), start)
	assert.Zero(t, s.Quality().Precedence)
	assert.Equal(t, 16, s.Customers())
}

func TestPairMoveIntraRoute(t *testing.T) {
	// pickup far from its delivery: P1 X D1 with X off to the side
	s := planar(t, model.Params{PDP: true}, []model.Point{{X: 1}, {X: 5, Y: 5}, {X: 1.5}}, []int{1, 2, 3})
	s.Routes[0].Stops[1].Shipment, s.Routes[0].Stops[1].Load = 1, model.Pickup
	s.Routes[0].Stops[3].Shipment, s.Routes[0].Stops[3].Load = 1, model.Delivery
	s.Evaluate()
	run := testRun(s.Model, Options{})
	op := &PairMove{}

	q, err := op.Search(run, s)
	require.NoError(t, err)
	require.Positive(t, q.Len())
	for c := range q.All() {
		routes, err := op.Change(s, c)
		require.NoError(t, err)
		s.Touch(routes...)
		s.Fixate()
		break
	}
	assert.Equal(t, [][]string{{"A", "C", "B"}}, layout(s))
	assert.Zero(t, s.Quality().Precedence)
}

func TestPairChangeRejectsBrokenPositions(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Shipments: 3}, model.Params{PDP: true}, 1, 2)
	_, err := (&PairMove{}).Change(s, &Candidate{R1: 0, P1: 3, P2: 1, R2: 0})
	assert.True(t, errs.Is(err, errs.CodeStructural))
	_, err = (&PairExchange{}).Change(s, &Candidate{R1: 0, P1: 1, P2: 4, R2: 0, Q1: 2, Q2: 5})
	assert.True(t, errs.Is(err, errs.CodeStructural))
	_, err = (&Relocate{MaxLen: 1}).Change(s, &Candidate{R1: 0, P1: 9, L1: 1, R2: 0})
	assert.True(t, errs.Is(err, errs.CodeStructural))
}

func TestTourOperatorsNeedSingleDepot(t *testing.T) {
	s := scrambled(t, seed.InstanceConfig{Customers: 10, Depots: 2}, model.Params{}, 2, 9)
	run := testRun(s.Model, Options{})

	_, err := (&TwoOpt{}).Search(run, s)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
	_, err = Operators(s.Model, []string{OpThreeOpt}, run.Options)
	assert.True(t, errs.Is(err, errs.CodeConfiguration))

	ops, err := Operators(s.Model, nil, run.Options)
	require.NoError(t, err)
	for _, op := range ops {
		assert.NotContains(t, []string{OpTwoOpt, OpThreeOpt, OpPairMove, OpPairExchange}, op.Name())
	}
}

func TestUnknownOperator(t *testing.T) {
	_, err := NewOperator("teleport", Options{})
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
}
