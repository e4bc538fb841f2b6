package split

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/opt"
	"vrpils/internal/seed"
	"vrpils/internal/solution"
)

func plan(t *testing.T, customers, depots int, v model.Vehicle) *solution.Solution {
	t.Helper()
	in := seed.Random(seed.InstanceConfig{Customers: customers, Depots: depots}, rand.New(rand.NewSource(42)))
	s, err := seed.OneRoutePerStop(in.Model(v, model.Params{}), in.Stops)
	require.NoError(t, err)
	return s
}

func engine(t *testing.T, loops int) *opt.Engine {
	t.Helper()
	e, err := opt.NewEngine(opt.Options{Loops: loops, Seed: 5}, zerolog.Nop(), nil)
	require.NoError(t, err)
	return e
}

func TestOptimizeNeverWorsens(t *testing.T) {
	s := plan(t, 40, 1, model.Vehicle{Capacity: []float64{30}})
	start := s.Fitness()
	sp, err := New(engine(t, 2), Options{Blocks: 3, Workers: 2, Rounds: 2}, zerolog.Nop())
	require.NoError(t, err)

	res, err := sp.Optimize(context.Background(), s)
	require.NoError(t, err)
	assert.Less(t, res.Best.Fitness(), start)
	assert.Equal(t, 40, res.Best.Customers())
	require.NoError(t, res.Best.Validate())
	assert.Equal(t, 2, res.Stats.Rounds)
	assert.Positive(t, res.Stats.Iterations)
	assert.InDelta(t, start, s.Fitness(), 1e-9)
}

func TestOptimizeMultiDepot(t *testing.T) {
	s := plan(t, 30, 3, model.Vehicle{Capacity: []float64{25}})
	start := s.Fitness()
	sp, err := New(engine(t, 1), Options{Blocks: 4, Workers: 4, Rounds: 1, Loops: 1}, zerolog.Nop())
	require.NoError(t, err)

	res, err := sp.Optimize(context.Background(), s)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Best.Fitness(), start)
	assert.Equal(t, 30, res.Best.Customers())
	// one spare route per depot after normalization
	empty := 0
	for _, r := range res.Best.Routes {
		if r.Empty() {
			empty++
		}
	}
	assert.Equal(t, 3, empty)
}

func TestPartitionSharesSpareVehicles(t *testing.T) {
	s := plan(t, 6, 1, model.Vehicle{Count: 10})
	sp, err := New(engine(t, 1), Options{Blocks: 4}, zerolog.Nop())
	require.NoError(t, err)
	run := sp.engine.NewRun(context.Background(), s)

	blocks, err := sp.partition(run, s)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	routes, limit, seeds := 0, 0, map[int64]bool{}
	for _, b := range blocks {
		routes += len(b.routes)
		l, capped := b.sub.Limit(0)
		require.True(t, capped)
		assert.GreaterOrEqual(t, l, len(b.routes))
		limit += l
		seeds[b.seed] = true
	}
	assert.Equal(t, 6, routes)
	// six routes in use and four spare vehicles
	assert.Equal(t, 10, limit)
	assert.Len(t, seeds, 4)
}

func TestPartitionLeavesUncappedDepotsUnlimited(t *testing.T) {
	s := plan(t, 5, 1, model.Vehicle{})
	sp, err := New(engine(t, 1), Options{Blocks: 2}, zerolog.Nop())
	require.NoError(t, err)
	blocks, err := sp.partition(sp.engine.NewRun(context.Background(), s), s)
	require.NoError(t, err)
	for _, b := range blocks {
		_, capped := b.sub.Limit(0)
		assert.False(t, capped)
	}
}

func TestNewRejectsNegativeOptions(t *testing.T) {
	_, err := New(engine(t, 1), Options{Workers: -1}, zerolog.Nop())
	assert.True(t, errs.Is(err, errs.CodeConfiguration))
}
