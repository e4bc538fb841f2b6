package opt

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vrpils/internal/model"
	"vrpils/internal/progress"
	"vrpils/internal/seed"
	"vrpils/internal/solution"
)

func testRun(m *model.Model, opts Options) *Run {
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	return NewRun(context.Background(), m, opts, zerolog.Nop(), nil)
}

// planar builds a single-depot model with the depot at the origin and one
// customer per point. Routes list customer numbers, 1-based.
func planar(t *testing.T, p model.Params, pts []model.Point, routes ...[]int) *solution.Solution {
	t.Helper()
	all := append([]model.Point{{}}, pts...)
	stops := []*model.Stop{{Index: 0, Name: "depot", Kind: model.KindDepot}}
	for i, pt := range pts {
		stops = append(stops, &model.Stop{Index: i + 1, Name: string(rune('A' + i)), X: pt.X, Y: pt.Y, Demand: []float64{1}})
	}
	m := &model.Model{Metric: &model.Euclidean{Points: all}, Depots: stops[:1], Params: p}
	rs := make([]*model.Route, 0, len(routes))
	for g, idx := range routes {
		cs := make([]*model.Stop, len(idx))
		for j, k := range idx {
			cs[j] = stops[k]
		}
		rs = append(rs, model.NewRoute(stops[0], g+1, cs...))
	}
	s, err := solution.New(m, rs)
	require.NoError(t, err)
	return s
}

// line places n customers on the x axis at 1..n.
func line(t *testing.T, n int, routes ...[]int) *solution.Solution {
	t.Helper()
	pts := make([]model.Point, n)
	for i := range pts {
		pts[i] = model.Point{X: float64(i + 1)}
	}
	return planar(t, model.Params{}, pts, routes...)
}

// scrambled deals a random instance into k routes in random order, which
// leaves every operator something to improve. Pickups precede all
// deliveries of their route.
func scrambled(t *testing.T, cfg seed.InstanceConfig, p model.Params, k int, rs int64) *solution.Solution {
	t.Helper()
	rng := rand.New(rand.NewSource(rs))
	in := seed.Random(cfg, rng)
	m := in.Model(model.Vehicle{}, p)
	loose := make([][]*model.Stop, k)
	picks := make([][]*model.Stop, k)
	drops := make([][]*model.Stop, k)
	for i, st := range in.Stops {
		switch {
		case !st.Paired():
			g := rng.Intn(k)
			loose[g] = append(loose[g], st)
		case st.Load == model.Pickup:
			g := rng.Intn(k)
			picks[g] = append(picks[g], st)
			drops[g] = append(drops[g], in.Stops[i+1])
		}
	}
	shuffle := func(xs []*model.Stop) []*model.Stop {
		rng.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
		return xs
	}
	routes := make([]*model.Route, 0, k)
	for g := range k {
		d := in.Depots[g%len(in.Depots)]
		var cs []*model.Stop
		cs = append(cs, shuffle(loose[g])...)
		cs = append(cs, shuffle(picks[g])...)
		cs = append(cs, shuffle(drops[g])...)
		routes = append(routes, model.NewRoute(d, g+1, cs...))
	}
	s, err := solution.New(m, routes)
	require.NoError(t, err)
	require.NoError(t, s.Normalize())
	return s
}

// layout lists stop names per route.
func layout(s *solution.Solution) [][]string {
	out := make([][]string, len(s.Routes))
	for i, r := range s.Routes {
		for _, st := range r.Interior() {
			out[i] = append(out[i], st.Name)
		}
	}
	return out
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Publish(_ string, evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
