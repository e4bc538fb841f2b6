package opt

import (
	"cmp"
	"slices"

	"vrpils/internal/metrics"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// perturb kicks s out of its local optimum with the configured perturbation
// and reports how many changes it made. Every change is committed.
func perturb(run *Run, s *solution.Solution) (int, error) {
	kind := run.Options.Perturbation
	var (
		n   int
		err error
	)
	if kind == PerturbRuin {
		n, err = ruinRecreate(run, s)
	} else {
		n, err = relocations(run, s)
	}
	if err != nil {
		return n, err
	}
	outcome := "applied"
	if n == 0 {
		outcome = "failed"
	}
	metrics.Perturbations.WithLabelValues(kind, outcome).Inc()
	return n, nil
}

// relocations moves random stops (random shipments in PDP mode) to random
// positions, keeping only moves that do not raise the penalty. At most
// PerturbMoves moves are made within PerturbRetries attempts.
func relocations(run *Run, s *solution.Solution) (int, error) {
	done := 0
	for try := 0; try < run.Options.PerturbRetries && done < run.Options.PerturbMoves; try++ {
		var (
			ok  bool
			err error
		)
		if s.Model.Params.PDP {
			ok, err = randomPairMove(run, s)
		} else {
			ok, err = randomRelocate(run, s)
		}
		if err != nil {
			return done, err
		}
		if ok {
			done++
		}
	}
	return done, nil
}

func nonEmpty(s *solution.Solution) []int {
	var out []int
	for i, r := range s.Routes {
		if !r.Empty() {
			out = append(out, i)
		}
	}
	return out
}

// keepIfNoWorse commits the speculative edit unless it raised the penalty,
// in which case undo reverts it.
func keepIfNoWorse(run *Run, s *solution.Solution, before model.Quality, routes []int, undo func() error) (bool, error) {
	s.Touch(routes...)
	if s.Quality().Penalty <= before.Penalty+run.Options.Epsilon {
		s.Fixate()
		return true, nil
	}
	if err := undo(); err != nil {
		s.Fixate()
		return false, err
	}
	s.Reset()
	return false, nil
}

func randomRelocate(run *Run, s *solution.Solution) (bool, error) {
	rng := run.rng
	used := nonEmpty(s)
	if len(used) == 0 {
		return false, nil
	}
	r1 := used[rng.Intn(len(used))]
	S := s.Routes[r1].Stops
	i := 1 + rng.Intn(len(S)-2)
	if S[i].Paired() {
		return false, nil
	}
	r2 := rng.Intn(len(s.Routes))
	if r2 != r1 && s.IsOverhang(r2) && !s.IsOverhang(r1) {
		return false, nil
	}
	j := rng.Intn(len(s.Routes[r2].Stops) - 1)
	if r1 == r2 && (j == i-1 || j == i) {
		return false, nil
	}
	before := s.Quality()
	if err := moveSegment(s, r1, i, 1, r2, j, false); err != nil {
		return false, err
	}
	return keepIfNoWorse(run, s, before, touched(r1, r2), func() error {
		b1, bi, b2, bj := relocateInverse(r1, i, 1, r2, j)
		return moveSegment(s, b1, bi, 1, b2, bj, false)
	})
}

func randomPairMove(run *Run, s *solution.Solution) (bool, error) {
	rng := run.rng
	all := shipments(s)
	if len(all) == 0 {
		return false, nil
	}
	sh := all[rng.Intn(len(all))]
	r2 := rng.Intn(len(s.Routes))
	if r2 != sh.route && s.IsOverhang(r2) && !s.IsOverhang(sh.route) {
		return false, nil
	}
	m := s.Routes[r2].Len()
	if r2 == sh.route {
		m -= 2
	}
	x := rng.Intn(m - 1)
	y := x + rng.Intn(m-1-x)
	if r2 == sh.route && x == sh.pick-1 && y == sh.drop-2 {
		return false, nil
	}
	before := s.Quality()
	if err := movePair(s, sh.route, sh.pick, sh.drop, r2, x, y); err != nil {
		return false, err
	}
	return keepIfNoWorse(run, s, before, touched(sh.route, r2), func() error {
		return movePair(s, r2, x+1, y+2, sh.route, sh.pick-1, sh.drop-2)
	})
}

// unit is what ruin removes and recreate reinserts: a single stop, or a
// pickup with its delivery.
type unit struct {
	first, second *model.Stop
}

// ruinRecreate removes the RuinSize stops closest to a random seed stop
// (whole shipments in PDP mode), never reaching past RuinRadius when one is
// set, and reinserts each, in random order, at the
// cheapest position that does not raise its route's penalty, falling back
// to the cheapest position overall. Stops are never dropped.
func ruinRecreate(run *Run, s *solution.Solution) (int, error) {
	rng := run.rng
	e := s.Evaluator()
	type placed struct {
		stop  *model.Stop
		route int
	}
	var pool []placed
	for r, route := range s.Routes {
		for _, st := range route.Interior() {
			pool = append(pool, placed{st, r})
		}
	}
	if len(pool) == 0 {
		return 0, nil
	}
	seed := pool[rng.Intn(len(pool))].stop
	slices.SortStableFunc(pool, func(a, b placed) int {
		return cmp.Compare(e.Arc(seed, a.stop), e.Arc(seed, b.stop))
	})

	removed := make(map[*model.Stop]bool)
	var units []unit
	byShipment := make(map[int][]*model.Stop)
	if s.Model.Params.PDP {
		for _, p := range pool {
			if p.stop.Paired() {
				byShipment[p.stop.Shipment] = append(byShipment[p.stop.Shipment], p.stop)
			}
		}
	}
	radius := run.Options.RuinRadius
	for _, p := range pool {
		if len(removed) >= run.Options.RuinSize {
			break
		}
		if radius > 0 && p.stop != seed && e.Arc(seed, p.stop) > radius {
			break
		}
		if removed[p.stop] {
			continue
		}
		if pair := byShipment[p.stop.Shipment]; len(pair) == 2 {
			pick, drop := pair[0], pair[1]
			if pick.Load != model.Pickup {
				pick, drop = drop, pick
			}
			removed[pick], removed[drop] = true, true
			units = append(units, unit{pick, drop})
			continue
		}
		removed[p.stop] = true
		units = append(units, unit{first: p.stop})
	}

	var dirty []int
	for r, route := range s.Routes {
		kept := slices.DeleteFunc(slices.Clone(route.Stops), func(st *model.Stop) bool { return removed[st] })
		if len(kept) != route.Len() {
			route.Stops = kept
			dirty = append(dirty, r)
		}
	}
	rng.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })

	closed := make([]bool, len(s.Routes))
	for r := range s.Routes {
		closed[r] = s.IsOverhang(r)
	}
	for _, u := range units {
		r := reinsert(s, u, closed)
		if !slices.Contains(dirty, r) {
			dirty = append(dirty, r)
		}
	}
	s.Touch(dirty...)
	s.Fixate()
	return len(units), nil
}

// reinsert puts u back at its cheapest position and returns the route.
func reinsert(s *solution.Solution, u unit, closed []bool) int {
	e := s.Evaluator()
	type best struct {
		route int
		stops []*model.Stop
		delta float64
	}
	feasible := best{route: -1}
	cheapest := best{route: -1}
	consider := func(r int, base model.Quality, stops []*model.Stop) {
		q := e.Route(&model.Route{Stops: stops})
		delta := q.Fitness() - base.Fitness()
		if cheapest.route < 0 || delta < cheapest.delta {
			cheapest = best{r, stops, delta}
		}
		if q.Penalty <= base.Penalty && (feasible.route < 0 || delta < feasible.delta) {
			feasible = best{r, stops, delta}
		}
	}
	open := func(r int) bool { return !closed[r] }
	if !slices.ContainsFunc(closed, func(c bool) bool { return !c }) {
		open = func(int) bool { return true }
	}
	for r, route := range s.Routes {
		if !open(r) {
			continue
		}
		S := route.Stops
		base := e.Route(route)
		for x := 0; x < len(S)-1; x++ {
			if u.second == nil {
				consider(r, base, slices.Concat(S[:x+1], []*model.Stop{u.first}, S[x+1:]))
				continue
			}
			for y := x; y < len(S)-1; y++ {
				consider(r, base, slices.Concat(S[:x+1], []*model.Stop{u.first}, S[x+1:y+1], []*model.Stop{u.second}, S[y+1:]))
			}
		}
	}
	pick := feasible
	if pick.route < 0 {
		pick = cheapest
	}
	s.Routes[pick.route].Stops = pick.stops
	return pick.route
}
