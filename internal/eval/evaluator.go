// Package eval resimulates routes from scratch and scores them.
//
// Every move the search tentatively applies is verified here, so the
// evaluator is the single authority on cost and feasibility. It is a pure
// function of the model and the stop sequence.
package eval

import (
	"vrpils/internal/model"
)

// Evaluator scores routes against one model.
type Evaluator struct {
	m *model.Model
}

// New returns an evaluator bound to m.
func New(m *model.Model) *Evaluator { return &Evaluator{m: m} }

// Model returns the bound model.
func (e *Evaluator) Model() *model.Model { return e.m }

// Arc is the optimization distance between two consecutive stops. Legs
// leaving a depot are free on open-start routes and legs entering one are
// free on open-end routes.
func (e *Evaluator) Arc(a, b *model.Stop) float64 {
	if a.IsDepot() && e.m.Params.OpenStart {
		return 0
	}
	if b.IsDepot() && e.m.Params.OpenEnd {
		return 0
	}
	return e.m.Metric.Distance(a.Index, b.Index)
}

func (e *Evaluator) leg(a, b *model.Stop) float64 {
	if a.IsDepot() && e.m.Params.OpenStart {
		return 0
	}
	if b.IsDepot() && e.m.Params.OpenEnd {
		return 0
	}
	return e.m.Metric.Time(a.Index, b.Index)
}

// Distance sums Arc over the route, closing at the route's own start depot.
func (e *Evaluator) Distance(r *model.Route) float64 {
	if r.Empty() {
		return 0
	}
	var d float64
	stops := r.Stops
	last := len(stops) - 1
	for i := 0; i < last; i++ {
		to := stops[i+1]
		if i+1 == last {
			to = stops[0]
		}
		d += e.Arc(stops[i], to)
	}
	return d
}

// Route evaluates a single route. An empty route yields the zero Quality.
func (e *Evaluator) Route(r *model.Route) model.Quality {
	if r.Empty() {
		return model.Quality{}
	}
	var q model.Quality
	q.Routes = 1
	q.Distance = e.Distance(r)
	e.simulate(r, &q)
	e.load(r, &q)
	e.stopCount(r, &q)
	e.presets(r, &q)
	e.blacklist(r, &q)
	e.depots(r, &q)
	if e.m.Params.PDP {
		e.precedence(r, &q)
	}
	if e.m.Params.LoadPlanning && e.m.LoadCheck != nil {
		q.LoadPlan = e.m.LoadCheck(r.Stops)
	}
	q.Cost = q.Distance + e.m.Vehicle.FixedCost
	q.Penalty = q.Violations.Total()
	return q
}

// Routes evaluates every route and sums the results in order.
func (e *Evaluator) Routes(routes []*model.Route) model.Quality {
	var total model.Quality
	for _, r := range routes {
		total = total.Add(e.Route(r))
	}
	return total
}

// simulate walks the route in time: driving, shift breaks, waiting and
// service. The closing depot takes the opening depot's windows.
func (e *Evaluator) simulate(r *model.Route, q *model.Quality) {
	v := &e.m.Vehicle
	stops := r.Stops
	start := stops[0]
	last := len(stops) - 1

	t := opening(start)
	t0 := t
	driven := 0.0
	prev := start
	for i := 1; i <= last; i++ {
		cur := stops[i]
		if i == last {
			if e.m.Params.OpenEnd {
				break
			}
			cur = start
		}
		leg := e.leg(prev, cur)
		if v.ShiftDriving > 0 && driven > 0 && driven+leg > v.ShiftDriving {
			t += v.BreakTime
			driven = 0
			q.Breaks++
		}
		t += leg
		driven += leg

		open, late := window(cur.Windows, t)
		if t < open {
			wait := open - t
			if v.MaxWaiting > 0 && wait > v.MaxWaiting {
				q.Waiting += wait - v.MaxWaiting
			}
			t = open
		}
		q.Delay += late
		if i < last {
			t += cur.ServiceTime
			if cur.Kind == model.KindPause {
				driven = 0
			}
		}
		prev = cur
	}
	q.Elapsed = t - t0
	if v.MaxDuration > 0 && q.Elapsed > v.MaxDuration {
		q.Violations.Duration += q.Elapsed - v.MaxDuration
	}
}

func opening(s *model.Stop) float64 {
	if len(s.Windows) == 0 {
		return 0
	}
	return s.Windows[0].Open
}

// window picks the first window still open at arrival t and returns its
// opening time; arrival after every window reports the lateness instead.
func window(ws []model.TimeWindow, t float64) (open, late float64) {
	if len(ws) == 0 {
		return t, 0
	}
	for _, w := range ws {
		if t <= w.Close {
			return w.Open, 0
		}
	}
	return t, t - ws[len(ws)-1].Close
}

// counted reports whether the replenishment at position i resets the load.
// It needs a following stop that is neither another replenishment nor the
// closing depot.
func counted(stops []*model.Stop, i int) bool {
	if stops[i].Kind != model.KindReplenish || i+1 >= len(stops)-1 {
		return false
	}
	return stops[i+1].Kind != model.KindReplenish
}

// load tracks per-compartment load segment by segment. Each segment starts
// with the unpaired delivery demand it will drop off; deliveries unload and
// pickups load on the way.
func (e *Evaluator) load(r *model.Route, q *model.Quality) {
	capacity := e.m.Vehicle.Capacity
	if capacity == nil {
		return
	}
	stops := r.Stops
	last := len(stops) - 1
	cur := make([]float64, len(capacity))
	peak := make([]float64, len(capacity))

	initial := func(from int) {
		clear(cur)
		for j := from; j < last; j++ {
			if counted(stops, j) {
				break
			}
			s := stops[j]
			if s.IsCustomer() && !s.Paired() && s.Load == model.Delivery {
				addDemand(cur, s.Demand, 1)
			}
		}
		copy(peak, cur)
	}
	flush := func() {
		for k, c := range capacity {
			if peak[k] > c {
				q.Capacity += peak[k] - c
			}
		}
	}

	initial(1)
	for i := 1; i < last; i++ {
		s := stops[i]
		if counted(stops, i) {
			flush()
			initial(i + 1)
			continue
		}
		if !s.IsCustomer() {
			continue
		}
		if s.Load == model.Pickup {
			addDemand(cur, s.Demand, 1)
		} else {
			addDemand(cur, s.Demand, -1)
		}
		for k := range peak {
			peak[k] = max(peak[k], cur[k])
		}
	}
	flush()
}

func addDemand(load, demand []float64, sign float64) {
	for k := range load {
		if k < len(demand) {
			load[k] += sign * demand[k]
		}
	}
}

// stopCount collapses consecutive co-located interior stops into one visit.
func (e *Evaluator) stopCount(r *model.Route, q *model.Quality) {
	limit := e.m.Vehicle.MaxStops
	if limit <= 0 {
		return
	}
	n := 0
	var prev *model.Stop
	for _, s := range r.Interior() {
		if s.Kind == model.KindPause {
			continue
		}
		if prev == nil || !prev.SameLocation(s) {
			n++
		}
		prev = s
	}
	if n > limit {
		q.Stops += float64(n - limit)
	}
}

// presets penalizes block mixing, block order inversions and rank slots
// that do not match.
func (e *Evaluator) presets(r *model.Route, q *model.Quality) {
	block := 0
	lastPos := map[int]int(nil)
	slot := 0
	for _, s := range r.Interior() {
		if !s.IsCustomer() {
			continue
		}
		slot++
		if s.Rank > 0 && s.Rank != slot {
			q.Preset++
		}
		if s.Block == 0 {
			continue
		}
		if block == 0 {
			block = s.Block
		} else if s.Block != block {
			q.Preset++
		}
		if lastPos == nil {
			lastPos = make(map[int]int)
		}
		if p, ok := lastPos[s.Block]; ok && s.BlockPosition < p {
			q.Preset++
		}
		lastPos[s.Block] = s.BlockPosition
	}
}

// blacklist counts every listed stop that shares the route.
func (e *Evaluator) blacklist(r *model.Route, q *model.Quality) {
	var present map[int]bool
	for _, s := range r.Interior() {
		if len(s.Blacklist) == 0 {
			continue
		}
		if present == nil {
			present = make(map[int]bool, r.Customers())
			for _, o := range r.Interior() {
				present[o.Index] = true
			}
		}
		for _, b := range s.Blacklist {
			if b != s.Index && present[b] {
				q.Blacklist++
			}
		}
	}
}

func (e *Evaluator) depots(r *model.Route, q *model.Quality) {
	d := r.Depot()
	for _, s := range r.Interior() {
		if !s.AllowsDepot(d) {
			q.Depot++
		}
	}
}

// precedence counts deliveries whose pickup is not earlier in the same
// route and pickups whose delivery never follows.
func (e *Evaluator) precedence(r *model.Route, q *model.Quality) {
	var open map[int]bool
	for _, s := range r.Interior() {
		if !s.Paired() {
			continue
		}
		if open == nil {
			open = make(map[int]bool)
		}
		if s.Load == model.Pickup {
			open[s.Shipment] = true
			continue
		}
		if open[s.Shipment] {
			delete(open, s.Shipment)
		} else {
			q.Precedence++
		}
	}
	q.Precedence += float64(len(open))
}

// Report measures a route under the reporting metric.
func (e *Evaluator) Report(r *model.Route) (distance, duration float64) {
	if r.Empty() {
		return 0, 0
	}
	m := e.m.Reporting()
	stops := r.Stops
	last := len(stops) - 1
	for i := 0; i < last; i++ {
		to := stops[i+1]
		if i+1 == last {
			to = stops[0]
		}
		distance += m.Distance(stops[i].Index, to.Index)
		duration += m.Time(stops[i].Index, to.Index)
	}
	return distance, duration
}
