// Package solution holds the mutable route plan together with its cached
// per-route qualities.
//
// Edits follow a two-state protocol per route. Touch evaluates changed
// routes speculatively and remembers their previous quality; Fixate commits
// every speculative route and Reset restores the remembered qualities after
// the caller has undone the edit. The total is always the ordered sum of the
// cache, so it matches a from-scratch evaluation exactly.
package solution

import (
	"iter"
	"maps"
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
)

// State is the cache state of one route.
type State int

const (
	Clean State = iota
	Speculative
)

func (s State) String() string {
	if s == Speculative {
		return "speculative"
	}
	return "clean"
}

type cached struct {
	q        model.Quality
	state    State
	original model.Quality
}

// Solution is a route plan with a quality cache. It has one mutator at a
// time and is not safe for concurrent use.
type Solution struct {
	Model  *model.Model
	Routes []*model.Route

	eval    *eval.Evaluator
	cache   []cached
	total   model.Quality
	pending []int

	// limits overrides the vehicle availability per depot.
	limits   map[int]int
	used     map[int]int
	overhang []bool
}

// New validates the model and routes and evaluates the plan.
func New(m *model.Model, routes []*model.Route) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for i, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, errs.Wrap(err, errs.CodeStructural, "invalid initial route").WithField("route", i)
		}
		if m.Depot(r.Depot()) == nil {
			return nil, errs.Structural("route %d uses unknown depot %d", i, r.Depot())
		}
	}
	s := &Solution{
		Model:  m,
		Routes: routes,
		eval:   eval.New(m),
		limits: make(map[int]int),
	}
	s.Evaluate()
	return s, nil
}

// Evaluator returns the evaluator bound to the solution's model.
func (s *Solution) Evaluator() *eval.Evaluator { return s.eval }

// Evaluate rebuilds the whole cache from scratch and drops any speculation.
func (s *Solution) Evaluate() model.Quality {
	s.cache = make([]cached, len(s.Routes))
	for i, r := range s.Routes {
		s.cache[i] = cached{q: s.eval.Route(r)}
	}
	s.pending = s.pending[:0]
	s.sum()
	s.refresh()
	return s.total
}

func (s *Solution) sum() {
	var t model.Quality
	for i := range s.cache {
		t = t.Add(s.cache[i].q)
	}
	s.total = t
}

// Quality is the cached total.
func (s *Solution) Quality() model.Quality { return s.total }

// Fitness is shorthand for Quality().Fitness().
func (s *Solution) Fitness() float64 { return s.total.Fitness() }

// RouteQuality returns the cached quality of route i.
func (s *Solution) RouteQuality(i int) model.Quality { return s.cache[i].q }

// State returns the cache state of route i.
func (s *Solution) State(i int) State { return s.cache[i].state }

// Speculating reports whether an edit window is open.
func (s *Solution) Speculating() bool { return len(s.pending) > 0 }

// Touch re-evaluates the given routes after an edit. A route touched twice
// in one window keeps its first remembered quality.
func (s *Solution) Touch(routes ...int) {
	for _, i := range routes {
		c := &s.cache[i]
		if c.state == Clean {
			c.original = c.q
			c.state = Speculative
			s.pending = append(s.pending, i)
		}
		c.q = s.eval.Route(s.Routes[i])
	}
	s.sum()
}

// Fixate commits every speculative route.
func (s *Solution) Fixate() {
	for _, i := range s.pending {
		s.cache[i].state = Clean
	}
	s.pending = s.pending[:0]
	s.refresh()
}

// Reset restores the remembered qualities. The caller must already have
// reverted the route contents.
func (s *Solution) Reset() {
	for _, i := range s.pending {
		c := &s.cache[i]
		c.q = c.original
		c.state = Clean
	}
	s.pending = s.pending[:0]
	s.sum()
}

// SetLimit caps the vehicles usable at depot, overriding the vehicle's
// availability. A cap of 0 allows no route at all; n < 0 drops the override.
func (s *Solution) SetLimit(depot, n int) {
	if n < 0 {
		delete(s.limits, depot)
	} else {
		s.limits[depot] = n
	}
	s.refresh()
}

// Limit is the vehicle count available at depot. capped is false when the
// depot has no limit.
func (s *Solution) Limit(depot int) (n int, capped bool) {
	if n, ok := s.limits[depot]; ok {
		return n, true
	}
	n = s.Model.Vehicle.Available(depot)
	return n, n > 0
}

// Used is the number of non-empty routes at depot.
func (s *Solution) Used(depot int) int { return s.used[depot] }

// IsOverhang reports whether route i lies beyond its depot's vehicle count.
// An empty route is an overhang destination once every vehicle is in use.
func (s *Solution) IsOverhang(i int) bool {
	if i >= len(s.overhang) {
		return false
	}
	return s.overhang[i]
}

// Overhangs counts non-empty overhang routes.
func (s *Solution) Overhangs() int {
	n := 0
	for i, o := range s.overhang {
		if o && !s.Routes[i].Empty() {
			n++
		}
	}
	return n
}

// Excess counts non-empty routes beyond their depot's vehicle count from the
// current route contents. Unlike Overhangs it needs no Fixate after an edit.
func (s *Solution) Excess() int {
	used := make(map[int]int, len(s.Model.Depots))
	for _, r := range s.Routes {
		if !r.Empty() {
			used[r.Depot()]++
		}
	}
	n := 0
	for d, u := range used {
		if l, ok := s.Limit(d); ok && u > l {
			n += u - l
		}
	}
	return n
}

func (s *Solution) refresh() {
	s.used = make(map[int]int, len(s.Model.Depots))
	s.overhang = slices.Grow(s.overhang[:0], len(s.Routes))[:len(s.Routes)]
	for i, r := range s.Routes {
		s.overhang[i] = false
		if r.Empty() {
			continue
		}
		d := r.Depot()
		s.used[d]++
		if l, ok := s.Limit(d); ok && s.used[d] > l {
			s.overhang[i] = true
		}
	}
	for i, r := range s.Routes {
		if !r.Empty() {
			continue
		}
		d := r.Depot()
		if l, ok := s.Limit(d); ok && s.used[d] >= l {
			s.overhang[i] = true
		}
	}
}

// Normalize drops empty routes, appends one empty route per depot and
// renumbers depot instances by route position. It refuses to run inside an
// edit window.
func (s *Solution) Normalize() error {
	if s.Speculating() {
		return errs.New(errs.CodeInternal, "normalize during speculative edit")
	}
	kept := make([]*model.Route, 0, len(s.Routes)+len(s.Model.Depots))
	spare := make(map[int]*model.Route)
	for _, r := range s.Routes {
		if !r.Empty() {
			kept = append(kept, r)
		} else if _, ok := spare[r.Depot()]; !ok {
			spare[r.Depot()] = r
		}
	}
	for _, d := range s.Model.Depots {
		if r, ok := spare[d.Depot]; ok {
			kept = append(kept, r)
			continue
		}
		kept = append(kept, model.NewRoute(d, 0))
	}
	s.Routes = kept
	for i, r := range s.Routes {
		if err := r.Validate(); err != nil {
			return errs.Wrap(err, errs.CodeStructural, "normalize").WithField("route", i)
		}
		id := i + 1
		last := len(r.Stops) - 1
		if r.Stops[0].Instance != id {
			r.Stops[0] = r.Stops[0].DepotCopy(id)
		}
		if r.Stops[last].Instance != id {
			r.Stops[last] = r.Stops[last].DepotCopy(id)
		}
	}
	s.Evaluate()
	return nil
}

// Clone deep-copies route sequences and the cache. Stops are shared.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		Model:    s.Model,
		Routes:   make([]*model.Route, len(s.Routes)),
		eval:     s.eval,
		cache:    slices.Clone(s.cache),
		total:    s.total,
		pending:  slices.Clone(s.pending),
		limits:   maps.Clone(s.limits),
		used:     maps.Clone(s.used),
		overhang: slices.Clone(s.overhang),
	}
	for i, r := range s.Routes {
		c.Routes[i] = r.Clone()
	}
	return c
}

// All iterates routes with their index.
func (s *Solution) All() iter.Seq2[int, *model.Route] {
	return func(yield func(int, *model.Route) bool) {
		for i, r := range s.Routes {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Customers counts interior stops over all routes.
func (s *Solution) Customers() int {
	n := 0
	for _, r := range s.Routes {
		n += r.Customers()
	}
	return n
}

// Validate checks every route's depot framing.
func (s *Solution) Validate() error {
	for i, r := range s.Routes {
		if err := r.Validate(); err != nil {
			return errs.Wrap(err, errs.CodeStructural, "invalid route").WithField("route", i)
		}
	}
	return nil
}
