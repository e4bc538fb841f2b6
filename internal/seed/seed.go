// Package seed builds starting plans for the search: one route per stop, or
// a sequential fill that keeps each route within capacity. It also
// generates random benchmark instances.
package seed

import (
	"math"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

func allows(u []*model.Stop, depot int) bool {
	for _, s := range u {
		if !s.AllowsDepot(depot) {
			return false
		}
	}
	return true
}

// depotFor returns the first depot that may serve every stop of u.
func depotFor(m *model.Model, u []*model.Stop) *model.Stop {
	for _, d := range m.Depots {
		if allows(u, d.Depot) {
			return d
		}
	}
	return m.Depots[0]
}

// units groups stops into what must travel together: a shipment's pickup
// and delivery in PDP mode, every other stop on its own.
func units(m *model.Model, stops []*model.Stop) ([][]*model.Stop, error) {
	var out [][]*model.Stop
	open := map[int]int{}
	for _, s := range stops {
		if s.IsDepot() {
			continue
		}
		if !m.Params.PDP || !s.Paired() {
			out = append(out, []*model.Stop{s})
			continue
		}
		if k, ok := open[s.Shipment]; ok {
			u := out[k]
			if u[0].Load != model.Pickup {
				u[0], s = s, u[0]
			}
			out[k] = append(u, s)
			delete(open, s.Shipment)
			continue
		}
		open[s.Shipment] = len(out)
		out = append(out, []*model.Stop{s})
	}
	if len(open) > 0 {
		return nil, errs.New(errs.CodeInvalidInput, "shipment without a partner").WithField("count", len(open))
	}
	return out, nil
}

// OneRoutePerStop puts every stop (every shipment in PDP mode) on its own
// route.
func OneRoutePerStop(m *model.Model, stops []*model.Stop) (*solution.Solution, error) {
	us, err := units(m, stops)
	if err != nil {
		return nil, err
	}
	routes := make([]*model.Route, 0, len(us))
	for i, u := range us {
		routes = append(routes, model.NewRoute(depotFor(m, u), i+1, u...))
	}
	return build(m, routes)
}

// Sequential fills one route at a time, repeatedly appending the unit
// closest to the route's current end that keeps the route free of new
// penalty, and opens the next route when nothing fits. A unit that fits
// nowhere gets a route of its own.
func Sequential(m *model.Model, stops []*model.Stop) (*solution.Solution, error) {
	us, err := units(m, stops)
	if err != nil {
		return nil, err
	}
	e := eval.New(m)
	used := make([]bool, len(us))
	var routes []*model.Route
	for left := len(us); left > 0; {
		first := -1
		for i := range us {
			if !used[i] {
				first = i
				break
			}
		}
		r := model.NewRoute(depotFor(m, us[first]), len(routes)+1)
		for {
			last := r.Stops[len(r.Stops)-2]
			base := e.Route(r).Penalty
			best, bestDelta := -1, math.MaxFloat64
			for i, u := range us {
				if used[i] || !allows(u, r.Depot()) {
					continue
				}
				d := e.Arc(last, u[0])
				if d >= bestDelta {
					continue
				}
				if e.Route(appended(r, u)).Penalty > base {
					continue
				}
				best, bestDelta = i, d
			}
			if best < 0 {
				break
			}
			r = appended(r, us[best])
			used[best] = true
			left--
		}
		if r.Empty() {
			r = appended(r, us[first])
			used[first] = true
			left--
		}
		routes = append(routes, r)
	}
	return build(m, routes)
}

func appended(r *model.Route, u []*model.Stop) *model.Route {
	n := len(r.Stops)
	stops := make([]*model.Stop, 0, n+len(u))
	stops = append(stops, r.Stops[:n-1]...)
	stops = append(stops, u...)
	stops = append(stops, r.Stops[n-1])
	return &model.Route{Stops: stops}
}

func build(m *model.Model, routes []*model.Route) (*solution.Solution, error) {
	s, err := solution.New(m, routes)
	if err != nil {
		return nil, err
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return s, nil
}
