package model

import (
	"slices"

	"vrpils/internal/errs"
)

// Route is an ordered visit sequence that starts and ends at copies of the
// same depot.
type Route struct {
	Stops []*Stop
}

// NewRoute builds depot → customers → depot using fresh copies of depot.
func NewRoute(depot *Stop, instance int, customers ...*Stop) *Route {
	stops := make([]*Stop, 0, len(customers)+2)
	stops = append(stops, depot.DepotCopy(instance))
	stops = append(stops, customers...)
	stops = append(stops, depot.DepotCopy(instance))
	return &Route{Stops: stops}
}

// Len is the number of stops including both depots.
func (r *Route) Len() int { return len(r.Stops) }

// Customers is the number of interior stops.
func (r *Route) Customers() int { return len(r.Stops) - 2 }

// Empty reports whether the route visits nothing between its depots.
func (r *Route) Empty() bool { return len(r.Stops) <= 2 }

// Start is the opening depot stop.
func (r *Route) Start() *Stop { return r.Stops[0] }

// End is the closing depot stop.
func (r *Route) End() *Stop { return r.Stops[len(r.Stops)-1] }

// Depot is the route's depot identity.
func (r *Route) Depot() int { return r.Stops[0].Depot }

// Interior returns the stops between the depots; the slice aliases the route.
func (r *Route) Interior() []*Stop { return r.Stops[1 : len(r.Stops)-1] }

// Clone copies the stop sequence; stops themselves are shared.
func (r *Route) Clone() *Route {
	return &Route{Stops: slices.Clone(r.Stops)}
}

// Equal reports whether both routes hold the same stops in the same order.
func (r *Route) Equal(o *Route) bool {
	return slices.Equal(r.Stops, o.Stops)
}

// Validate checks the depot framing invariant.
func (r *Route) Validate() error {
	if len(r.Stops) < 2 {
		return errs.Structural("route has %d stops, need both depots", len(r.Stops))
	}
	first, last := r.Start(), r.End()
	if !first.IsDepot() || !last.IsDepot() {
		return errs.Structural("route must start and end at a depot")
	}
	if first.Depot != last.Depot {
		return errs.Structural("route opens at depot %d and closes at depot %d", first.Depot, last.Depot)
	}
	for i, s := range r.Interior() {
		if s.IsDepot() {
			return errs.Structural("depot stop at interior position %d", i+1)
		}
	}
	return nil
}
