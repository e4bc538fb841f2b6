package solution

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/model"
)

// Tour is the giant-tour view of a solution: route interiors joined by depot
// separators. Separator k opens route k and closes route k-1; the last one
// closes the final route. Operators may permute Stops in place and write the
// result back with Apply.
type Tour struct {
	Stops []*model.Stop
	seps  []int
}

// Tour builds the flat view of the current routes.
func (s *Solution) Tour() *Tour {
	n := 1
	for _, r := range s.Routes {
		n += r.Customers() + 1
	}
	t := &Tour{
		Stops: make([]*model.Stop, 0, n),
		seps:  make([]int, 0, len(s.Routes)+1),
	}
	for _, r := range s.Routes {
		t.seps = append(t.seps, len(t.Stops))
		t.Stops = append(t.Stops, r.Start())
		t.Stops = append(t.Stops, r.Interior()...)
	}
	t.seps = append(t.seps, len(t.Stops))
	if len(s.Routes) > 0 {
		t.Stops = append(t.Stops, s.Routes[len(s.Routes)-1].End())
	}
	return t
}

// Len is the number of positions including separators.
func (t *Tour) Len() int { return len(t.Stops) }

// Separator reports whether position p holds a depot separator.
func (t *Tour) Separator(p int) bool { return t.Stops[p].IsDepot() }

// Bounds lists the separator positions of routes lo..hi in the original
// view: the one opening each route, then the one closing hi.
func (t *Tour) Bounds(lo, hi int) []int { return t.seps[lo : hi+2] }

// RouteOf maps a position of the original view to its route. A separator
// belongs to the route it opens; the final separator to the last route.
func (t *Tour) RouteOf(p int) int {
	k, found := slices.BinarySearch(t.seps, p)
	if found {
		return min(k, len(t.seps)-2)
	}
	return k - 1
}

// Apply writes the current order of the positions spanned by routes lo..hi
// back into those routes. Every route keeps its own depot stops. The edit
// must not have moved a position across the bounding separators.
func (t *Tour) Apply(s *Solution, lo, hi int) error {
	if lo < 0 || hi >= len(s.Routes) || lo > hi {
		return errs.Structural("tour routes %d..%d out of range", lo, hi)
	}
	p, end := t.seps[lo], t.seps[hi+1]
	for k := lo; k <= hi; k++ {
		if p >= end || !t.Stops[p].IsDepot() {
			return errs.Structural("tour separator missing for route %d", k)
		}
		q := p + 1
		for q < end && !t.Stops[q].IsDepot() {
			q++
		}
		r := s.Routes[k]
		stops := make([]*model.Stop, 0, q-p+1)
		stops = append(stops, r.Start())
		stops = append(stops, t.Stops[p+1:q]...)
		stops = append(stops, r.End())
		r.Stops = stops
		p = q
	}
	if p != end {
		return errs.Structural("tour holds extra separators in routes %d..%d", lo, hi)
	}
	return nil
}
