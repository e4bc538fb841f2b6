package opt

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// flat caches prefix sums over a giant tour so that the internal distance of
// any stretch, walked either way, costs O(1).
type flat struct {
	t      *solution.Tour
	e      *eval.Evaluator
	fwd    []float64 // fwd[p]: arcs t[0]→…→t[p]
	rev    []float64 // rev[p]: the same arcs walked backwards
	paired []int     // paired[p]: paired stops in t[0..p-1]
}

func newFlat(s *solution.Solution) *flat {
	t := s.Tour()
	e := s.Evaluator()
	n := t.Len()
	f := &flat{
		t:      t,
		e:      e,
		fwd:    make([]float64, n),
		rev:    make([]float64, n),
		paired: make([]int, n+1),
	}
	for p := 0; p < n; p++ {
		if p > 0 {
			f.fwd[p] = f.fwd[p-1] + e.Arc(t.Stops[p-1], t.Stops[p])
			f.rev[p] = f.rev[p-1] + e.Arc(t.Stops[p], t.Stops[p-1])
		}
		f.paired[p+1] = f.paired[p]
		if t.Stops[p].Paired() {
			f.paired[p+1]++
		}
	}
	return f
}

func (f *flat) arc(p, q int) float64 { return f.e.Arc(f.t.Stops[p], f.t.Stops[q]) }

// inner is the distance of t[i..j] walked forward or backward.
func (f *flat) inner(i, j int, backward bool) float64 {
	if backward {
		return f.rev[j] - f.rev[i]
	}
	return f.fwd[j] - f.fwd[i]
}

// hasPaired reports whether t[i..j] holds a shipment stop.
func (f *flat) hasPaired(i, j int) bool { return f.paired[j+1]-f.paired[i] > 0 }

// usedIn counts the non-empty routes between consecutive separators.
func usedIn(bounds []int) int {
	n := 0
	for i := 1; i < len(bounds); i++ {
		if bounds[i]-bounds[i-1] > 1 {
			n++
		}
	}
	return n
}

// moveBounds fills buf with bounds after pos has moved every inner
// separator. The outer two stay put.
func moveBounds(buf, bounds []int, pos func(int) int) []int {
	last := len(bounds) - 1
	buf = append(buf[:0], bounds[0])
	for _, p := range bounds[1:last] {
		buf = append(buf, pos(p))
	}
	slices.Sort(buf[1:])
	return append(buf, bounds[last])
}

// TwoOpt reverses a stretch of the giant tour. Reversals spanning separators
// exchange route tails. Single depot only.
//
// Candidate layout: P1..P2 the reversed tour positions. Candidates refer to
// the tour captured by the latest Search.
type TwoOpt struct {
	f *flat
}

func (o *TwoOpt) Name() string { return OpTwoOpt }

func (o *TwoOpt) Check(m *model.Model) error { return singleDepot(OpTwoOpt, m) }

func (o *TwoOpt) Search(run *Run, s *solution.Solution) (*Queue, error) {
	if err := o.Check(s.Model); err != nil {
		return nil, err
	}
	pdp := s.Model.Params.PDP
	f := newFlat(s)
	o.f = f
	col := newCollector(s, run.Options.Epsilon)
	n := f.t.Len()
	var buf []int
	for i := 1; i < n-1; i++ {
		if run.expiredSometimes() {
			break
		}
		for k := i + 1; k < n-1; k++ {
			if pdp && f.hasPaired(i, k) {
				break
			}
			c := Candidate{P1: i, P2: k}
			c.Gain = f.arc(i-1, i) + f.arc(k, k+1) - f.arc(i-1, k) - f.arc(i, k+1) +
				f.inner(i, k, false) - f.inner(i, k, true)
			lo, hi := f.t.RouteOf(i-1), f.t.RouteOf(k)
			if lo < hi {
				// separators inside the stretch are mirrored with it
				bounds := f.t.Bounds(lo, hi)
				buf = moveBounds(buf, bounds, func(p int) int { return i + k - p })
				var fixed float64
				c.Outcome, fixed = col.span(bounds, buf)
				c.Gain += fixed
			}
			col.offerRange(c, lo, hi)
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

func (o *TwoOpt) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	return o.reverse(s, c)
}

func (o *TwoOpt) ReverseChange(s *solution.Solution, c *Candidate) error {
	_, err := o.reverse(s, c)
	return err
}

func (o *TwoOpt) reverse(s *solution.Solution, c *Candidate) ([]int, error) {
	if o.f == nil {
		return nil, errs.Structural("2-opt change without a search")
	}
	t := o.f.t
	i, k := c.P1, c.P2
	if i < 1 || k <= i || k > t.Len()-2 {
		return nil, errs.Structural("2-opt positions %d..%d out of range", i, k)
	}
	slices.Reverse(t.Stops[i : k+1])
	lo, hi := t.RouteOf(i-1), t.RouteOf(k)
	if err := t.Apply(s, lo, hi); err != nil {
		slices.Reverse(t.Stops[i : k+1])
		return nil, err
	}
	return routeSpan(lo, hi), nil
}

func routeSpan(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		out = append(out, r)
	}
	return out
}
