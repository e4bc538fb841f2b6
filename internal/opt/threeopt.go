package opt

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// reconnection describes how the stretches A = t[i+1..j] and B = t[j+1..k]
// are put back: in swapped order or not, each possibly reversed.
type reconnection struct {
	swap       bool
	invA, invB bool
	inverse    int
}

// reconnections lists the seven non-identity 3-opt reconnections and, for
// each, the kind that undoes it.
var reconnections = [...]reconnection{
	1: {invA: true, inverse: 1},                         // A' B
	2: {invB: true, inverse: 2},                         // A B'
	3: {swap: true, invA: true, invB: true, inverse: 3}, // B' A'
	4: {invA: true, invB: true, inverse: 4},             // A' B'
	5: {swap: true, inverse: 5},                         // B A
	6: {swap: true, invA: true, inverse: 7},             // B A'
	7: {swap: true, invB: true, inverse: 6},             // B' A
}

// position is where the stop at p in t[i+1..k] lands after reconnecting.
func (rc reconnection) position(i, j, k, p int) int {
	inA := p <= j
	switch {
	case !rc.swap && inA && rc.invA:
		return i + 1 + j - p
	case !rc.swap && !inA && rc.invB:
		return j + 1 + k - p
	case !rc.swap:
		return p
	case !inA && rc.invB:
		return i + 1 + k - p
	case !inA:
		return p - j + i
	case rc.invA:
		return i + 1 + k - p
	default:
		return p + k - j
	}
}

// ThreeOpt removes three tour edges and reconnects the two stretches between
// them in one of seven ways. Stretch lengths are capped by Window. Single
// depot only.
//
// Candidate layout: P1 = i, P2 = j, Q1 = k, Kind the reconnection.
type ThreeOpt struct {
	Window int
	f      *flat
}

func (o *ThreeOpt) Name() string { return OpThreeOpt }

func (o *ThreeOpt) Check(m *model.Model) error { return singleDepot(OpThreeOpt, m) }

func (o *ThreeOpt) Search(run *Run, s *solution.Solution) (*Queue, error) {
	if err := o.Check(s.Model); err != nil {
		return nil, err
	}
	pdp := s.Model.Params.PDP
	f := newFlat(s)
	o.f = f
	col := newCollector(s, run.Options.Epsilon)
	n := f.t.Len()
	w := o.Window
	var buf []int
	for i := 0; i+3 < n; i++ {
		if run.expiredSometimes() {
			break
		}
		for j := i + 1; j < n-2 && (w <= 0 || j-i <= w); j++ {
			for k := j + 1; k < n-1 && (w <= 0 || k-j <= w); k++ {
				if pdp && f.hasPaired(i+1, k) {
					break
				}
				before := f.arc(i, i+1) + f.inner(i+1, j, false) + f.arc(j, j+1) +
					f.inner(j+1, k, false) + f.arc(k, k+1)
				lo, hi := f.t.RouteOf(i), f.t.RouteOf(k)
				for kind := 1; kind < len(reconnections); kind++ {
					rc := reconnections[kind]
					c := Candidate{Kind: kind, P1: i, P2: j, Q1: k, Gain: before - o.cost(f, i, j, k, rc)}
					if lo < hi {
						bounds := f.t.Bounds(lo, hi)
						buf = moveBounds(buf, bounds, func(p int) int { return rc.position(i, j, k, p) })
						var fixed float64
						c.Outcome, fixed = col.span(bounds, buf)
						c.Gain += fixed
					}
					col.offerRange(c, lo, hi)
				}
			}
			if pdp && f.hasPaired(i+1, j) {
				break
			}
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

// cost is the distance from t[i] to t[k+1] after reconnecting.
func (o *ThreeOpt) cost(f *flat, i, j, k int, rc reconnection) float64 {
	// ends of A and B after optional reversal
	aHead, aTail := i+1, j
	if rc.invA {
		aHead, aTail = j, i+1
	}
	bHead, bTail := j+1, k
	if rc.invB {
		bHead, bTail = k, j+1
	}
	inner := f.inner(i+1, j, rc.invA) + f.inner(j+1, k, rc.invB)
	if rc.swap {
		return f.arc(i, bHead) + f.arc(bTail, aHead) + f.arc(aTail, k+1) + inner
	}
	return f.arc(i, aHead) + f.arc(aTail, bHead) + f.arc(bTail, k+1) + inner
}

func (o *ThreeOpt) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	return o.reconnect(s, c.P1, c.P2, c.Q1, c.Kind)
}

func (o *ThreeOpt) ReverseChange(s *solution.Solution, c *Candidate) error {
	rc := reconnections[c.Kind]
	j := c.P2
	if rc.swap {
		j = c.P1 + c.Q1 - c.P2
	}
	_, err := o.reconnect(s, c.P1, j, c.Q1, rc.inverse)
	return err
}

func (o *ThreeOpt) reconnect(s *solution.Solution, i, j, k, kind int) ([]int, error) {
	if o.f == nil {
		return nil, errs.Structural("3-opt change without a search")
	}
	t := o.f.t
	if kind < 1 || kind >= len(reconnections) {
		return nil, errs.Structural("unknown 3-opt reconnection %d", kind)
	}
	if i < 0 || j <= i || k <= j || k > t.Len()-2 {
		return nil, errs.Structural("3-opt positions %d/%d/%d out of range", i, j, k)
	}
	rc := reconnections[kind]
	A := slices.Clone(t.Stops[i+1 : j+1])
	B := slices.Clone(t.Stops[j+1 : k+1])
	if rc.invA {
		slices.Reverse(A)
	}
	if rc.invB {
		slices.Reverse(B)
	}
	old := slices.Clone(t.Stops[i+1 : k+1])
	if rc.swap {
		copy(t.Stops[i+1:], slices.Concat(B, A))
	} else {
		copy(t.Stops[i+1:], slices.Concat(A, B))
	}
	lo, hi := t.RouteOf(i), t.RouteOf(k)
	if err := t.Apply(s, lo, hi); err != nil {
		copy(t.Stops[i+1:], old)
		return nil, err
	}
	return routeSpan(lo, hi), nil
}
