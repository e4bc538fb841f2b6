package opt

import (
	"cmp"
	"iter"
	"slices"

	"vrpils/internal/solution"
)

// Outcome tags how a candidate relates to overhang routes.
type Outcome int

const (
	// Improving is an ordinary move ranked by its gain.
	Improving Outcome = iota
	// OverhangBonus drains an overhang route and ranks ahead of ordinary
	// moves. It still has to pass verification like any other move.
	OverhangBonus
	// OverhangPenalized fills an overhang route without draining one; such
	// candidates are never queued.
	OverhangPenalized
)

func (o Outcome) String() string {
	switch o {
	case OverhangBonus:
		return "overhang-bonus"
	case OverhangPenalized:
		return "overhang-penalized"
	default:
		return "improving"
	}
}

// Candidate is one proposed move. R1 and the P positions describe the
// source, R2 and the Q positions the destination; their exact meaning
// depends on the operator. Gain is the estimated saving in distance and
// fixed route cost.
type Candidate struct {
	Kind       int
	R1, R2     int
	P1, P2     int
	Q1, Q2     int
	L1, L2     int
	Inv1, Inv2 bool
	Gain       float64
	Outcome    Outcome

	seq int
}

// Queue holds candidates best first: bonus outcomes, then descending gain,
// then discovery order.
type Queue struct {
	items []Candidate
	seq   int
}

// Push appends a candidate, dropping penalized ones.
func (q *Queue) Push(c Candidate) {
	q.seq++
	if c.Outcome == OverhangPenalized {
		return
	}
	c.seq = q.seq
	q.items = append(q.items, c)
}

// Len is the number of queued candidates.
func (q *Queue) Len() int { return len(q.items) }

func rank(o Outcome) int {
	if o == OverhangBonus {
		return 0
	}
	return 1
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(rank(a.Outcome), rank(b.Outcome)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Gain, a.Gain); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// Sort orders the queue and keeps at most limit entries (0 keeps all).
func (q *Queue) Sort(limit int) {
	slices.SortStableFunc(q.items, compareCandidates)
	if limit > 0 && len(q.items) > limit {
		q.items = q.items[:limit]
	}
}

// All yields queued candidates in order.
func (q *Queue) All() iter.Seq[*Candidate] {
	return func(yield func(*Candidate) bool) {
		for i := range q.items {
			if !yield(&q.items[i]) {
				return
			}
		}
	}
}

// collector filters candidates while an operator searches. A candidate is
// kept when it promises a gain, drains an overhang route or touches a route
// that is currently infeasible, since only verification can tell whether a
// distance-neutral move repairs a penalty.
type collector struct {
	s     *solution.Solution
	eps   float64
	q     *Queue
	dirty []bool
}

func newCollector(s *solution.Solution, eps float64) *collector {
	c := &collector{s: s, eps: eps, q: &Queue{}, dirty: make([]bool, len(s.Routes))}
	for i := range s.Routes {
		c.dirty[i] = !s.RouteQuality(i).Feasible()
	}
	return c
}

func (c *collector) offer(cand Candidate, r1, r2 int) {
	if c.wanted(cand) || c.dirty[r1] || c.dirty[r2] {
		c.q.Push(cand)
		return
	}
	c.q.seq++
}

// offerRange is offer for moves touching every route in lo..hi.
func (c *collector) offerRange(cand Candidate, lo, hi int) {
	keep := c.wanted(cand)
	for r := lo; !keep && r <= hi; r++ {
		keep = c.dirty[r]
	}
	if keep {
		c.q.Push(cand)
		return
	}
	c.q.seq++
}

func (c *collector) wanted(cand Candidate) bool {
	return cand.Outcome == OverhangBonus || cand.Gain > c.eps
}

// transfer classifies a move that brings stops from src into dst.
func (c *collector) transfer(src, dst int) Outcome {
	if src == dst {
		return Improving
	}
	srcOver := c.s.IsOverhang(src) && !c.s.Routes[src].Empty()
	switch {
	case srcOver:
		return OverhangBonus
	case c.s.IsOverhang(dst):
		return OverhangPenalized
	default:
		return Improving
	}
}

// span classifies a tour move over consecutive routes of one depot from
// their separator positions before and after it, and prices the fixed cost
// of the routes it opens or empties.
func (c *collector) span(before, after []int) (Outcome, float64) {
	d := usedIn(after) - usedIn(before)
	if d == 0 {
		return Improving, 0
	}
	fixed := -float64(d) * c.s.Model.Vehicle.FixedCost
	depot := c.s.Model.Depots[0].Depot
	if l, capped := c.s.Limit(depot); capped {
		used := c.s.Used(depot)
		switch {
		case d > 0 && used+d > l:
			return OverhangPenalized, fixed
		case d < 0 && used > l:
			return OverhangBonus, fixed
		}
	}
	return Improving, fixed
}

func (c *collector) done(limit int) *Queue {
	c.q.Sort(limit)
	return c.q
}
