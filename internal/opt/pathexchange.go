package opt

import (
	"vrpils/internal/errs"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// Move kinds proposed by PathExchange.
const (
	kindRelocate = iota + 1
	kindSwap
)

// PathExchange walks pairs of stops x, y at most Window tour positions apart
// and, per pair, keeps the best of four moves: relocate x behind y, swap x
// and y, move the chain of up to three stops starting at x behind y (either
// direction), and swap the two-stop chains starting at x and y with both
// reversed.
//
// Candidates use the relocate or swap layout according to Kind.
type PathExchange struct {
	Window int
}

func (o *PathExchange) Name() string { return OpPathExchange }

func (o *PathExchange) Check(*model.Model) error { return nil }

type stopRef struct{ r, p int }

func (o *PathExchange) Search(run *Run, s *solution.Solution) (*Queue, error) {
	e := s.Evaluator()
	pdp := s.Model.Params.PDP
	col := newCollector(s, run.Options.Epsilon)

	// customers in tour order; the insertion point after a depot is
	// included so stops can move to the front of a route
	var order []stopRef
	for r, route := range s.Routes {
		for p := 0; p < route.Len()-1; p++ {
			order = append(order, stopRef{r, p})
		}
	}
	w := o.Window
	for xi, x := range order {
		if x.p == 0 {
			continue
		}
		if run.expiredSometimes() {
			break
		}
		S := s.Routes[x.r].Stops
		lo, hi := 0, len(order)-1
		if w > 0 {
			lo, hi = max(0, xi-w), min(len(order)-1, xi+w)
		}
		for yi := lo; yi <= hi; yi++ {
			y := order[yi]
			if yi == xi {
				continue
			}
			D := s.Routes[y.r].Stops
			same := x.r == y.r
			best := Candidate{Gain: negInf}
			consider := func(c Candidate) {
				if c.Gain > best.Gain {
					best = c
				}
			}

			outcome := col.transfer(x.r, y.r)
			if outcome != OverhangPenalized {
				for L := 1; L <= 3 && x.p+L <= len(S)-1; L++ {
					if pdp && hasPaired(S, x.p, L) {
						break
					}
					if same && y.p >= x.p-1 && y.p <= x.p+L-1 {
						continue
					}
					fixed := fixedDelta(s, x.r, y.r, L == len(S)-2)
					for _, inv := range []bool{false, true} {
						if inv && L == 1 {
							continue
						}
						consider(Candidate{
							Kind: kindRelocate, R1: x.r, P1: x.p, L1: L, R2: y.r, Q1: y.p, Inv1: inv,
							Gain:    relocateGain(e, S, x.p, L, D, y.p, inv) + fixed,
							Outcome: outcome,
						})
					}
				}
			}

			if y.p > 0 && (!same || x.p < y.p) {
				for _, L := range []int{1, 2} {
					inv := L == 2
					if x.p+L > len(S)-1 || y.p+L > len(D)-1 {
						break
					}
					if same && x.p+L > y.p {
						break
					}
					if pdp && (hasPaired(S, x.p, L) || hasPaired(D, y.p, L)) {
						break
					}
					consider(Candidate{
						Kind: kindSwap, R1: x.r, P1: x.p, L1: L, Inv1: inv, R2: y.r, Q1: y.p, L2: L, Inv2: inv,
						Gain: swapGain(e, S, x.p, L, D, y.p, L, inv, inv, same),
					})
				}
			}

			if best.Kind != 0 {
				col.offer(best, x.r, y.r)
			}
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

func (o *PathExchange) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	var err error
	switch c.Kind {
	case kindRelocate:
		err = moveSegment(s, c.R1, c.P1, c.L1, c.R2, c.Q1, c.Inv1)
	case kindSwap:
		err = swapSegments(s, c.R1, c.P1, c.L1, c.R2, c.Q1, c.L2, c.Inv1, c.Inv2)
	default:
		err = errs.Structural("unknown path-exchange move %d", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	return touched(c.R1, c.R2), nil
}

func (o *PathExchange) ReverseChange(s *solution.Solution, c *Candidate) error {
	switch c.Kind {
	case kindRelocate:
		r1, i, r2, j := relocateInverse(c.R1, c.P1, c.L1, c.R2, c.Q1)
		return moveSegment(s, r1, i, c.L1, r2, j, c.Inv1)
	case kindSwap:
		j := c.Q1
		if c.R1 == c.R2 {
			j += c.L2 - c.L1
		}
		return swapSegments(s, c.R1, c.P1, c.L2, c.R2, j, c.L1, c.Inv2, c.Inv1)
	}
	return errs.Structural("unknown path-exchange move %d", c.Kind)
}
