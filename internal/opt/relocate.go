package opt

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// Relocate moves a run of 1..MaxLen consecutive stops behind another stop,
// in the same or another route, optionally reversed. With a Window it only
// looks at destinations within that many tour positions (or-opt).
//
// Candidate layout: R1/P1/L1 the segment, R2/Q1 the stop it follows,
// Inv1 the reversal flag.
type Relocate struct {
	name   string
	MaxLen int
	Invert bool
	Window int
}

func (o *Relocate) Name() string { return o.name }

func (o *Relocate) Check(*model.Model) error { return nil }

func (o *Relocate) Search(run *Run, s *solution.Solution) (*Queue, error) {
	e := s.Evaluator()
	pdp := s.Model.Params.PDP
	col := newCollector(s, run.Options.Epsilon)
	var base []int
	if o.Window > 0 {
		base = offsets(s)
	}
	for r1, src := range s.Routes {
		S := src.Stops
		n1 := len(S)
		for i := 1; i < n1-1; i++ {
			if run.expiredSometimes() {
				return col.done(run.Options.MaxQueue), nil
			}
			for L := 1; L <= o.MaxLen && i+L <= n1-1; L++ {
				if pdp && hasPaired(S, i, L) {
					break
				}
				rm := removalGain(e, S, i, L)
				fwd, rev := 0.0, 0.0
				if o.Invert && L > 1 {
					fwd, rev = seqFwd(e, S, i, i+L-1), seqRev(e, S, i, i+L-1)
				}
				for r2, dst := range s.Routes {
					outcome := col.transfer(r1, r2)
					if outcome == OverhangPenalized {
						continue
					}
					fixed := fixedDelta(s, r1, r2, L == n1-2)
					D := dst.Stops
					for j := 0; j < len(D)-1; j++ {
						if r1 == r2 && j >= i-1 && j <= i+L-1 {
							continue
						}
						if base != nil && abs(base[r2]+j-base[r1]-i) > o.Window {
							continue
						}
						c := Candidate{R1: r1, P1: i, L1: L, R2: r2, Q1: j, Outcome: outcome}
						c.Gain = rm - insertionCost(e, D[j], D[j+1], S[i], S[i+L-1]) + fixed
						col.offer(c, r1, r2)
						if o.Invert && L > 1 {
							c.Inv1 = true
							c.Gain = rm - insertionCost(e, D[j], D[j+1], S[i+L-1], S[i]) + fwd - rev + fixed
							col.offer(c, r1, r2)
						}
					}
				}
			}
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

func (o *Relocate) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	if err := moveSegment(s, c.R1, c.P1, c.L1, c.R2, c.Q1, c.Inv1); err != nil {
		return nil, err
	}
	return touched(c.R1, c.R2), nil
}

func (o *Relocate) ReverseChange(s *solution.Solution, c *Candidate) error {
	r1, i, r2, j := relocateInverse(c.R1, c.P1, c.L1, c.R2, c.Q1)
	return moveSegment(s, r1, i, c.L1, r2, j, c.Inv1)
}

func touched(r1, r2 int) []int {
	if r1 == r2 {
		return []int{r1}
	}
	return []int{r1, r2}
}

// removalGain is the distance saved by cutting S[i..i+L-1] out of its route.
func removalGain(e *eval.Evaluator, S []*model.Stop, i, L int) float64 {
	a, f, l, b := S[i-1], S[i], S[i+L-1], S[i+L]
	return e.Arc(a, f) + e.Arc(l, b) - e.Arc(a, b)
}

// insertionCost is the distance added by placing a segment that starts
// with first and ends with last between x and y.
func insertionCost(e *eval.Evaluator, x, y, first, last *model.Stop) float64 {
	return e.Arc(x, first) + e.Arc(last, y) - e.Arc(x, y)
}

// relocateGain prices one relocate move; path-exchange shares it.
func relocateGain(e *eval.Evaluator, S []*model.Stop, i, L int, D []*model.Stop, j int, inv bool) float64 {
	g := removalGain(e, S, i, L)
	if !inv {
		return g - insertionCost(e, D[j], D[j+1], S[i], S[i+L-1])
	}
	return g - insertionCost(e, D[j], D[j+1], S[i+L-1], S[i]) +
		seqFwd(e, S, i, i+L-1) - seqRev(e, S, i, i+L-1)
}

// moveSegment cuts S[i..i+L-1] from route r1 and inserts it after position
// j of route r2, where j indexes r2 before the cut.
func moveSegment(s *solution.Solution, r1, i, L, r2, j int, inv bool) error {
	if err := routeIndex(s, r1); err != nil {
		return err
	}
	if err := routeIndex(s, r2); err != nil {
		return err
	}
	S := s.Routes[r1].Stops
	D := s.Routes[r2].Stops
	if L < 1 || i < 1 || i+L > len(S)-1 {
		return errs.Structural("segment %d+%d out of range in route %d", i, L, r1)
	}
	if j < 0 || j > len(D)-2 {
		return errs.Structural("insertion point %d out of range in route %d", j, r2)
	}
	if r1 == r2 && j >= i-1 && j <= i+L-1 {
		return errs.Structural("insertion point %d overlaps segment %d+%d", j, i, L)
	}
	seg := slices.Clone(S[i : i+L])
	if inv {
		slices.Reverse(seg)
	}
	if r1 == r2 {
		rest := slices.Concat(S[:i], S[i+L:])
		if j > i {
			j -= L
		}
		s.Routes[r1].Stops = slices.Concat(rest[:j+1], seg, rest[j+1:])
		return nil
	}
	s.Routes[r1].Stops = slices.Concat(S[:i], S[i+L:])
	s.Routes[r2].Stops = slices.Concat(D[:j+1], seg, D[j+1:])
	return nil
}

// relocateInverse returns the move that puts a relocated segment back.
func relocateInverse(r1, i, L, r2, j int) (int, int, int, int) {
	if r1 != r2 {
		return r2, j + 1, r1, i - 1
	}
	at := j + 1
	if j > i {
		at = j - L + 1
	}
	back := i - 1
	if back >= at {
		back += L
	}
	return r1, at, r1, back
}
