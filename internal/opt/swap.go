package opt

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// Swap exchanges two runs of 1..MaxLen stops, possibly of unequal length,
// either side optionally reversed. EqualOnly restricts it to runs of the
// same length.
//
// Candidate layout: R1/P1/L1/Inv1 the first run, R2/Q1/L2/Inv2 the second.
// Inside one route the first run lies before the second.
type Swap struct {
	name      string
	MaxLen    int
	Invert    bool
	EqualOnly bool
}

func (o *Swap) Name() string { return o.name }

func (o *Swap) Check(*model.Model) error { return nil }

func (o *Swap) flips(L int) []bool {
	if o.Invert && L > 1 {
		return []bool{false, true}
	}
	return []bool{false}
}

func (o *Swap) Search(run *Run, s *solution.Solution) (*Queue, error) {
	e := s.Evaluator()
	pdp := s.Model.Params.PDP
	col := newCollector(s, run.Options.Epsilon)
	for r1, src := range s.Routes {
		S := src.Stops
		for i := 1; i < len(S)-1; i++ {
			if run.expiredSometimes() {
				return col.done(run.Options.MaxQueue), nil
			}
			for L1 := 1; L1 <= o.MaxLen && i+L1 <= len(S)-1; L1++ {
				if pdp && hasPaired(S, i, L1) {
					break
				}
				for r2 := r1; r2 < len(s.Routes); r2++ {
					D := s.Routes[r2].Stops
					start := 1
					if r2 == r1 {
						start = i + L1
					}
					for j := start; j < len(D)-1; j++ {
						for L2 := 1; L2 <= o.MaxLen && j+L2 <= len(D)-1; L2++ {
							if o.EqualOnly && L2 != L1 {
								continue
							}
							if pdp && hasPaired(D, j, L2) {
								break
							}
							for _, inv1 := range o.flips(L1) {
								for _, inv2 := range o.flips(L2) {
									c := Candidate{
										R1: r1, P1: i, L1: L1, Inv1: inv1,
										R2: r2, Q1: j, L2: L2, Inv2: inv2,
									}
									c.Gain = swapGain(e, S, i, L1, D, j, L2, inv1, inv2, r1 == r2)
									col.offer(c, r1, r2)
								}
							}
						}
					}
				}
			}
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

func (o *Swap) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	if err := swapSegments(s, c.R1, c.P1, c.L1, c.R2, c.Q1, c.L2, c.Inv1, c.Inv2); err != nil {
		return nil, err
	}
	return touched(c.R1, c.R2), nil
}

func (o *Swap) ReverseChange(s *solution.Solution, c *Candidate) error {
	j := c.Q1
	if c.R1 == c.R2 {
		j += c.L2 - c.L1
	}
	return swapSegments(s, c.R1, c.P1, c.L2, c.R2, j, c.L1, c.Inv2, c.Inv1)
}

// span describes a run's end stops and its internal distance in both
// directions.
type span struct {
	first, last *model.Stop
	fwd, rev    float64
}

func spanOf(e *eval.Evaluator, stops []*model.Stop, i, L int) span {
	return span{
		first: stops[i],
		last:  stops[i+L-1],
		fwd:   seqFwd(e, stops, i, i+L-1),
		rev:   seqRev(e, stops, i, i+L-1),
	}
}

func (sp span) head(inv bool) *model.Stop {
	if inv {
		return sp.last
	}
	return sp.first
}

func (sp span) tail(inv bool) *model.Stop {
	if inv {
		return sp.first
	}
	return sp.last
}

func (sp span) inner(inv bool) float64 {
	if inv {
		return sp.rev
	}
	return sp.fwd
}

// swapGain prices exchanging S[i..i+L1-1] with D[j..j+L2-1]. When both lie
// in one route, S and D are the same slice and i+L1 <= j.
func swapGain(e *eval.Evaluator, S []*model.Stop, i, L1 int, D []*model.Stop, j, L2 int, inv1, inv2, same bool) float64 {
	A, B := spanOf(e, S, i, L1), spanOf(e, D, j, L2)
	a, y := S[i-1], D[j+L2]
	if same && i+L1 == j {
		before := e.Arc(a, A.first) + A.fwd + e.Arc(A.last, B.first) + B.fwd + e.Arc(B.last, y)
		after := e.Arc(a, B.head(inv2)) + B.inner(inv2) + e.Arc(B.tail(inv2), A.head(inv1)) +
			A.inner(inv1) + e.Arc(A.tail(inv1), y)
		return before - after
	}
	b, x := S[i+L1], D[j-1]
	before := e.Arc(a, A.first) + A.fwd + e.Arc(A.last, b) +
		e.Arc(x, B.first) + B.fwd + e.Arc(B.last, y)
	after := e.Arc(a, B.head(inv2)) + B.inner(inv2) + e.Arc(B.tail(inv2), b) +
		e.Arc(x, A.head(inv1)) + A.inner(inv1) + e.Arc(A.tail(inv1), y)
	return before - after
}

// swapSegments exchanges S[i..i+L1-1] of route r1 with D[j..j+L2-1] of
// route r2. Within one route the first run must end before the second.
func swapSegments(s *solution.Solution, r1, i, L1, r2, j, L2 int, inv1, inv2 bool) error {
	if err := routeIndex(s, r1); err != nil {
		return err
	}
	if err := routeIndex(s, r2); err != nil {
		return err
	}
	S, D := s.Routes[r1].Stops, s.Routes[r2].Stops
	if L1 < 1 || i < 1 || i+L1 > len(S)-1 {
		return errs.Structural("segment %d+%d out of range in route %d", i, L1, r1)
	}
	if L2 < 1 || j < 1 || j+L2 > len(D)-1 {
		return errs.Structural("segment %d+%d out of range in route %d", j, L2, r2)
	}
	if r1 == r2 && i+L1 > j {
		return errs.Structural("segments %d+%d and %d+%d overlap", i, L1, j, L2)
	}
	A := slices.Clone(S[i : i+L1])
	B := slices.Clone(D[j : j+L2])
	if inv1 {
		slices.Reverse(A)
	}
	if inv2 {
		slices.Reverse(B)
	}
	if r1 == r2 {
		s.Routes[r1].Stops = slices.Concat(S[:i], B, S[i+L1:j], A, S[j+L2:])
		return nil
	}
	s.Routes[r1].Stops = slices.Concat(S[:i], B, S[i+L1:])
	s.Routes[r2].Stops = slices.Concat(D[:j], A, D[j+L2:])
	return nil
}
