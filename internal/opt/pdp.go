package opt

import (
	"slices"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// shipment locates one pickup/delivery pair inside a route.
type shipment struct {
	id         int
	route      int
	pick, drop int
}

// shipments lists well-formed pairs in route order. Pairs split across
// routes or in the wrong order are left to the evaluator's penalty.
func shipments(s *solution.Solution) []shipment {
	var out []shipment
	for r, route := range s.Routes {
		open := map[int]int{}
		for p, st := range route.Interior() {
			if !st.Paired() {
				continue
			}
			if st.Load == model.Pickup {
				open[st.Shipment] = p + 1
				continue
			}
			if pick, ok := open[st.Shipment]; ok {
				out = append(out, shipment{id: st.Shipment, route: r, pick: pick, drop: p + 1})
				delete(open, st.Shipment)
			}
		}
	}
	return out
}

// checkPair verifies that route r holds a pickup at p and its delivery at d.
func checkPair(s *solution.Solution, r, p, d int) error {
	if err := routeIndex(s, r); err != nil {
		return err
	}
	S := s.Routes[r].Stops
	if p < 1 || d <= p || d > len(S)-2 {
		if d >= 1 && d < p {
			return errs.Structural("delivery at %d before pickup at %d in route %d", d, p, r)
		}
		return errs.Structural("pair positions %d/%d out of range in route %d", p, d, r)
	}
	P, D := S[p], S[d]
	if !P.Paired() || P.Load != model.Pickup || D.Load != model.Delivery || D.Shipment != P.Shipment {
		return errs.Structural("positions %d/%d of route %d are not one shipment", p, d, r)
	}
	return nil
}

// without returns S minus positions p and d.
func without(S []*model.Stop, p, d int) []*model.Stop {
	return slices.Concat(S[:p], S[p+1:d], S[d+1:])
}

// pairRemovalGain is the distance saved by taking S[p] and S[d] out.
func pairRemovalGain(e *eval.Evaluator, S []*model.Stop, p, d int) float64 {
	if d == p+1 {
		return e.Arc(S[p-1], S[p]) + e.Arc(S[p], S[d]) + e.Arc(S[d], S[d+1]) - e.Arc(S[p-1], S[d+1])
	}
	return e.Arc(S[p-1], S[p]) + e.Arc(S[p], S[p+1]) - e.Arc(S[p-1], S[p+1]) +
		e.Arc(S[d-1], S[d]) + e.Arc(S[d], S[d+1]) - e.Arc(S[d-1], S[d+1])
}

// pairInsertionCost prices putting P after b[x] and D after b[y], x <= y.
func pairInsertionCost(e *eval.Evaluator, b func(int) *model.Stop, x, y int, P, D *model.Stop) float64 {
	if x == y {
		return e.Arc(b(x), P) + e.Arc(P, D) + e.Arc(D, b(x+1)) - e.Arc(b(x), b(x+1))
	}
	return e.Arc(b(x), P) + e.Arc(P, b(x+1)) - e.Arc(b(x), b(x+1)) +
		e.Arc(b(y), D) + e.Arc(D, b(y+1)) - e.Arc(b(y), b(y+1))
}

// PairMove relocates a pickup and its delivery together, within or across
// routes, keeping the pickup first.
//
// Candidate layout: R1/P1/P2 the pair's route and positions, R2/Q1/Q2 the
// stops of the destination, with the pair removed, that the pickup and the
// delivery follow.
type PairMove struct{}

func (o *PairMove) Name() string { return OpPairMove }

func (o *PairMove) Check(m *model.Model) error { return pdpOnly(OpPairMove, m) }

func (o *PairMove) Search(run *Run, s *solution.Solution) (*Queue, error) {
	if err := o.Check(s.Model); err != nil {
		return nil, err
	}
	e := s.Evaluator()
	col := newCollector(s, run.Options.Epsilon)
	for _, sh := range shipments(s) {
		if run.expiredSometimes() {
			break
		}
		S := s.Routes[sh.route].Stops
		P, D := S[sh.pick], S[sh.drop]
		rm := pairRemovalGain(e, S, sh.pick, sh.drop)
		for r2, dst := range s.Routes {
			outcome := col.transfer(sh.route, r2)
			if outcome == OverhangPenalized {
				continue
			}
			b, m := reduced(S, sh, r2, dst.Stops)
			fixed := fixedDelta(s, sh.route, r2, len(S) == 4)
			for x := 0; x <= m-2; x++ {
				for y := x; y <= m-2; y++ {
					if r2 == sh.route && x == sh.pick-1 && y == sh.drop-2 {
						continue
					}
					c := Candidate{
						R1: sh.route, P1: sh.pick, P2: sh.drop,
						R2: r2, Q1: x, Q2: y,
						Gain:    rm - pairInsertionCost(e, b, x, y, P, D) + fixed,
						Outcome: outcome,
					}
					col.offer(c, sh.route, r2)
				}
			}
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

// reduced views the destination as it looks once the pair has left: the
// source minus the pair for an intra-route move, else the destination as is.
func reduced(S []*model.Stop, sh shipment, r2 int, D []*model.Stop) (func(int) *model.Stop, int) {
	if r2 != sh.route {
		return func(q int) *model.Stop { return D[q] }, len(D)
	}
	return func(q int) *model.Stop {
		if q >= sh.pick {
			q++
		}
		if q >= sh.drop {
			q++
		}
		return S[q]
	}, len(S) - 2
}

func (o *PairMove) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	if err := movePair(s, c.R1, c.P1, c.P2, c.R2, c.Q1, c.Q2); err != nil {
		return nil, err
	}
	return touched(c.R1, c.R2), nil
}

func (o *PairMove) ReverseChange(s *solution.Solution, c *Candidate) error {
	return movePair(s, c.R2, c.Q1+1, c.Q2+2, c.R1, c.P1-1, c.P2-2)
}

// movePair takes the pair at p/d out of route r1 and inserts the pickup
// after position x and the delivery after position y of route r2 with the
// pair removed. The pickup lands at x+1 and the delivery at y+2.
func movePair(s *solution.Solution, r1, p, d, r2, x, y int) error {
	if err := checkPair(s, r1, p, d); err != nil {
		return err
	}
	if err := routeIndex(s, r2); err != nil {
		return err
	}
	S := s.Routes[r1].Stops
	P, D := S[p], S[d]
	rest := without(S, p, d)
	b := s.Routes[r2].Stops
	if r1 == r2 {
		b = rest
	}
	if x < 0 || y < x || y > len(b)-2 {
		return errs.Structural("pair insertion %d/%d out of range in route %d", x, y, r2)
	}
	moved := slices.Concat(b[:x+1], []*model.Stop{P}, b[x+1:y+1], []*model.Stop{D}, b[y+1:])
	if r1 != r2 {
		s.Routes[r1].Stops = rest
	}
	s.Routes[r2].Stops = moved
	return nil
}

// PairExchange swaps two shipments between different routes, each taking
// over the other's pickup and delivery positions.
//
// Candidate layout: R1/P1/P2 and R2/Q1/Q2 the two pairs.
type PairExchange struct{}

func (o *PairExchange) Name() string { return OpPairExchange }

func (o *PairExchange) Check(m *model.Model) error { return pdpOnly(OpPairExchange, m) }

func (o *PairExchange) Search(run *Run, s *solution.Solution) (*Queue, error) {
	if err := o.Check(s.Model); err != nil {
		return nil, err
	}
	e := s.Evaluator()
	col := newCollector(s, run.Options.Epsilon)
	all := shipments(s)
	for ai, a := range all {
		if run.expiredSometimes() {
			break
		}
		S := s.Routes[a.route].Stops
		for _, b := range all[ai+1:] {
			if b.route == a.route {
				continue
			}
			D := s.Routes[b.route].Stops
			gain := replaceGain(e, S, a.pick, a.drop, D[b.pick], D[b.drop]) +
				replaceGain(e, D, b.pick, b.drop, S[a.pick], S[a.drop])
			c := Candidate{R1: a.route, P1: a.pick, P2: a.drop, R2: b.route, Q1: b.pick, Q2: b.drop, Gain: gain}
			col.offer(c, a.route, b.route)
		}
	}
	return col.done(run.Options.MaxQueue), nil
}

// replaceGain prices putting P at position p and D at position d of S in
// place of the stops there.
func replaceGain(e *eval.Evaluator, S []*model.Stop, p, d int, P, D *model.Stop) float64 {
	at := func(q int) *model.Stop {
		switch q {
		case p:
			return P
		case d:
			return D
		}
		return S[q]
	}
	edges := func(get func(int) *model.Stop) float64 {
		sum := e.Arc(get(p-1), get(p)) + e.Arc(get(d), get(d+1))
		if d == p+1 {
			return sum + e.Arc(get(p), get(d))
		}
		return sum + e.Arc(get(p), get(p+1)) + e.Arc(get(d-1), get(d))
	}
	return edges(func(q int) *model.Stop { return S[q] }) - edges(at)
}

func (o *PairExchange) Change(s *solution.Solution, c *Candidate) ([]int, error) {
	if err := exchangePairs(s, c.R1, c.P1, c.P2, c.R2, c.Q1, c.Q2); err != nil {
		return nil, err
	}
	return []int{c.R1, c.R2}, nil
}

func (o *PairExchange) ReverseChange(s *solution.Solution, c *Candidate) error {
	return exchangePairs(s, c.R1, c.P1, c.P2, c.R2, c.Q1, c.Q2)
}

func exchangePairs(s *solution.Solution, r1, p1, d1, r2, p2, d2 int) error {
	if r1 == r2 {
		return errs.Structural("pair exchange inside route %d", r1)
	}
	if err := checkPair(s, r1, p1, d1); err != nil {
		return err
	}
	if err := checkPair(s, r2, p2, d2); err != nil {
		return err
	}
	S := slices.Clone(s.Routes[r1].Stops)
	D := slices.Clone(s.Routes[r2].Stops)
	S[p1], D[p2] = D[p2], S[p1]
	S[d1], D[d2] = D[d2], S[d1]
	s.Routes[r1].Stops = S
	s.Routes[r2].Stops = D
	return nil
}
