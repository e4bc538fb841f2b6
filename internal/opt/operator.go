package opt

import (
	"math"

	"vrpils/internal/errs"
	"vrpils/internal/eval"
	"vrpils/internal/model"
	"vrpils/internal/solution"
)

// Operator is one neighborhood. Search ranks candidate moves, Change applies
// one and reports the touched routes, ReverseChange undoes it exactly.
// Change validates positions before touching anything and returns a
// structural error for moves that would break a route invariant.
type Operator interface {
	Name() string
	// Check reports a configuration error when the operator cannot work on m.
	Check(m *model.Model) error
	Search(run *Run, s *solution.Solution) (*Queue, error)
	Change(s *solution.Solution, c *Candidate) ([]int, error)
	ReverseChange(s *solution.Solution, c *Candidate) error
}

// Operator names.
const (
	OpRelocate        = "relocate"
	OpSegmentRelocate = "segment-relocate"
	OpSwap            = "swap"
	OpSegmentSwap     = "segment-swap"
	OpTwoOpt          = "2-opt"
	OpThreeOpt        = "3-opt"
	OpOrOpt           = "or-opt"
	OpPathExchange    = "path-exchange"
	OpPairMove        = "pdp-move"
	OpPairExchange    = "pdp-exchange"
)

// AllOperators lists every operator name in default cycling order.
var AllOperators = []string{
	OpRelocate, OpSegmentRelocate, OpSwap, OpSegmentSwap, OpTwoOpt,
	OpThreeOpt, OpOrOpt, OpPathExchange, OpPairMove, OpPairExchange,
}

// NewOperator builds a named operator.
func NewOperator(name string, opts Options) (Operator, error) {
	opts = opts.Defaults()
	switch name {
	case OpRelocate:
		return &Relocate{name: name, MaxLen: 1}, nil
	case OpSegmentRelocate:
		return &Relocate{name: name, MaxLen: opts.MaxSegment, Invert: true}, nil
	case OpSwap:
		return &Swap{name: name, MaxLen: 1, EqualOnly: true}, nil
	case OpSegmentSwap:
		return &Swap{name: name, MaxLen: opts.MaxSegment, Invert: true}, nil
	case OpTwoOpt:
		return &TwoOpt{}, nil
	case OpThreeOpt:
		return &ThreeOpt{Window: opts.ThreeOptWindow}, nil
	case OpOrOpt:
		return &Relocate{name: name, MaxLen: 3, Invert: true, Window: opts.OrOptWindow}, nil
	case OpPathExchange:
		return &PathExchange{Window: opts.OrOptWindow}, nil
	case OpPairMove:
		return &PairMove{}, nil
	case OpPairExchange:
		return &PairExchange{}, nil
	}
	return nil, errs.Configuration("unknown operator %q", name)
}

// Operators builds the operator set for m. Explicitly named operators must
// support the model; the default set skips those that do not.
func Operators(m *model.Model, names []string, opts Options) ([]Operator, error) {
	explicit := len(names) > 0
	if !explicit {
		names = AllOperators
	}
	ops := make([]Operator, 0, len(names))
	for _, name := range names {
		op, err := NewOperator(name, opts)
		if err != nil {
			return nil, err
		}
		if err := op.Check(m); err != nil {
			if explicit {
				return nil, err
			}
			continue
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, errs.Configuration("no operator applies to the model")
	}
	return ops, nil
}

func singleDepot(name string, m *model.Model) error {
	if m.MultiDepot() {
		return errs.Configuration("%s works on a single depot, model has %d", name, len(m.Depots))
	}
	return nil
}

func pdpOnly(name string, m *model.Model) error {
	if !m.Params.PDP {
		return errs.Configuration("%s needs pickup and delivery mode", name)
	}
	return nil
}

// seqFwd sums arcs along stops[i..j].
func seqFwd(e *eval.Evaluator, stops []*model.Stop, i, j int) float64 {
	var d float64
	for k := i; k < j; k++ {
		d += e.Arc(stops[k], stops[k+1])
	}
	return d
}

// seqRev sums arcs along stops[i..j] traversed backwards.
func seqRev(e *eval.Evaluator, stops []*model.Stop, i, j int) float64 {
	var d float64
	for k := i; k < j; k++ {
		d += e.Arc(stops[k+1], stops[k])
	}
	return d
}

func hasPaired(stops []*model.Stop, i, l int) bool {
	for _, s := range stops[i : i+l] {
		if s.Paired() {
			return true
		}
	}
	return false
}

func routeIndex(s *solution.Solution, r int) error {
	if r < 0 || r >= len(s.Routes) {
		return errs.Structural("route %d out of range", r)
	}
	return nil
}

// offsets maps each route to the tour position of its opening separator.
func offsets(s *solution.Solution) []int {
	base := make([]int, len(s.Routes))
	p := 0
	for i, r := range s.Routes {
		base[i] = p
		p += r.Customers() + 1
	}
	return base
}

var negInf = math.Inf(-1)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// fixedDelta is the fixed route cost saved by a transfer that may empty the
// source or open the destination.
func fixedDelta(s *solution.Solution, r1, r2 int, drains bool) float64 {
	if r1 == r2 {
		return 0
	}
	fixed := s.Model.Vehicle.FixedCost
	var g float64
	if drains {
		g += fixed
	}
	if s.Routes[r2].Empty() {
		g -= fixed
	}
	return g
}
