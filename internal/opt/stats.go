package opt

import (
	"maps"
	"slices"
	"time"
)

// OperatorStats counts what one operator did during a run.
type OperatorStats struct {
	Selected   int
	Improved   int
	Evaluated  int
	Accepted   int
	Rejected   int
	Structural int
	Weight     float64
}

// WeightSnapshot records operator weights at an intensification step.
type WeightSnapshot struct {
	Step    int
	Weights map[string]float64
}

// Stats summarizes a run. It replaces process-wide tallies: every run owns
// its own copy.
type Stats struct {
	Iterations     int
	Improvements   int
	AcceptedWorse  int
	Restored       int
	Perturbations  int
	FailedPerturbs int
	Steps          int
	Rounds         int

	InitialFitness float64
	BestFitness    float64
	Elapsed        time.Duration

	Operators map[string]*OperatorStats
	Snapshots []WeightSnapshot
}

func newStats() *Stats {
	return &Stats{Operators: make(map[string]*OperatorStats)}
}

func (s *Stats) op(name string) *OperatorStats {
	o := s.Operators[name]
	if o == nil {
		o = &OperatorStats{Weight: 1}
		s.Operators[name] = o
	}
	return o
}

// Weights returns the current operator weights.
func (s *Stats) Weights() map[string]float64 {
	w := make(map[string]float64, len(s.Operators))
	for name, o := range s.Operators {
		w[name] = o.Weight
	}
	return w
}

func (s *Stats) snapshot() {
	s.Snapshots = append(s.Snapshots, WeightSnapshot{Step: s.Steps, Weights: s.Weights()})
}

// Merge adds the counters of o, as produced by a parallel sub-search.
// Weights are averaged.
func (s *Stats) Merge(o *Stats) {
	s.Iterations += o.Iterations
	s.Improvements += o.Improvements
	s.AcceptedWorse += o.AcceptedWorse
	s.Restored += o.Restored
	s.Perturbations += o.Perturbations
	s.FailedPerturbs += o.FailedPerturbs
	s.Steps += o.Steps
	for _, name := range slices.Sorted(maps.Keys(o.Operators)) {
		src := o.Operators[name]
		dst, ok := s.Operators[name]
		if !ok {
			c := *src
			s.Operators[name] = &c
			continue
		}
		dst.Selected += src.Selected
		dst.Improved += src.Improved
		dst.Evaluated += src.Evaluated
		dst.Accepted += src.Accepted
		dst.Rejected += src.Rejected
		dst.Structural += src.Structural
		dst.Weight = (dst.Weight + src.Weight) / 2
	}
}
