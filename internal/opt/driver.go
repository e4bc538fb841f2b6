package opt

import (
	"fmt"
	"time"

	"vrpils/internal/metrics"
	"vrpils/internal/solution"
)

// Descend drives op to a local optimum of s. Each round searches once, then
// applies candidates best first until the evaluator confirms one as strictly
// better; the first confirmed move is committed and the next round starts.
// The loop ends when a round commits nothing or the budget is spent, and
// the solution is normalized before returning.
//
// A structural error from Change or ReverseChange aborts the descent. The
// solution stays consistent with its cache.
func Descend(run *Run, s *solution.Solution, op Operator) (bool, error) {
	started := time.Now()
	defer func() { metrics.SearchDuration.WithLabelValues("descend").Observe(time.Since(started).Seconds()) }()

	name := op.Name()
	st := run.Stats.op(name)
	improved := false
	for !run.Expired() {
		q, err := op.Search(run, s)
		if err != nil {
			return improved, fmt.Errorf("%s: search: %w", name, err)
		}
		committed, err := tryQueue(run, s, op, q, st)
		if err != nil {
			return improved, err
		}
		if !committed {
			break
		}
		improved = true
	}
	if err := s.Normalize(); err != nil {
		return improved, fmt.Errorf("%s: %w", name, err)
	}
	return improved, nil
}

// tryQueue verifies candidates in order and commits the first improvement.
// A move that puts more routes beyond the vehicle count is never committed,
// since the evaluator does not price the vehicle count.
func tryQueue(run *Run, s *solution.Solution, op Operator, q *Queue, st *OperatorStats) (bool, error) {
	name := op.Name()
	eps := run.Options.Epsilon
	excess := s.Excess()
	for c := range q.All() {
		if run.expiredSometimes() {
			return false, nil
		}
		before := s.Quality()
		routes, err := op.Change(s, c)
		if err != nil {
			st.Structural++
			metrics.MovesRejected.WithLabelValues(name, "structural").Inc()
			return false, fmt.Errorf("%s: change: %w", name, err)
		}
		st.Evaluated++
		metrics.MovesEvaluated.WithLabelValues(name).Inc()
		s.Touch(routes...)
		overhang := s.Excess() > excess
		if !overhang && s.Quality().Better(before, eps) {
			s.Fixate()
			st.Accepted++
			metrics.MovesAccepted.WithLabelValues(name).Inc()
			return true, nil
		}
		if err := op.ReverseChange(s, c); err != nil {
			// the applied move stays; keep the cache in step with it
			st.Structural++
			metrics.MovesRejected.WithLabelValues(name, "structural").Inc()
			s.Fixate()
			return false, fmt.Errorf("%s: reverse change: %w", name, err)
		}
		s.Reset()
		st.Rejected++
		reason := "worse"
		if overhang {
			reason = "overhang"
		}
		metrics.MovesRejected.WithLabelValues(name, reason).Inc()
	}
	return false, nil
}
