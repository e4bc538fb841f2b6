package model

// PenaltyWeight makes any infeasibility dominate cost in Fitness.
const PenaltyWeight = 1000.0

// Violations splits a penalty by category. Amounts are in the unit of the
// violated limit: capacity units, time units, stop counts or occurrences.
type Violations struct {
	Capacity   float64
	Duration   float64
	Stops      float64
	Delay      float64
	Waiting    float64
	Blacklist  float64
	Preset     float64
	Depot      float64
	Precedence float64
	LoadPlan   float64
}

// Total sums every category.
func (v Violations) Total() float64 {
	return v.Capacity + v.Duration + v.Stops + v.Delay + v.Waiting +
		v.Blacklist + v.Preset + v.Depot + v.Precedence + v.LoadPlan
}

func (v Violations) add(o Violations) Violations {
	return Violations{
		Capacity:   v.Capacity + o.Capacity,
		Duration:   v.Duration + o.Duration,
		Stops:      v.Stops + o.Stops,
		Delay:      v.Delay + o.Delay,
		Waiting:    v.Waiting + o.Waiting,
		Blacklist:  v.Blacklist + o.Blacklist,
		Preset:     v.Preset + o.Preset,
		Depot:      v.Depot + o.Depot,
		Precedence: v.Precedence + o.Precedence,
		LoadPlan:   v.LoadPlan + o.LoadPlan,
	}
}

// Quality is the evaluation of a route or a whole solution.
type Quality struct {
	Cost     float64
	Distance float64
	Elapsed  float64
	Penalty  float64
	Routes   int
	Breaks   int
	Violations
}

// Fitness is the two-tier objective: feasibility first, then cost.
func (q Quality) Fitness() float64 { return q.Cost + PenaltyWeight*q.Penalty }

// Feasible reports whether no limit is violated.
func (q Quality) Feasible() bool { return q.Penalty <= 0 }

// Add accumulates o into q.
func (q Quality) Add(o Quality) Quality {
	return Quality{
		Cost:       q.Cost + o.Cost,
		Distance:   q.Distance + o.Distance,
		Elapsed:    q.Elapsed + o.Elapsed,
		Penalty:    q.Penalty + o.Penalty,
		Routes:     q.Routes + o.Routes,
		Breaks:     q.Breaks + o.Breaks,
		Violations: q.Violations.add(o.Violations),
	}
}

// Better reports whether q beats o by more than eps in fitness.
func (q Quality) Better(o Quality, eps float64) bool {
	return q.Fitness() < o.Fitness()-eps
}
