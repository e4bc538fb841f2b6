package solution

import "vrpils/internal/model"

// RouteReport is the per-route figure set handed to reporting collaborators.
// Distance and Duration use the reporting metric.
type RouteReport struct {
	Route    int
	Depot    int
	Stops    int
	Distance float64
	Duration float64
	Quality  model.Quality
}

// Report summarizes every non-empty route.
func (s *Solution) Report() []RouteReport {
	var out []RouteReport
	for i, r := range s.All() {
		if r.Empty() {
			continue
		}
		d, t := s.eval.Report(r)
		out = append(out, RouteReport{
			Route:    i,
			Depot:    r.Depot(),
			Stops:    r.Customers(),
			Distance: d,
			Duration: t,
			Quality:  s.cache[i].q,
		})
	}
	return out
}
