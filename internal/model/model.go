// Package model holds the read-only problem description shared by the
// evaluator and the search: stops, routes, vehicle limits, metrics and run
// parameters.
package model

import (
	"time"

	"vrpils/internal/errs"
)

// DefaultLoops is the ILS iteration count when none is configured.
const DefaultLoops = 50

// LoadCheck is the optional load-planning hook. It receives a route's stops
// and returns extra penalty for loads that cannot be packed.
type LoadCheck func(stops []*Stop) float64

// Params is configuration the optimizer consumes but does not own.
type Params struct {
	Loops          int
	MaxRunningTime time.Duration // 0 means unbounded
	PDP            bool
	OpenStart      bool
	OpenEnd        bool
	LoadPlanning   bool
}

// Model is everything the search needs besides the solution itself.
type Model struct {
	// Metric drives optimization; ReportMetric (optional) is used for
	// reporting figures only.
	Metric       Metric
	ReportMetric Metric
	Vehicle      Vehicle
	Params       Params
	Depots       []*Stop
	LoadCheck    LoadCheck
}

// MultiDepot reports whether more than one depot is in play.
func (m *Model) MultiDepot() bool { return len(m.Depots) > 1 }

// Reporting returns the reporting metric, falling back to Metric.
func (m *Model) Reporting() Metric {
	if m.ReportMetric != nil {
		return m.ReportMetric
	}
	return m.Metric
}

// Loops returns the configured ILS loop count or DefaultLoops.
func (m *Model) Loops() int {
	if m.Params.Loops > 0 {
		return m.Params.Loops
	}
	return DefaultLoops
}

// Depot returns the depot template with identity id, or nil.
func (m *Model) Depot(id int) *Stop {
	for _, d := range m.Depots {
		if d.Depot == id {
			return d
		}
	}
	return nil
}

// Validate rejects combinations the engine cannot handle.
func (m *Model) Validate() error {
	if m.Metric == nil {
		return errs.Configuration("model has no metric")
	}
	if len(m.Depots) == 0 {
		return errs.Configuration("model has no depot")
	}
	seen := make(map[int]bool, len(m.Depots))
	for _, d := range m.Depots {
		if !d.IsDepot() {
			return errs.Configuration("depot template %q is a %s", d.Name, d.Kind)
		}
		if seen[d.Depot] {
			return errs.Configuration("duplicate depot id %d", d.Depot)
		}
		seen[d.Depot] = true
	}
	if m.Params.PDP && m.MultiDepot() {
		return errs.Configuration("pickup and delivery mode does not support %d depots", len(m.Depots))
	}
	if m.Params.Loops < 0 {
		return errs.Configuration("loops must not be negative, got %d", m.Params.Loops)
	}
	if m.Params.MaxRunningTime < 0 {
		return errs.Configuration("max running time must not be negative")
	}
	for i, c := range m.Vehicle.Capacity {
		if c < 0 {
			return errs.Configuration("compartment %d has negative capacity", i)
		}
	}
	return nil
}
