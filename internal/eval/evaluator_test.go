package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpils/internal/model"
)

// line places stop i at (x[i], 0); index 0 is the depot.
func line(xs ...float64) (*model.Model, []*model.Stop) {
	stops := make([]*model.Stop, len(xs))
	pts := make([]model.Point, len(xs))
	for i, x := range xs {
		stops[i] = &model.Stop{Index: i, X: x}
		pts[i] = model.Point{X: x}
	}
	stops[0].Kind = model.KindDepot
	m := &model.Model{
		Metric: &model.Euclidean{Points: pts},
		Depots: []*model.Stop{stops[0]},
	}
	return m, stops
}

func deliver(s *model.Stop, d float64) *model.Stop {
	s.Demand = []float64{d}
	return s
}

func TestEmptyRouteIsZero(t *testing.T) {
	m, stops := line(0)
	m.Vehicle.FixedCost = 50
	q := New(m).Route(model.NewRoute(stops[0], 1))
	assert.Equal(t, model.Quality{}, q)
}

func TestCapacityOverflowPenalty(t *testing.T) {
	m, s := line(0, 1, 2, 3)
	m.Vehicle.Capacity = []float64{10}
	r := model.NewRoute(s[0], 1, deliver(s[1], 4), deliver(s[2], 4), deliver(s[3], 5))
	e := New(m)

	q := e.Route(r)
	assert.Equal(t, 3.0, q.Capacity)
	assert.Equal(t, 3.0, q.Penalty)
	assert.Equal(t, 6.0, q.Cost)

	m.Vehicle.Capacity = []float64{100}
	relaxed := e.Route(r)
	assert.Equal(t, 0.0, relaxed.Penalty)
	assert.Equal(t, q.Cost, relaxed.Cost)
}

func TestReplenishmentResetsLoad(t *testing.T) {
	m, s := line(0, 1, 2, 3)
	m.Vehicle.Capacity = []float64{10}
	s[2].Kind = model.KindReplenish
	e := New(m)

	q := e.Route(model.NewRoute(s[0], 1, deliver(s[1], 6), s[2], deliver(s[3], 6)))
	assert.Equal(t, 0.0, q.Capacity)

	// a trailing replenishment is not followed by a stop and does not count
	q = e.Route(model.NewRoute(s[0], 1, deliver(s[1], 6), deliver(s[3], 6), s[2]))
	assert.Equal(t, 2.0, q.Capacity)
}

func TestPickupAfterDeliveryFreesRoom(t *testing.T) {
	m, s := line(0, 1, 2)
	m.Vehicle.Capacity = []float64{10}
	pick := &model.Stop{Index: 2, X: 2, Demand: []float64{8}, Load: model.Pickup}
	e := New(m)

	q := e.Route(model.NewRoute(s[0], 1, deliver(s[1], 5), pick))
	assert.Equal(t, 0.0, q.Capacity)

	q = e.Route(model.NewRoute(s[0], 1, pick, s[1]))
	assert.Equal(t, 3.0, q.Capacity)
}

func TestShiftBreaks(t *testing.T) {
	m, s := line(0, 10, 20)
	m.Vehicle.ShiftDriving = 15
	m.Vehicle.BreakTime = 7
	q := New(m).Route(model.NewRoute(s[0], 1, s[1], s[2]))
	assert.Equal(t, 2, q.Breaks)
	assert.Equal(t, 54.0, q.Elapsed)
	assert.Equal(t, 40.0, q.Distance)
}

func TestTimeWindows(t *testing.T) {
	m, s := line(0, 10)
	e := New(m)

	s[1].Windows = []model.TimeWindow{{Open: 0, Close: 5}}
	q := e.Route(model.NewRoute(s[0], 1, s[1]))
	assert.Equal(t, 5.0, q.Delay)

	s[1].Windows = []model.TimeWindow{{Open: 0, Close: 5}, {Open: 30, Close: 40}}
	m.Vehicle.MaxWaiting = 5
	q = e.Route(model.NewRoute(s[0], 1, s[1]))
	assert.Equal(t, 0.0, q.Delay)
	assert.Equal(t, 15.0, q.Waiting)
	assert.Equal(t, 40.0, q.Elapsed)

	m.Vehicle.MaxDuration = 35
	q = e.Route(model.NewRoute(s[0], 1, s[1]))
	assert.Equal(t, 5.0, q.Violations.Duration)
}

func TestOpenEndSkipsReturn(t *testing.T) {
	m, s := line(0, 3, 5)
	m.Params.OpenEnd = true
	q := New(m).Route(model.NewRoute(s[0], 1, s[1], s[2]))
	assert.Equal(t, 5.0, q.Distance)
	assert.Equal(t, 5.0, q.Elapsed)

	m.Params.OpenEnd = false
	m.Params.OpenStart = true
	q = New(m).Route(model.NewRoute(s[0], 1, s[1], s[2]))
	assert.Equal(t, 7.0, q.Distance)
}

func TestPrecedence(t *testing.T) {
	m, s := line(0, 1, 2)
	m.Params.PDP = true
	s[1].Shipment, s[1].Load = 1, model.Pickup
	s[2].Shipment, s[2].Load = 1, model.Delivery
	e := New(m)

	assert.Equal(t, 0.0, e.Route(model.NewRoute(s[0], 1, s[1], s[2])).Precedence)
	assert.Equal(t, 2.0, e.Route(model.NewRoute(s[0], 1, s[2], s[1])).Precedence)
	assert.Equal(t, 1.0, e.Route(model.NewRoute(s[0], 1, s[1])).Precedence)
}

func TestBlacklistAndDepots(t *testing.T) {
	m, s := line(0, 1, 2)
	s[1].Blacklist = []int{2}
	s[2].AllowedDepots = []int{9}
	q := New(m).Route(model.NewRoute(s[0], 1, s[1], s[2]))
	assert.Equal(t, 1.0, q.Blacklist)
	assert.Equal(t, 1.0, q.Depot)
	assert.Equal(t, 2.0, q.Penalty)
}

func TestPresets(t *testing.T) {
	m, s := line(0, 1, 2, 3)
	s[1].Block, s[1].BlockPosition = 1, 2
	s[2].Block, s[2].BlockPosition = 1, 1
	s[3].Rank = 3
	e := New(m)

	q := e.Route(model.NewRoute(s[0], 1, s[1], s[2], s[3]))
	assert.Equal(t, 1.0, q.Preset)
	q = e.Route(model.NewRoute(s[0], 1, s[2], s[1], s[3]))
	assert.Equal(t, 0.0, q.Preset)
	q = e.Route(model.NewRoute(s[0], 1, s[3], s[2], s[1]))
	assert.Equal(t, 1.0, q.Preset)
}

func TestStopCountCollapsesColocated(t *testing.T) {
	m, s := line(0, 1, 1, 2)
	m.Vehicle.MaxStops = 1
	q := New(m).Route(model.NewRoute(s[0], 1, s[1], s[2], s[3]))
	assert.Equal(t, 1.0, q.Stops)
}

func TestLoadCheckHook(t *testing.T) {
	m, s := line(0, 1)
	m.LoadCheck = func(stops []*model.Stop) float64 { return float64(len(stops)) }
	e := New(m)
	assert.Equal(t, 0.0, e.Route(model.NewRoute(s[0], 1, s[1])).LoadPlan)
	m.Params.LoadPlanning = true
	assert.Equal(t, 3.0, e.Route(model.NewRoute(s[0], 1, s[1])).LoadPlan)
}

func TestRoutesSumsInOrder(t *testing.T) {
	m, s := line(0, 1, 2, 3)
	m.Vehicle.FixedCost = 1
	e := New(m)
	routes := []*model.Route{
		model.NewRoute(s[0], 1, s[1]),
		model.NewRoute(s[0], 2, s[2], s[3]),
		model.NewRoute(s[0], 3),
	}
	total := e.Routes(routes)
	require.Equal(t, 2, total.Routes)
	assert.Equal(t, 2.0+6.0, total.Distance)
	assert.Equal(t, 10.0, total.Cost)

	d, dur := e.Report(routes[1])
	assert.Equal(t, 6.0, d)
	assert.Equal(t, 6.0, dur)
}
