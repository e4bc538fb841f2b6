package seed

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpils/internal/errs"
	"vrpils/internal/model"
)

func TestRandomIsReproducible(t *testing.T) {
	cfg := InstanceConfig{Customers: 12, Depots: 2, Horizon: 100}
	a := Random(cfg, rand.New(rand.NewSource(7)))
	b := Random(cfg, rand.New(rand.NewSource(7)))
	require.Len(t, a.Stops, 12)
	require.Len(t, a.Depots, 2)
	for i := range a.Stops {
		assert.Equal(t, a.Stops[i].X, b.Stops[i].X)
		assert.Equal(t, a.Stops[i].Demand, b.Stops[i].Demand)
		require.Len(t, a.Stops[i].Windows, 1)
	}
	assert.Len(t, a.Metric.Points, 14)
}

func TestOneRoutePerStop(t *testing.T) {
	in := Random(InstanceConfig{Customers: 5}, rand.New(rand.NewSource(1)))
	s, err := OneRoutePerStop(in.Model(model.Vehicle{}, model.Params{}), in.Stops)
	require.NoError(t, err)
	// five single-stop routes plus the spare empty route
	require.Len(t, s.Routes, 6)
	assert.Equal(t, 5, s.Customers())
	assert.True(t, s.Routes[5].Empty())
}

func TestSequentialRespectsCapacity(t *testing.T) {
	in := Random(InstanceConfig{Customers: 30, MaxDemand: 5}, rand.New(rand.NewSource(3)))
	m := in.Model(model.Vehicle{Capacity: []float64{20}}, model.Params{})
	s, err := Sequential(m, in.Stops)
	require.NoError(t, err)
	assert.Equal(t, 30, s.Customers())
	assert.Zero(t, s.Quality().Capacity)
	assert.Less(t, s.Quality().Routes, 30)
}

func TestSequentialKeepsShipmentsTogether(t *testing.T) {
	in := Random(InstanceConfig{Shipments: 4}, rand.New(rand.NewSource(5)))
	m := in.Model(model.Vehicle{Capacity: []float64{100}}, model.Params{PDP: true})
	s, err := Sequential(m, in.Stops)
	require.NoError(t, err)
	assert.Zero(t, s.Quality().Precedence)
	for _, r := range s.Routes {
		seen := map[int]bool{}
		for _, st := range r.Interior() {
			if st.Load == model.Pickup {
				seen[st.Shipment] = true
				continue
			}
			assert.True(t, seen[st.Shipment], "delivery %s before its pickup", st.Name)
		}
	}
}

func TestUnpairedShipmentIsInvalid(t *testing.T) {
	in := Random(InstanceConfig{Shipments: 1}, rand.New(rand.NewSource(5)))
	m := in.Model(model.Vehicle{}, model.Params{PDP: true})
	_, err := OneRoutePerStop(m, in.Stops[:1])
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
}
