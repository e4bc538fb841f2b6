package seed

import (
	"fmt"
	"math/rand"

	"vrpils/internal/model"
)

// InstanceConfig describes a random benchmark instance on a square.
type InstanceConfig struct {
	Customers   int     `yaml:"customers"`
	Depots      int     `yaml:"depots"`
	Shipments   int     `yaml:"shipments"`
	Width       float64 `yaml:"width"`
	MaxDemand   int     `yaml:"max_demand"`
	ServiceTime float64 `yaml:"service_time"`
	// Horizon > 0 gives every customer a random time window inside
	// [0, Horizon].
	Horizon float64 `yaml:"horizon"`
}

// Instance is a generated problem without vehicle or run parameters.
type Instance struct {
	Depots []*model.Stop
	Stops  []*model.Stop
	Metric *model.Euclidean
}

// Random draws an instance from rng. Depots come first in the metric, then
// customers, then shipment pickups and deliveries.
func Random(cfg InstanceConfig, rng *rand.Rand) *Instance {
	if cfg.Depots <= 0 {
		cfg.Depots = 1
	}
	if cfg.Width <= 0 {
		cfg.Width = 100
	}
	if cfg.MaxDemand <= 0 {
		cfg.MaxDemand = 10
	}
	in := &Instance{}
	var all []*model.Stop
	point := func() (float64, float64) { return rng.Float64() * cfg.Width, rng.Float64() * cfg.Width }
	for d := 0; d < cfg.Depots; d++ {
		x, y := point()
		s := &model.Stop{Index: len(all), Name: fmt.Sprintf("depot-%d", d), Kind: model.KindDepot, X: x, Y: y, Depot: d}
		in.Depots = append(in.Depots, s)
		all = append(all, s)
	}
	customer := func(name string) *model.Stop {
		x, y := point()
		s := &model.Stop{
			Index:       len(all),
			Name:        name,
			X:           x,
			Y:           y,
			Demand:      []float64{float64(1 + rng.Intn(cfg.MaxDemand))},
			ServiceTime: cfg.ServiceTime,
		}
		if cfg.Horizon > 0 {
			open := rng.Float64() * cfg.Horizon * 0.75
			s.Windows = []model.TimeWindow{{Open: open, Close: open + cfg.Horizon*0.25}}
		}
		all = append(all, s)
		in.Stops = append(in.Stops, s)
		return s
	}
	for i := 0; i < cfg.Customers; i++ {
		customer(fmt.Sprintf("c-%d", i))
	}
	for i := 1; i <= cfg.Shipments; i++ {
		p := customer(fmt.Sprintf("p-%d", i))
		d := customer(fmt.Sprintf("d-%d", i))
		p.Load, d.Load = model.Pickup, model.Delivery
		p.Shipment, d.Shipment = i, i
		d.Demand = p.Demand
	}
	in.Metric = &model.Euclidean{Points: model.PointsOf(all)}
	return in
}

// Model binds the instance to a vehicle and run parameters.
func (in *Instance) Model(v model.Vehicle, p model.Params) *model.Model {
	return &model.Model{
		Metric:  in.Metric,
		Vehicle: v,
		Params:  p,
		Depots:  in.Depots,
	}
}
