package model

// Kind is the role a stop plays in a route.
type Kind int

const (
	KindCustomer Kind = iota
	KindDepot
	KindReplenish
	KindPause
)

func (k Kind) String() string {
	switch k {
	case KindDepot:
		return "depot"
	case KindReplenish:
		return "replenish"
	case KindPause:
		return "pause"
	default:
		return "customer"
	}
}

// LoadType says how a customer's demand moves through the vehicle.
type LoadType int

const (
	Delivery LoadType = iota
	Pickup
)

// TimeWindow is an [Open, Close] interval in metric time units.
type TimeWindow struct {
	Open  float64
	Close float64
}

// Stop is a single visit. Stops are shared read-only between routes and
// solution copies; only depot stops are copied per route (see Instance).
type Stop struct {
	// Index addresses the stop in the metric. Copies of one depot share it.
	Index int
	Name  string
	Kind  Kind
	X, Y  float64

	Demand      []float64
	Windows     []TimeWindow
	ServiceTime float64
	Load        LoadType

	// Shipment pairs a pickup with a delivery in PDP mode; 0 means unpaired.
	Shipment int

	// Preset block membership. Block 0 means none. Position orders stops
	// inside the block, Rank (1-based, 0 = free) pins the stop to a slot
	// among the route's customers.
	Block         int
	BlockPosition int
	Rank          int

	// Depot identity for depot stops, and the synthetic per-route instance
	// id assigned during normalization.
	Depot    int
	Instance int

	// Blacklist lists stop indices this stop must not share a route with.
	Blacklist []int
	// AllowedDepots restricts which depots may serve the stop; empty means any.
	AllowedDepots []int

	// Invalid tags a stop the construction layer could not plan.
	Invalid string
}

// IsDepot reports whether s is a depot stop.
func (s *Stop) IsDepot() bool { return s.Kind == KindDepot }

// IsCustomer reports whether s carries demand to deliver or collect.
func (s *Stop) IsCustomer() bool { return s.Kind == KindCustomer }

// Paired reports whether s belongs to a shipment.
func (s *Stop) Paired() bool { return s.Shipment != 0 }

// SameLocation reports whether two stops collapse into one effective visit.
func (s *Stop) SameLocation(o *Stop) bool {
	return s.Index == o.Index || (s.X == o.X && s.Y == o.Y)
}

// DepotCopy returns a copy of a depot stop carrying instance id.
func (s *Stop) DepotCopy(instance int) *Stop {
	c := *s
	c.Instance = instance
	return &c
}

// AllowsDepot reports whether the stop may be served from depot.
func (s *Stop) AllowsDepot(depot int) bool {
	if len(s.AllowedDepots) == 0 {
		return true
	}
	for _, d := range s.AllowedDepots {
		if d == depot {
			return true
		}
	}
	return false
}
