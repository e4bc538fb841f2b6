package model

// Vehicle holds the limits every route must respect. Zero values disable a
// limit.
type Vehicle struct {
	Name string
	// Capacity per compartment; demand vectors are compared element-wise.
	// A nil Capacity leaves load unchecked.
	Capacity    []float64
	MaxDuration float64
	MaxStops    int
	MaxWaiting  float64
	FixedCost   float64

	// Count is the number of vehicles available at each depot; 0 means
	// unlimited. Routes beyond it are overhang routes.
	Count int
	// DepotCounts overrides Count for individual depots.
	DepotCounts map[int]int

	// Driver shift: after ShiftDriving units of driving a rest of
	// BreakTime is taken before the next leg.
	ShiftDriving float64
	BreakTime    float64
}

// Available returns the vehicle count at depot, 0 meaning unlimited.
func (v *Vehicle) Available(depot int) int {
	if n, ok := v.DepotCounts[depot]; ok {
		return n
	}
	return v.Count
}

// Compartments is the number of capacity dimensions.
func (v *Vehicle) Compartments() int { return len(v.Capacity) }
