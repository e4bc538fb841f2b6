package model

import "math"

// Metric gives travel distance and time between stop indices.
type Metric interface {
	Distance(from, to int) float64
	Time(from, to int) float64
}

// Matrix is a dense, possibly asymmetric metric. A nil Durations matrix
// makes travel time equal to distance.
type Matrix struct {
	Distances [][]float64
	Durations [][]float64
}

func (m *Matrix) Distance(from, to int) float64 { return m.Distances[from][to] }

func (m *Matrix) Time(from, to int) float64 {
	if m.Durations == nil {
		return m.Distances[from][to]
	}
	return m.Durations[from][to]
}

// Point is a planar or geographic coordinate pair.
type Point struct{ X, Y float64 }

// Euclidean measures straight-line distance between points; time is
// distance divided by Speed (1 when unset).
type Euclidean struct {
	Points []Point
	Speed  float64
}

func (e *Euclidean) Distance(from, to int) float64 {
	a, b := e.Points[from], e.Points[to]
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func (e *Euclidean) Time(from, to int) float64 {
	if e.Speed <= 0 {
		return e.Distance(from, to)
	}
	return e.Distance(from, to) / e.Speed
}

// Haversine treats points as (lat, lng) degrees; distance is in meters and
// time in seconds at SpeedKph (50 when unset).
type Haversine struct {
	Points   []Point
	SpeedKph float64
}

func (h *Haversine) Distance(from, to int) float64 {
	a, b := h.Points[from], h.Points[to]
	return haversine(a.X, a.Y, b.X, b.Y)
}

func (h *Haversine) Time(from, to int) float64 {
	speed := h.SpeedKph
	if speed <= 0 {
		speed = 50
	}
	return h.Distance(from, to) / (speed / 3.6)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// PointsOf collects stop coordinates indexed by Stop.Index.
func PointsOf(stops []*Stop) []Point {
	n := 0
	for _, s := range stops {
		if s.Index+1 > n {
			n = s.Index + 1
		}
	}
	pts := make([]Point, n)
	for _, s := range stops {
		pts[s.Index] = Point{X: s.X, Y: s.Y}
	}
	return pts
}
