package domain

import "math"

// Point is a position in layout space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Origin is the default spawn point for new routers
var Origin = Point{}

// Finite reports whether both coordinates are finite numbers
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance returns the euclidean distance between two points
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}
