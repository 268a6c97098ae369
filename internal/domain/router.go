package domain

// Router represents a fabric router in the visualized topology
type Router struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// NewRouter creates a router at the given spawn point
func NewRouter(id string, at Point) *Router {
	return &Router{
		ID: id,
		X:  at.X,
		Y:  at.Y,
	}
}

// Position returns the router's current position
func (r *Router) Position() Point {
	return Point{X: r.X, Y: r.Y}
}
