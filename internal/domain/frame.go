package domain

// Frame is the per-tick view of the drawing handed to renderers.
// Frames are values; a published frame is never mutated.
type Frame struct {
	Tick  uint64     `json:"tick"`
	Alpha float64    `json:"alpha"`
	Nodes []NodeView `json:"nodes"`
	Links []LinkView `json:"links"`
}

// NodeView is one router as drawn
type NodeView struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// LinkView is one link as drawn, with both endpoint positions resolved
type LinkView struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Source   Point  `json:"source"`
	Target   Point  `json:"target"`
}

// NewFrame creates an empty frame with initialized collections
func NewFrame() *Frame {
	return &Frame{
		Nodes: make([]NodeView, 0),
		Links: make([]LinkView, 0),
	}
}

// Node returns the node view with the given id
func (f *Frame) Node(id string) (NodeView, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeView{}, false
}

// Link returns the link view with the given id
func (f *Frame) Link(id string) (LinkView, bool) {
	for _, l := range f.Links {
		if l.ID == id {
			return l, true
		}
	}
	return LinkView{}, false
}

// Bounds returns the bounding box of all node positions.
// An empty frame returns zero points.
func (f *Frame) Bounds() (min, max Point) {
	for i, n := range f.Nodes {
		if i == 0 {
			min = Point{X: n.X, Y: n.Y}
			max = min
			continue
		}
		if n.X < min.X {
			min.X = n.X
		}
		if n.Y < min.Y {
			min.Y = n.Y
		}
		if n.X > max.X {
			max.X = n.X
		}
		if n.Y > max.Y {
			max.Y = n.Y
		}
	}
	return min, max
}
