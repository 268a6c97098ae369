package domain

// Link represents a connection between two routers.
// Source and Target are router ids.
type Link struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`

	// X and Y are the label anchor. The presenter keeps them at the
	// midpoint of the endpoints; the layout never moves them.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewLink creates a link between two router ids
func NewLink(id, source, target string) *Link {
	return &Link{
		ID:     id,
		Source: source,
		Target: target,
	}
}

// Touches reports whether the link has routerID as an endpoint
func (l *Link) Touches(routerID string) bool {
	return l.Source == routerID || l.Target == routerID
}

// LinkEntry is one link as declared by a snapshot
type LinkEntry struct {
	ID  string `json:"id" yaml:"id"`
	Src string `json:"src" yaml:"src"`
	Dst string `json:"dst" yaml:"dst"`
}
