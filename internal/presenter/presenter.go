package presenter

import (
	"fabricviz/internal/domain"
)

// NodeHandle is the visual bound to one router
type NodeHandle interface {
	Move(at domain.Point)
	Remove()
}

// LinkHandle is the visual bound to one link
type LinkHandle interface {
	Move(source, target domain.Point)
	Remove()
}

// Surface creates visual handles
type Surface interface {
	NewNode(id string) NodeHandle
	NewLink(id, sourceID, targetID string) LinkHandle
}

// Source is the read side of the topology the presenter draws
type Source interface {
	Routers() []*domain.Router
	Links() []*domain.Link
	Endpoints(l *domain.Link) (src, dst *domain.Router, ok bool)
}

// RenderStats counts handle churn for one Render pass
type RenderStats struct {
	NodesCreated int
	NodesRemoved int
	LinksCreated int
	LinksRemoved int
	Nodes        int
	Links        int
}

type nodeEntry struct {
	handle NodeHandle
	seen   uint64
}

type linkEntry struct {
	handle         LinkHandle
	source, target string
	seen           uint64
}

// Presenter maps topology state to persistent handles on a Surface
type Presenter struct {
	surface Surface
	src     Source
	nodes   map[string]*nodeEntry
	links   map[string]*linkEntry
	pass    uint64
}

// New creates a presenter drawing src onto surface
func New(surface Surface, src Source) *Presenter {
	return &Presenter{
		surface: surface,
		src:     src,
		nodes:   make(map[string]*nodeEntry),
		links:   make(map[string]*linkEntry),
	}
}

// Render runs one enter/update/exit pass.
// Links whose endpoints no longer resolve are treated as gone.
func (p *Presenter) Render() RenderStats {
	p.pass++
	var st RenderStats

	for _, r := range p.src.Routers() {
		e, ok := p.nodes[r.ID]
		if !ok {
			e = &nodeEntry{handle: p.surface.NewNode(r.ID)}
			p.nodes[r.ID] = e
			st.NodesCreated++
		}
		e.seen = p.pass
		e.handle.Move(r.Position())
	}

	for _, l := range p.src.Links() {
		src, dst, ok := p.src.Endpoints(l)
		if !ok {
			continue
		}
		e, exists := p.links[l.ID]
		if exists && (e.source != l.Source || e.target != l.Target) {
			// same id, new endpoints: the link was re-created between passes
			e.handle.Remove()
			st.LinksRemoved++
			exists = false
		}
		if !exists {
			e = &linkEntry{
				handle: p.surface.NewLink(l.ID, l.Source, l.Target),
				source: l.Source,
				target: l.Target,
			}
			p.links[l.ID] = e
			st.LinksCreated++
		}
		e.seen = p.pass

		from, to := src.Position(), dst.Position()
		l.X, l.Y = (from.X+to.X)/2, (from.Y+to.Y)/2
		e.handle.Move(from, to)
	}

	for id, e := range p.nodes {
		if e.seen != p.pass {
			e.handle.Remove()
			delete(p.nodes, id)
			st.NodesRemoved++
		}
	}
	for id, e := range p.links {
		if e.seen != p.pass {
			e.handle.Remove()
			delete(p.links, id)
			st.LinksRemoved++
		}
	}

	st.Nodes, st.Links = len(p.nodes), len(p.links)
	return st
}

// Len returns the number of live node and link handles
func (p *Presenter) Len() (nodes, links int) {
	return len(p.nodes), len(p.links)
}
