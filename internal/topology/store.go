// Package topology holds the canonical router and link collections.
//
// Store keeps each collection twice: an insertion-ordered slice for stable
// iteration and an id-keyed map for O(1) lookup. Links reference routers by id
// and the store guarantees that, whenever a call returns, every link's two
// endpoints resolve to routers that exist.
package topology

import "fabricviz/internal/domain"

// Store owns the routers and links of the visualized topology.
// It is not safe for concurrent use; the runtime confines it to one goroutine.
type Store struct {
	routers   []*domain.Router
	routerIdx map[string]*domain.Router

	links   []*domain.Link
	linkIdx map[string]*domain.Link

	spawn domain.Point
}

// Option configures a Store
type Option func(*Store)

// WithSpawn sets the position new routers are created at
func WithSpawn(p domain.Point) Option {
	return func(s *Store) {
		s.spawn = p
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		routers:   make([]*domain.Router, 0),
		routerIdx: make(map[string]*domain.Router),
		links:     make([]*domain.Link, 0),
		linkIdx:   make(map[string]*domain.Link),
		spawn:     domain.Origin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileRouters makes ids the complete router membership.
//
// Routers whose id is new are appended at the spawn point, routers missing
// from ids are removed, and every link that lost an endpoint is removed in the
// same call.
func (s *Store) ReconcileRouters(ids []string) Delta {
	var d Delta

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}

		if _, ok := s.routerIdx[id]; ok {
			continue
		}
		r := domain.NewRouter(id, s.spawn)
		s.routers = append(s.routers, r)
		s.routerIdx[id] = r
		d.RoutersAdded = append(d.RoutersAdded, id)
	}

	if len(s.routerIdx) == len(want) {
		return d
	}

	kept := s.routers[:0]
	for _, r := range s.routers {
		if _, ok := want[r.ID]; ok {
			kept = append(kept, r)
			continue
		}
		delete(s.routerIdx, r.ID)
		d.RoutersRemoved = append(d.RoutersRemoved, r.ID)
	}
	clearTail(s.routers, len(kept))
	s.routers = kept

	d.LinksRemoved = append(d.LinksRemoved, s.removeLinks(func(l *domain.Link) bool {
		return !s.resolves(l)
	})...)

	return d
}

// ReconcileLinks makes entries the complete link membership.
//
// An entry with a new id is added only when both endpoints currently resolve;
// otherwise it is dropped and reported in Delta.LinksDropped. Existing links
// whose id is absent from entries are removed. Endpoints of an existing id are
// not rewritten.
func (s *Store) ReconcileLinks(entries []domain.LinkEntry) Delta {
	var d Delta

	want := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := want[e.ID]; dup {
			continue
		}

		if _, ok := s.linkIdx[e.ID]; ok {
			want[e.ID] = struct{}{}
			continue
		}
		if !s.HasRouter(e.Src) || !s.HasRouter(e.Dst) {
			d.LinksDropped = append(d.LinksDropped, e.ID)
			continue
		}

		want[e.ID] = struct{}{}
		l := domain.NewLink(e.ID, e.Src, e.Dst)
		s.links = append(s.links, l)
		s.linkIdx[e.ID] = l
		d.LinksAdded = append(d.LinksAdded, e.ID)
	}

	if len(s.linkIdx) == len(want) {
		return d
	}

	d.LinksRemoved = s.removeLinks(func(l *domain.Link) bool {
		_, ok := want[l.ID]
		return !ok
	})

	return d
}

// removeLinks drops every link matching doomed and returns their ids
func (s *Store) removeLinks(doomed func(*domain.Link) bool) []string {
	var removed []string

	kept := s.links[:0]
	for _, l := range s.links {
		if !doomed(l) {
			kept = append(kept, l)
			continue
		}
		delete(s.linkIdx, l.ID)
		removed = append(removed, l.ID)
	}
	clearTail(s.links, len(kept))
	s.links = kept

	return removed
}

func (s *Store) resolves(l *domain.Link) bool {
	return s.HasRouter(l.Source) && s.HasRouter(l.Target)
}

// Routers returns the routers in insertion order.
// The slice is owned by the store and must not be modified.
func (s *Store) Routers() []*domain.Router {
	return s.routers
}

// Links returns the links in insertion order.
// The slice is owned by the store and must not be modified.
func (s *Store) Links() []*domain.Link {
	return s.links
}

// Router looks up a router by id
func (s *Store) Router(id string) (*domain.Router, bool) {
	r, ok := s.routerIdx[id]
	return r, ok
}

// HasRouter reports whether a router with id exists
func (s *Store) HasRouter(id string) bool {
	_, ok := s.routerIdx[id]
	return ok
}

// Link looks up a link by id
func (s *Store) Link(id string) (*domain.Link, bool) {
	l, ok := s.linkIdx[id]
	return l, ok
}

// Endpoints resolves a link's source and target routers by id
func (s *Store) Endpoints(l *domain.Link) (src, dst *domain.Router, ok bool) {
	src, okSrc := s.routerIdx[l.Source]
	dst, okDst := s.routerIdx[l.Target]
	return src, dst, okSrc && okDst
}

// Len returns the router and link counts
func (s *Store) Len() (routers, links int) {
	return len(s.routers), len(s.links)
}

// RouterIDs returns router ids in insertion order
func (s *Store) RouterIDs() []string {
	ids := make([]string, len(s.routers))
	for i, r := range s.routers {
		ids[i] = r.ID
	}
	return ids
}

// LinkIDs returns link ids in insertion order
func (s *Store) LinkIDs() []string {
	ids := make([]string, len(s.links))
	for i, l := range s.links {
		ids[i] = l.ID
	}
	return ids
}

// clearTail nils out pointers past n so removed records can be collected
func clearTail[T any](items []*T, n int) {
	for i := n; i < len(items); i++ {
		items[i] = nil
	}
}
