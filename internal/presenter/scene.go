package presenter

import (
	"slices"
	"strings"
	"sync"

	"fabricviz/internal/domain"
)

// Scene is a retained Surface. Handles write into the scene's entries from
// the render goroutine; Publish snapshots the entries into an immutable frame
// that any goroutine may read.
type Scene struct {
	nodes map[string]*sceneNode
	links map[string]*sceneLink

	mu    sync.RWMutex
	frame *domain.Frame
}

type sceneNode struct {
	scene *Scene
	view  domain.NodeView
}

type sceneLink struct {
	scene *Scene
	view  domain.LinkView
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{
		nodes: make(map[string]*sceneNode),
		links: make(map[string]*sceneLink),
		frame: domain.NewFrame(),
	}
}

// NewNode implements Surface
func (s *Scene) NewNode(id string) NodeHandle {
	n := &sceneNode{scene: s, view: domain.NodeView{ID: id}}
	s.nodes[id] = n
	return n
}

// NewLink implements Surface
func (s *Scene) NewLink(id, sourceID, targetID string) LinkHandle {
	l := &sceneLink{scene: s, view: domain.LinkView{ID: id, SourceID: sourceID, TargetID: targetID}}
	s.links[id] = l
	return l
}

func (n *sceneNode) Move(at domain.Point) {
	n.view.X, n.view.Y = at.X, at.Y
}

func (n *sceneNode) Remove() {
	if cur, ok := n.scene.nodes[n.view.ID]; ok && cur == n {
		delete(n.scene.nodes, n.view.ID)
	}
}

func (l *sceneLink) Move(source, target domain.Point) {
	l.view.Source, l.view.Target = source, target
}

func (l *sceneLink) Remove() {
	if cur, ok := l.scene.links[l.view.ID]; ok && cur == l {
		delete(l.scene.links, l.view.ID)
	}
}

// Publish captures the current entries as the frame for tick.
// Views are ordered by id.
func (s *Scene) Publish(tick uint64, alpha float64) *domain.Frame {
	f := &domain.Frame{
		Tick:  tick,
		Alpha: alpha,
		Nodes: make([]domain.NodeView, 0, len(s.nodes)),
		Links: make([]domain.LinkView, 0, len(s.links)),
	}
	for _, n := range s.nodes {
		f.Nodes = append(f.Nodes, n.view)
	}
	for _, l := range s.links {
		f.Links = append(f.Links, l.view)
	}
	slices.SortFunc(f.Nodes, func(a, b domain.NodeView) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(f.Links, func(a, b domain.LinkView) int { return strings.Compare(a.ID, b.ID) })

	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
	return f
}

// Frame returns the most recently published frame. Callers must not mutate it.
func (s *Scene) Frame() *domain.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}
