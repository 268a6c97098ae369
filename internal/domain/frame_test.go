package domain

import "testing"

func TestFrameLookup(t *testing.T) {
	f := NewFrame()
	f.Nodes = append(f.Nodes, NodeView{ID: "r1", X: 1, Y: 2}, NodeView{ID: "r2", X: 3, Y: 4})
	f.Links = append(f.Links, LinkView{ID: "l1", SourceID: "r1", TargetID: "r2"})

	if n, ok := f.Node("r2"); !ok || n.X != 3 {
		t.Errorf("expected to find r2 at x=3, got %v (ok=%v)", n, ok)
	}
	if _, ok := f.Node("missing"); ok {
		t.Error("expected missing node lookup to fail")
	}
	if l, ok := f.Link("l1"); !ok || l.TargetID != "r2" {
		t.Errorf("expected to find l1 -> r2, got %v (ok=%v)", l, ok)
	}
}

func TestFrameBounds(t *testing.T) {
	t.Run("empty frame", func(t *testing.T) {
		min, max := NewFrame().Bounds()
		if min != (Point{}) || max != (Point{}) {
			t.Errorf("expected zero bounds, got %v %v", min, max)
		}
	})

	t.Run("spans all nodes", func(t *testing.T) {
		f := NewFrame()
		f.Nodes = []NodeView{{ID: "a", X: -10, Y: 5}, {ID: "b", X: 20, Y: -3}, {ID: "c", X: 0, Y: 40}}
		min, max := f.Bounds()
		if min != (Point{X: -10, Y: -3}) {
			t.Errorf("unexpected min %v", min)
		}
		if max != (Point{X: 20, Y: 40}) {
			t.Errorf("unexpected max %v", max)
		}
	})
}
