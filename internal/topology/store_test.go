package topology

import (
	"reflect"
	"testing"

	"fabricviz/internal/domain"
)

func assertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: expected %v, got %v", what, want, got)
	}
}

// assertConsistent checks that every link resolves and both indexes agree with the slices
func assertConsistent(t *testing.T, s *Store) {
	t.Helper()
	if len(s.routerIdx) != len(s.routers) {
		t.Fatalf("router index has %d entries, slice has %d", len(s.routerIdx), len(s.routers))
	}
	if len(s.linkIdx) != len(s.links) {
		t.Fatalf("link index has %d entries, slice has %d", len(s.linkIdx), len(s.links))
	}
	for _, l := range s.Links() {
		if _, _, ok := s.Endpoints(l); !ok {
			t.Fatalf("link %s has a dangling endpoint (%s -> %s)", l.ID, l.Source, l.Target)
		}
	}
}

func entry(id, src, dst string) domain.LinkEntry {
	return domain.LinkEntry{ID: id, Src: src, Dst: dst}
}

func TestReconcileRouters(t *testing.T) {
	t.Run("adds routers in order", func(t *testing.T) {
		s := New()
		d := s.ReconcileRouters([]string{"a", "b", "c"})

		if !d.Changed() {
			t.Fatal("expected change")
		}
		assertIDs(t, "added", d.RoutersAdded, []string{"a", "b", "c"})
		assertIDs(t, "routers", s.RouterIDs(), []string{"a", "b", "c"})
		assertConsistent(t, s)
	})

	t.Run("replacement keeps surviving positions", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"A", "B", "C"})
		b, _ := s.Router("B")
		c, _ := s.Router("C")
		b.X, b.Y = 10, 20
		c.X, c.Y = -30, 40

		d := s.ReconcileRouters([]string{"B", "C", "D"})

		assertIDs(t, "added", d.RoutersAdded, []string{"D"})
		assertIDs(t, "removed", d.RoutersRemoved, []string{"A"})
		assertIDs(t, "routers", s.RouterIDs(), []string{"B", "C", "D"})

		if got, _ := s.Router("B"); got.X != 10 || got.Y != 20 {
			t.Errorf("B moved: (%f, %f)", got.X, got.Y)
		}
		if got, _ := s.Router("C"); got.X != -30 || got.Y != 40 {
			t.Errorf("C moved: (%f, %f)", got.X, got.Y)
		}
		if got, _ := s.Router("D"); got.Position() != domain.Origin {
			t.Errorf("D should spawn at origin, got %v", got.Position())
		}
		if s.HasRouter("A") {
			t.Error("A should be gone")
		}
		assertConsistent(t, s)
	})

	t.Run("same membership is a no-op", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b"})
		d := s.ReconcileRouters([]string{"b", "a"})

		if d.Changed() {
			t.Errorf("expected no change, got %+v", d)
		}
		assertIDs(t, "routers", s.RouterIDs(), []string{"a", "b"})
	})

	t.Run("duplicate ids are collapsed", func(t *testing.T) {
		s := New()
		d := s.ReconcileRouters([]string{"a", "a", "b"})

		assertIDs(t, "added", d.RoutersAdded, []string{"a", "b"})
		if n, _ := s.Len(); n != 2 {
			t.Errorf("expected 2 routers, got %d", n)
		}
		assertConsistent(t, s)
	})

	t.Run("spawn option positions new routers", func(t *testing.T) {
		s := New(WithSpawn(domain.Point{X: 480, Y: 270}))
		s.ReconcileRouters([]string{"a"})

		r, _ := s.Router("a")
		if r.Position() != (domain.Point{X: 480, Y: 270}) {
			t.Errorf("expected spawn point, got %v", r.Position())
		}
	})

	t.Run("empty set removes everything and cascades", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b", "c"})
		s.ReconcileLinks([]domain.LinkEntry{entry("ab", "a", "b"), entry("bc", "b", "c")})

		d := s.ReconcileRouters([]string{})

		if !d.Changed() {
			t.Fatal("expected change")
		}
		assertIDs(t, "removed routers", d.RoutersRemoved, []string{"a", "b", "c"})
		assertIDs(t, "removed links", d.LinksRemoved, []string{"ab", "bc"})
		if r, l := s.Len(); r != 0 || l != 0 {
			t.Errorf("expected empty store, got %d routers, %d links", r, l)
		}
		assertConsistent(t, s)
	})

	t.Run("cascade removes only links touching removed routers", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b", "c"})
		s.ReconcileLinks([]domain.LinkEntry{entry("ab", "a", "b"), entry("bc", "b", "c"), entry("ca", "c", "a")})

		d := s.ReconcileRouters([]string{"b", "c"})

		assertIDs(t, "removed links", d.LinksRemoved, []string{"ab", "ca"})
		assertIDs(t, "links", s.LinkIDs(), []string{"bc"})
		assertConsistent(t, s)
	})
}

func TestReconcileLinks(t *testing.T) {
	t.Run("adds resolvable links", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"r1", "r2"})

		d := s.ReconcileLinks([]domain.LinkEntry{entry("l1", "r1", "r2")})

		if !d.Changed() {
			t.Fatal("expected change")
		}
		assertIDs(t, "added", d.LinksAdded, []string{"l1"})
		l, ok := s.Link("l1")
		if !ok || l.Source != "r1" || l.Target != "r2" {
			t.Fatalf("unexpected link %+v (ok=%v)", l, ok)
		}
		assertConsistent(t, s)
	})

	t.Run("drops unresolvable entries and recovers on resend", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"X"})

		d := s.ReconcileLinks([]domain.LinkEntry{entry("L1", "X", "Y")})
		if d.Changed() {
			t.Errorf("dropping is not a change: %+v", d)
		}
		assertIDs(t, "dropped", d.LinksDropped, []string{"L1"})
		if _, ok := s.Link("L1"); ok {
			t.Fatal("L1 must not be added while Y is missing")
		}

		s.ReconcileRouters([]string{"X", "Y"})
		if _, ok := s.Link("L1"); ok {
			t.Fatal("dropped entries are not queued")
		}

		d = s.ReconcileLinks([]domain.LinkEntry{entry("L1", "X", "Y")})
		assertIDs(t, "added", d.LinksAdded, []string{"L1"})
		assertConsistent(t, s)
	})

	t.Run("absent id is removed even with live endpoints", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b"})
		s.ReconcileLinks([]domain.LinkEntry{entry("l1", "a", "b"), entry("l2", "b", "a")})

		d := s.ReconcileLinks([]domain.LinkEntry{entry("l2", "b", "a")})

		assertIDs(t, "removed", d.LinksRemoved, []string{"l1"})
		assertIDs(t, "links", s.LinkIDs(), []string{"l2"})
		if !s.HasRouter("a") || !s.HasRouter("b") {
			t.Error("link removal must not touch routers")
		}
	})

	t.Run("empty set removes all links", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b"})
		s.ReconcileLinks([]domain.LinkEntry{entry("l1", "a", "b")})

		d := s.ReconcileLinks([]domain.LinkEntry{})

		assertIDs(t, "removed", d.LinksRemoved, []string{"l1"})
		if _, l := s.Len(); l != 0 {
			t.Errorf("expected no links, got %d", l)
		}
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b"})
		entries := []domain.LinkEntry{entry("l1", "a", "b")}
		s.ReconcileLinks(entries)

		if d := s.ReconcileLinks(entries); d.Changed() {
			t.Errorf("expected no change, got %+v", d)
		}
	})

	t.Run("existing link keeps its endpoints", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b", "c"})
		s.ReconcileLinks([]domain.LinkEntry{entry("l1", "a", "b")})

		d := s.ReconcileLinks([]domain.LinkEntry{entry("l1", "a", "c")})
		if d.Changed() {
			t.Errorf("expected no change, got %+v", d)
		}
		if l, _ := s.Link("l1"); l.Target != "b" {
			t.Errorf("expected target b, got %s", l.Target)
		}
	})

	t.Run("endpoint resolution survives preceding removals", func(t *testing.T) {
		s := New()
		s.ReconcileRouters([]string{"a", "b", "c", "d"})
		s.ReconcileLinks([]domain.LinkEntry{entry("cd", "c", "d")})

		s.ReconcileRouters([]string{"c", "d"})

		l, ok := s.Link("cd")
		if !ok {
			t.Fatal("cd should survive")
		}
		src, dst, ok := s.Endpoints(l)
		if !ok || src.ID != "c" || dst.ID != "d" {
			t.Fatalf("cd resolved to %v -> %v (ok=%v)", src, dst, ok)
		}
	})
}

func TestDeltaMerge(t *testing.T) {
	a := Delta{RoutersAdded: []string{"a"}, LinksDropped: []string{"x"}}
	b := Delta{RoutersRemoved: []string{"b"}, LinksAdded: []string{"l"}}

	m := a.Merge(b)

	assertIDs(t, "routers added", m.RoutersAdded, []string{"a"})
	assertIDs(t, "routers removed", m.RoutersRemoved, []string{"b"})
	assertIDs(t, "links added", m.LinksAdded, []string{"l"})
	assertIDs(t, "links dropped", m.LinksDropped, []string{"x"})
	if !m.Changed() {
		t.Error("merged delta should report change")
	}
	if (Delta{LinksDropped: []string{"x"}}).Changed() {
		t.Error("drops alone are not a change")
	}
}
