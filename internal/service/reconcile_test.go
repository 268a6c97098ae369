package service

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"fabricviz/internal/domain"
	"fabricviz/internal/observability"
	"fabricviz/internal/topology"
)

type recordingReseeder struct {
	calls int
}

func (r *recordingReseeder) Reseed() { r.calls++ }

type sample struct {
	source  string
	metrics string
}

type recordingSink struct {
	samples []sample
}

func (s *recordingSink) Observe(source string, metrics json.RawMessage) {
	s.samples = append(s.samples, sample{source: source, metrics: string(metrics)})
}

func newTestReconciler(t *testing.T) (*Reconciler, *recordingReseeder, *recordingSink) {
	t.Helper()
	reseeder := &recordingReseeder{}
	sink := &recordingSink{}
	r := NewReconciler(topology.New(), reseeder, WithTelemetry(sink))
	return r, reseeder, sink
}

func routers(ids ...string) domain.Snapshot {
	if ids == nil {
		ids = []string{}
	}
	return domain.Snapshot{Routers: ids}
}

func links(entries ...domain.LinkEntry) domain.Snapshot {
	if entries == nil {
		entries = []domain.LinkEntry{}
	}
	return domain.Snapshot{Links: entries}
}

func link(id, src, dst string) domain.LinkEntry {
	return domain.LinkEntry{ID: id, Src: src, Dst: dst}
}

func assertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestReconcilerEndToEnd(t *testing.T) {
	r, reseeder, _ := newTestReconciler(t)
	store := r.Store()

	t.Run("routers introduced", func(t *testing.T) {
		d := r.OnMessage(routers("r1", "r2"))
		if !d.Changed() {
			t.Error("expected change")
		}
		assertIDs(t, "routers", store.RouterIDs(), []string{"r1", "r2"})
	})

	t.Run("link introduced", func(t *testing.T) {
		d := r.OnMessage(links(link("l1", "r1", "r2")))
		if !d.Changed() {
			t.Error("expected change")
		}
		assertIDs(t, "links", store.LinkIDs(), []string{"l1"})
	})

	t.Run("router removal cascades", func(t *testing.T) {
		d := r.OnMessage(routers("r2"))
		if !d.Changed() {
			t.Error("expected change")
		}
		assertIDs(t, "routers", store.RouterIDs(), []string{"r2"})
		assertIDs(t, "links", store.LinkIDs(), nil)
		assertIDs(t, "links removed", d.LinksRemoved, []string{"l1"})
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		before := reseeder.calls
		d := r.OnMessage(routers("r2"))
		if d.Changed() {
			t.Errorf("expected no change, got %+v", d)
		}
		if reseeder.calls != before {
			t.Errorf("reseed called on unchanged snapshot")
		}
	})

	if reseeder.calls != 3 {
		t.Errorf("reseeds = %d, want 3", reseeder.calls)
	}
}

func TestReconcilerIdempotence(t *testing.T) {
	r, reseeder, _ := newTestReconciler(t)
	snap := domain.Snapshot{
		Routers: []string{"a", "b", "c"},
		Links:   []domain.LinkEntry{link("ab", "a", "b"), link("bc", "b", "c")},
	}

	if d := r.OnMessage(snap); !d.Changed() {
		t.Fatal("first application should change")
	}
	routersBefore := r.Store().RouterIDs()
	linksBefore := r.Store().LinkIDs()

	if d := r.OnMessage(snap); d.Changed() {
		t.Errorf("second application changed: %+v", d)
	}
	assertIDs(t, "routers", r.Store().RouterIDs(), routersBefore)
	assertIDs(t, "links", r.Store().LinkIDs(), linksBefore)
	if reseeder.calls != 1 {
		t.Errorf("reseeds = %d, want 1", reseeder.calls)
	}
}

func TestReconcilerRouterReplacementKeepsPositions(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.OnMessage(routers("A", "B", "C"))

	b, _ := r.Store().Router("B")
	c, _ := r.Store().Router("C")
	b.X, b.Y = 10, 20
	c.X, c.Y = -5, 7

	d := r.OnMessage(routers("B", "C", "D"))
	assertIDs(t, "added", d.RoutersAdded, []string{"D"})
	assertIDs(t, "removed", d.RoutersRemoved, []string{"A"})
	assertIDs(t, "routers", r.Store().RouterIDs(), []string{"B", "C", "D"})

	gotB, _ := r.Store().Router("B")
	gotC, _ := r.Store().Router("C")
	if gotB.Position() != (domain.Point{X: 10, Y: 20}) {
		t.Errorf("B moved to %v", gotB.Position())
	}
	if gotC.Position() != (domain.Point{X: -5, Y: 7}) {
		t.Errorf("C moved to %v", gotC.Position())
	}
}

func TestReconcilerLinkDropAndRecover(t *testing.T) {
	r, reseeder, _ := newTestReconciler(t)
	r.OnMessage(routers("X"))

	d := r.OnMessage(links(link("L1", "X", "Y")))
	if d.Changed() {
		t.Error("dropped link must not count as change")
	}
	assertIDs(t, "dropped", d.LinksDropped, []string{"L1"})
	if _, ok := r.Store().Link("L1"); ok {
		t.Fatal("L1 should not be present")
	}

	r.OnMessage(routers("X", "Y"))
	d = r.OnMessage(links(link("L1", "X", "Y")))
	assertIDs(t, "added", d.LinksAdded, []string{"L1"})
	if _, ok := r.Store().Link("L1"); !ok {
		t.Error("L1 should be present after resend")
	}
	if reseeder.calls != 3 {
		t.Errorf("reseeds = %d, want 3", reseeder.calls)
	}
}

func TestReconcilerExplicitLinkRemoval(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.OnMessage(domain.Snapshot{
		Routers: []string{"a", "b"},
		Links:   []domain.LinkEntry{link("l1", "a", "b"), link("l2", "b", "a")},
	})

	d := r.OnMessage(links(link("l2", "b", "a")))
	assertIDs(t, "removed", d.LinksRemoved, []string{"l1"})
	assertIDs(t, "links", r.Store().LinkIDs(), []string{"l2"})
	assertIDs(t, "routers", r.Store().RouterIDs(), []string{"a", "b"})
}

func TestReconcilerCascadingRemoval(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.OnMessage(domain.Snapshot{
		Routers: []string{"a", "b", "c"},
		Links:   []domain.LinkEntry{link("ab", "a", "b"), link("bc", "b", "c")},
	})

	d := r.OnMessage(routers())
	if !d.Changed() {
		t.Error("expected change")
	}
	if n, l := r.Store().Len(); n != 0 || l != 0 {
		t.Errorf("store = %d routers, %d links; want empty", n, l)
	}
}

func TestReconcilerWithinMessageOrdering(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.OnMessage(routers("X", "Y", "Z"))

	t.Run("link to removed router is not retained", func(t *testing.T) {
		d := r.OnMessage(domain.Snapshot{
			Routers: []string{"Y", "Z"},
			Links:   []domain.LinkEntry{link("xy", "X", "Y"), link("yz", "Y", "Z")},
		})
		assertIDs(t, "links", r.Store().LinkIDs(), []string{"yz"})
		assertIDs(t, "dropped", d.LinksDropped, []string{"xy"})
	})

	t.Run("existing link to removed router is cascaded", func(t *testing.T) {
		r.OnMessage(routers("Y", "Z", "W"))
		r.OnMessage(links(link("yz", "Y", "Z"), link("wz", "W", "Z")))

		d := r.OnMessage(domain.Snapshot{
			Routers: []string{"Y", "Z"},
			Links:   []domain.LinkEntry{link("yz", "Y", "Z"), link("wz", "W", "Z")},
		})
		assertIDs(t, "links", r.Store().LinkIDs(), []string{"yz"})
		assertIDs(t, "removed", d.LinksRemoved, []string{"wz"})
		assertIDs(t, "dropped", d.LinksDropped, []string{"wz"})
	})

	t.Run("link to router introduced by same message resolves", func(t *testing.T) {
		d := r.OnMessage(domain.Snapshot{
			Routers: []string{"Y", "Z", "N"},
			Links:   []domain.LinkEntry{link("yz", "Y", "Z"), link("zn", "Z", "N")},
		})
		assertIDs(t, "added", d.LinksAdded, []string{"zn"})
	})
}

func TestReconcilerAbsentAspectsUntouched(t *testing.T) {
	r, reseeder, _ := newTestReconciler(t)
	r.OnMessage(domain.Snapshot{
		Routers: []string{"a", "b"},
		Links:   []domain.LinkEntry{link("ab", "a", "b")},
	})

	d := r.OnMessage(domain.Snapshot{Source: "heartbeat"})
	if d.Changed() {
		t.Errorf("empty snapshot changed the store: %+v", d)
	}
	assertIDs(t, "links", r.Store().LinkIDs(), []string{"ab"})
	if reseeder.calls != 1 {
		t.Errorf("reseeds = %d, want 1", reseeder.calls)
	}
}

func TestReconcilerForwardsMetrics(t *testing.T) {
	r, reseeder, sink := newTestReconciler(t)

	d := r.OnMessage(domain.Snapshot{Source: "fabric-1", Metrics: json.RawMessage(`{"pps":12}`)})
	if d.Changed() {
		t.Error("metrics must not change the topology")
	}
	if reseeder.calls != 0 {
		t.Error("metrics must not reseed")
	}
	if len(sink.samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(sink.samples))
	}
	if sink.samples[0].source != "fabric-1" || sink.samples[0].metrics != `{"pps":12}` {
		t.Errorf("unexpected sample %+v", sink.samples[0])
	}

	r.OnMessage(routers("a"))
	if len(sink.samples) != 1 {
		t.Error("snapshot without metrics must not reach the sink")
	}
}

func TestReconcilerPublishesEvents(t *testing.T) {
	bus := NewEventBus()
	events := make(chan Event, 32)
	bus.Subscribe(events)

	r := NewReconciler(topology.New(), nil, WithEventBus(bus))
	r.OnMessage(domain.Snapshot{
		Routers: []string{"a", "b"},
		Links:   []domain.LinkEntry{link("ab", "a", "b"), link("ax", "a", "x")},
	})

	var got []EventType
	var linkAdded EntityPayload
	for len(events) > 0 {
		ev := <-events
		got = append(got, ev.Type)
		if ev.Type == EventLinkAdded {
			linkAdded = ev.Payload.(EntityPayload)
		}
	}

	want := []EventType{EventRouterAdded, EventRouterAdded, EventLinkAdded, EventLinksDropped, EventSnapshotApplied}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if linkAdded != (EntityPayload{ID: "ab", Source: "a", Target: "b"}) {
		t.Errorf("link payload = %+v", linkAdded)
	}
}

func TestReconcilerRecordsMetrics(t *testing.T) {
	c, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	r := NewReconciler(topology.New(), nil, WithCollector(c))

	r.OnMessage(routers("a", "b"))
	r.OnMessage(routers("a", "b"))
	r.OnMessage(links(link("ab", "a", "b"), link("ac", "a", "c")))

	if got := testutil.ToFloat64(c.Snapshots.WithLabelValues("changed")); got != 2 {
		t.Errorf("changed snapshots = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Snapshots.WithLabelValues("unchanged")); got != 1 {
		t.Errorf("unchanged snapshots = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.LinksDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Links); got != 1 {
		t.Errorf("links gauge = %v, want 1", got)
	}
}

func TestEventBusSkipsSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	slow := make(chan Event)
	fast := make(chan Event, 1)
	bus.Subscribe(slow)
	bus.Subscribe(fast)

	bus.Publish(Event{Type: EventFrame})

	select {
	case ev := <-fast:
		if ev.Type != EventFrame {
			t.Errorf("type = %s", ev.Type)
		}
	default:
		t.Error("fast subscriber did not receive event")
	}
}
