package service

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"fabricviz/internal/domain"
	"fabricviz/internal/observability"
	"fabricviz/internal/topology"
)

// Reseeder is notified after a structural change to the topology
type Reseeder interface {
	Reseed()
}

// TelemetrySink receives metrics payloads carried by snapshots
type TelemetrySink interface {
	Observe(source string, metrics json.RawMessage)
}

// Reconciler keeps the topology store consistent with incoming snapshots
type Reconciler struct {
	store     *topology.Store
	reseeder  Reseeder
	sink      TelemetrySink
	bus       *EventBus
	collector *observability.Collector
	logger    *log.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithTelemetry forwards snapshot metrics to sink
func WithTelemetry(sink TelemetrySink) Option {
	return func(r *Reconciler) {
		r.sink = sink
	}
}

// WithEventBus publishes topology changes on bus
func WithEventBus(bus *EventBus) Option {
	return func(r *Reconciler) {
		r.bus = bus
	}
}

// WithCollector records reconciliation metrics
func WithCollector(c *observability.Collector) Option {
	return func(r *Reconciler) {
		r.collector = c
	}
}

// WithLogger sets the reconciler logger
func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// NewReconciler creates a reconciler over store. reseeder may be nil.
func NewReconciler(store *topology.Store, reseeder Reseeder, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		reseeder: reseeder,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the reconciled topology
func (r *Reconciler) Store() *topology.Store {
	return r.store
}

// OnMessage applies one snapshot. Routers are reconciled to completion,
// cascade included, before links are looked at, so a link naming a router
// removed by the same message is never retained.
func (r *Reconciler) OnMessage(snap domain.Snapshot) topology.Delta {
	start := time.Now()

	var delta topology.Delta
	if snap.HasRouters() {
		delta = delta.Merge(r.store.ReconcileRouters(snap.Routers))
	}
	if snap.HasLinks() {
		delta = delta.Merge(r.store.ReconcileLinks(snap.Links))
	}
	if snap.HasMetrics() && r.sink != nil {
		r.sink.Observe(snap.Source, snap.Metrics)
	}

	changed := delta.Changed()
	if changed && r.reseeder != nil {
		r.reseeder.Reseed()
	}

	routers, links := r.store.Len()
	r.collector.ObserveSnapshot(changed, time.Since(start))
	r.collector.ObserveChanges(len(delta.RoutersAdded), len(delta.RoutersRemoved),
		len(delta.LinksAdded), len(delta.LinksRemoved), len(delta.LinksDropped))
	r.collector.SetTopologySize(routers, links)

	if len(delta.LinksDropped) > 0 {
		r.logger.Debug("links dropped, endpoint missing", "source", snap.Source, "ids", delta.LinksDropped)
	}
	if changed {
		r.logger.Debug("snapshot applied",
			"source", snap.Source,
			"routers", routers, "links", links,
			"+routers", len(delta.RoutersAdded), "-routers", len(delta.RoutersRemoved),
			"+links", len(delta.LinksAdded), "-links", len(delta.LinksRemoved))
	}

	r.publish(snap.Source, delta, routers, links)
	return delta
}

func (r *Reconciler) publish(source string, delta topology.Delta, routers, links int) {
	if r.bus == nil {
		return
	}
	for _, id := range delta.RoutersRemoved {
		r.bus.Publish(Event{Type: EventRouterRemoved, Payload: EntityPayload{ID: id}})
	}
	for _, id := range delta.RoutersAdded {
		r.bus.Publish(Event{Type: EventRouterAdded, Payload: EntityPayload{ID: id}})
	}
	for _, id := range delta.LinksRemoved {
		r.bus.Publish(Event{Type: EventLinkRemoved, Payload: EntityPayload{ID: id}})
	}
	for _, id := range delta.LinksAdded {
		p := EntityPayload{ID: id}
		if l, ok := r.store.Link(id); ok {
			p.Source, p.Target = l.Source, l.Target
		}
		r.bus.Publish(Event{Type: EventLinkAdded, Payload: p})
	}
	if len(delta.LinksDropped) > 0 {
		r.bus.Publish(Event{Type: EventLinksDropped, Payload: delta.LinksDropped})
	}
	r.bus.Publish(Event{Type: EventSnapshotApplied, Payload: SnapshotPayload{
		Source:  source,
		Changed: delta.Changed(),
		Routers: routers,
		Links:   links,
	}})
}
