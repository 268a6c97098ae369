// Package app assembles the topology, reconciler, layout and presenter into
// one Runtime and drives them from a single goroutine.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"fabricviz/internal/domain"
	"fabricviz/internal/layout"
	"fabricviz/internal/observability"
	"fabricviz/internal/presenter"
	"fabricviz/internal/service"
	"fabricviz/internal/topology"
)

// ErrStopped is returned by Submit once the runtime loop has exited
var ErrStopped = errors.New("runtime stopped")

// Runtime owns one topology and everything derived from it. Snapshots and
// ticks are processed on the goroutine running Run, so the store is never
// observed halfway through a reconciliation.
type Runtime struct {
	id string

	store      *topology.Store
	reconciler *service.Reconciler
	engine     *layout.Engine
	presenter  *presenter.Presenter
	scene      *presenter.Scene

	inbox          chan domain.Snapshot
	done           chan struct{}
	tickEvery      time.Duration
	broadcastEvery uint64

	bus       *service.EventBus
	sink      service.TelemetrySink
	collector *observability.Collector
	logger    *log.Logger
	coalesce  bool
	inboxSize int
}

// Option configures a Runtime
type Option func(*Runtime)

// WithTickRate sets how many layout ticks run per second
func WithTickRate(hz int) Option {
	return func(r *Runtime) {
		if hz > 0 {
			r.tickEvery = time.Second / time.Duration(hz)
		}
	}
}

// WithBroadcastEvery publishes a frame event every n ticks while the layout moves
func WithBroadcastEvery(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.broadcastEvery = uint64(n)
		}
	}
}

// WithCoalescing sets whether re-seeds wait for the next tick
func WithCoalescing(on bool) Option {
	return func(r *Runtime) {
		r.coalesce = on
	}
}

// WithEventBus publishes topology and frame events on bus
func WithEventBus(bus *service.EventBus) Option {
	return func(r *Runtime) {
		r.bus = bus
	}
}

// WithTelemetry forwards snapshot metrics to sink
func WithTelemetry(sink service.TelemetrySink) Option {
	return func(r *Runtime) {
		r.sink = sink
	}
}

// WithCollector records metrics for the reconciler and layout
func WithCollector(c *observability.Collector) Option {
	return func(r *Runtime) {
		r.collector = c
	}
}

// WithLogger sets the runtime logger
func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithInboxSize sets the snapshot queue depth
func WithInboxSize(n int) Option {
	return func(r *Runtime) {
		if n >= 0 {
			r.inboxSize = n
		}
	}
}

// New creates a runtime. New routers spawn at the layout center.
func New(cfg layout.Config, opts ...Option) *Runtime {
	r := &Runtime{
		id:             uuid.NewString(),
		done:           make(chan struct{}),
		tickEvery:      time.Second / 60,
		broadcastEvery: 2,
		coalesce:       true,
		inboxSize:      64,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	sim := layout.NewSimulation(cfg)
	r.store = topology.New(topology.WithSpawn(sim.Config().Center()))

	engineOpts := []layout.EngineOption{
		layout.WithCoalescing(r.coalesce),
		layout.WithLogger(r.logger.WithPrefix("layout")),
	}
	if r.collector != nil {
		engineOpts = append(engineOpts, layout.WithObserver(r.collector))
	}
	r.engine = layout.NewEngine(sim, r.store, engineOpts...)

	recOpts := []service.Option{
		service.WithLogger(r.logger.WithPrefix("reconcile")),
		service.WithCollector(r.collector),
		service.WithEventBus(r.bus),
	}
	if r.sink != nil {
		recOpts = append(recOpts, service.WithTelemetry(r.sink))
	}
	r.reconciler = service.NewReconciler(r.store, r.engine, recOpts...)

	r.scene = presenter.NewScene()
	r.presenter = presenter.New(r.scene, r.store)
	r.inbox = make(chan domain.Snapshot, r.inboxSize)

	return r
}

// ID returns the runtime instance id
func (r *Runtime) ID() string {
	return r.id
}

// Store returns the topology. Only safe to read from the Run goroutine or
// when Run is not active.
func (r *Runtime) Store() *topology.Store {
	return r.store
}

// Engine returns the layout engine
func (r *Runtime) Engine() *layout.Engine {
	return r.engine
}

// Frame returns the last published frame; safe from any goroutine
func (r *Runtime) Frame() *domain.Frame {
	return r.scene.Frame()
}

// Submit queues snap for the loop. It blocks until the snapshot is queued,
// ctx is done, or the runtime has stopped.
func (r *Runtime) Submit(ctx context.Context, snap domain.Snapshot) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	select {
	case r.inbox <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// Apply reconciles snap immediately. It must not be called while Run is active.
func (r *Runtime) Apply(snap domain.Snapshot) topology.Delta {
	return r.reconciler.OnMessage(snap)
}

// Step runs one layout tick, renders it and publishes the frame.
// It must not be called while Run is active.
func (r *Runtime) Step() *domain.Frame {
	info := r.engine.Tick()
	r.presenter.Render()
	frame := r.scene.Publish(info.Tick, info.Alpha)

	if r.bus != nil && (info.Reseeded || (info.Moved && info.Tick%r.broadcastEvery == 0)) {
		r.bus.Publish(service.Event{Type: service.EventFrame, Payload: frame})
	}
	return frame
}

// Settle steps until the layout cools or max ticks have run
func (r *Runtime) Settle(max int) *domain.Frame {
	frame := r.Step()
	for i := 1; i < max && (r.engine.Pending() || r.engine.Simulation().Active()); i++ {
		frame = r.Step()
	}
	return frame
}

// Run processes snapshots and ticks until ctx is cancelled.
// A runtime can be run once.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.done)

	ticker := time.NewTicker(r.tickEvery)
	defer ticker.Stop()

	r.logger.Info("runtime started", "id", r.id, "tick", r.tickEvery)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runtime stopped", "id", r.id)
			return ctx.Err()

		case snap := <-r.inbox:
			r.Apply(snap)

		case <-ticker.C:
			r.Step()
		}
	}
}
