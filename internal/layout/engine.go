package layout

import (
	"github.com/charmbracelet/log"

	"fabricviz/internal/domain"
)

// Source is the read side of the topology store
type Source interface {
	Routers() []*domain.Router
	Links() []*domain.Link
}

// Observer receives per-tick statistics
type Observer interface {
	ObserveTick(alpha float64, moved bool)
	ObserveReseed(nodes, links int)
}

// TickInfo describes one completed tick
type TickInfo struct {
	Tick     uint64
	Alpha    float64
	Moved    bool
	Reseeded bool
}

// Engine drives a Simulation from a topology source.
//
// Reseed is called by the reconciler after a structural change. With
// coalescing on, the new topology is handed to the simulation once, at the
// start of the next tick, no matter how many snapshots arrived in between.
type Engine struct {
	sim      *Simulation
	src      Source
	coalesce bool
	pending  bool
	reseeds  uint64

	callbacks []func(TickInfo)
	observer  Observer
	logger    *log.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCoalescing sets whether re-seeds are deferred to the next tick
func WithCoalescing(on bool) EngineOption {
	return func(e *Engine) {
		e.coalesce = on
	}
}

// WithObserver attaches a tick observer
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLogger sets the engine logger
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine. The first tick seeds the simulation from src.
func NewEngine(sim *Simulation, src Source, opts ...EngineOption) *Engine {
	e := &Engine{
		sim:      sim,
		src:      src,
		coalesce: true,
		pending:  true,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Simulation returns the underlying simulation
func (e *Engine) Simulation() *Simulation {
	return e.sim
}

// OnTick registers a callback invoked after every tick
func (e *Engine) OnTick(fn func(TickInfo)) {
	e.callbacks = append(e.callbacks, fn)
}

// Reseed tells the engine the topology changed structurally
func (e *Engine) Reseed() {
	if e.coalesce {
		e.pending = true
		return
	}
	e.apply()
}

// Pending reports whether a re-seed is waiting for the next tick
func (e *Engine) Pending() bool {
	return e.pending
}

// Reseeds returns how many times the simulation was re-seeded
func (e *Engine) Reseeds() uint64 {
	return e.reseeds
}

// Tick applies any pending re-seed, advances the simulation one step and
// runs the tick callbacks.
func (e *Engine) Tick() TickInfo {
	reseeded := e.pending
	if e.pending {
		e.apply()
	}

	moved := e.sim.Step()
	info := TickInfo{
		Tick:     e.sim.Ticks(),
		Alpha:    e.sim.Alpha(),
		Moved:    moved,
		Reseeded: reseeded,
	}

	if e.observer != nil {
		e.observer.ObserveTick(info.Alpha, moved)
	}
	for _, fn := range e.callbacks {
		fn(info)
	}
	return info
}

func (e *Engine) apply() {
	e.pending = false
	e.reseeds++

	e.sim.SetTopology(e.src.Routers(), e.src.Links())
	e.sim.Restart()

	nodes, links := e.sim.Len()
	e.logger.Debug("layout re-seeded", "routers", nodes, "links", links)
	if e.observer != nil {
		e.observer.ObserveReseed(nodes, links)
	}
}
