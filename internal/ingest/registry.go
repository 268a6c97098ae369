package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Source states reported by the registry
const (
	StatePending = "pending"
	StateRunning = "running"
	StateStopped = "stopped"
	StateFailed  = "failed"
)

// SourceInfo provides read-only information about a registered source
type SourceInfo struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at,omitzero"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

type entry struct {
	source Source
	info   SourceInfo
}

// Registry supervises the ingest sources and tracks their lifecycle
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		byName: make(map[string]*entry),
		logger: logger.WithPrefix("ingest"),
	}
}

// Register adds a source. Names must be unique and sources cannot be added
// after Start.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("registry already started")
	}
	name := src.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("source %s already registered", name)
	}

	e := &entry{source: src, info: SourceInfo{Name: name, State: StatePending}}
	r.entries = append(r.entries, e)
	r.byName[name] = e
	r.logger.Debug("registered source", "name", name)
	return nil
}

// Start runs every registered source on its own goroutine, feeding sub
func (r *Registry) Start(ctx context.Context, sub Submitter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("registry already started")
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, e := range r.entries {
		e.info.State = StateRunning
		e.info.StartedAt = time.Now()

		r.wg.Add(1)
		go r.run(ctx, e, sub)
	}
	return nil
}

func (r *Registry) run(ctx context.Context, e *entry, sub Submitter) {
	defer r.wg.Done()

	err := e.source.Run(ctx, sub)

	r.mu.Lock()
	defer r.mu.Unlock()
	e.info.StoppedAt = time.Now()
	if err != nil && !errors.Is(err, context.Canceled) {
		e.info.State = StateFailed
		e.info.LastError = err.Error()
		r.logger.Error("source failed", "name", e.info.Name, "err", err)
		return
	}
	e.info.State = StateStopped
	r.logger.Info("source stopped", "name", e.info.Name)
}

// Stop cancels every source and waits for them to return
func (r *Registry) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// List returns source information in registration order
func (r *Registry) List() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SourceInfo, len(r.entries))
	for i, e := range r.entries {
		infos[i] = e.info
	}
	return infos
}
