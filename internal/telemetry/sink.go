// Package telemetry records the metrics payloads carried by snapshots.
//
// The Sink accepts payloads from the runtime goroutine without blocking and
// writes them to a SampleRepository on its own goroutine. When the queue is
// full the payload is dropped and counted.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"fabricviz/internal/domain"
	"fabricviz/internal/observability"
	"fabricviz/internal/repository"
)

// ErrClosed is returned by reads after Close
var ErrClosed = errors.New("telemetry sink closed")

const (
	defaultBuffer = 256
	pruneEvery    = 64
	writeTimeout  = 5 * time.Second
)

// Sink writes samples asynchronously
type Sink struct {
	repo      repository.SampleRepository
	retain    int
	logger    *log.Logger
	collector *observability.Collector

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

// item is a queued sample, or a flush marker when ack is set
type item struct {
	sample domain.Sample
	ack    chan struct{}
}

// Option configures a Sink
type Option func(*Sink)

// WithRetain keeps at most n samples; zero keeps everything
func WithRetain(n int) Option {
	return func(s *Sink) {
		s.retain = n
	}
}

// WithBuffer sets the queue depth
func WithBuffer(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.queue = make(chan item, n)
		}
	}
}

// WithLogger sets the sink logger
func WithLogger(l *log.Logger) Option {
	return func(s *Sink) {
		s.logger = l
	}
}

// WithCollector records stored and dropped samples
func WithCollector(c *observability.Collector) Option {
	return func(s *Sink) {
		s.collector = c
	}
}

// NewSink starts a sink writing to repo
func NewSink(repo repository.SampleRepository, opts ...Option) *Sink {
	s := &Sink{
		repo:   repo,
		logger: log.Default(),
		queue:  make(chan item, defaultBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Observe queues one metrics payload. It never blocks.
func (s *Sink) Observe(source string, metrics json.RawMessage) {
	sample := domain.Sample{
		Source:     source,
		Metrics:    append(json.RawMessage(nil), metrics...),
		ReceivedAt: time.Now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.collector.ObserveTelemetry(false)
		return
	}

	select {
	case s.queue <- item{sample: sample}:
	default:
		s.logger.Warn("telemetry queue full, dropping sample", "source", source)
		s.collector.ObserveTelemetry(false)
	}
}

// Recent returns up to limit stored samples, newest first
func (s *Sink) Recent(ctx context.Context, limit int) ([]domain.Sample, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return s.repo.RecentSamples(ctx, limit)
}

// Flush blocks until every sample queued before the call has been written,
// or ctx is done.
func (s *Sink) Flush(ctx context.Context) error {
	ack := make(chan struct{})

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.queue <- item{ack: ack}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting samples, drains the queue and closes the repository
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.repo.Close()
}

func (s *Sink) run() {
	defer close(s.done)

	var written int
	for it := range s.queue {
		if it.ack != nil {
			close(it.ack)
			continue
		}

		sample := it.sample
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.repo.InsertSample(ctx, &sample)
		if err == nil && s.retain > 0 && (written+1)%pruneEvery == 0 {
			if _, perr := s.repo.PruneSamples(ctx, s.retain); perr != nil {
				s.logger.Warn("failed to prune telemetry", "err", perr)
			}
		}
		cancel()

		if err != nil {
			s.logger.Warn("failed to store telemetry sample", "source", sample.Source, "err", err)
			s.collector.ObserveTelemetry(false)
			continue
		}
		written++
		s.collector.ObserveTelemetry(true)
	}

	if s.retain > 0 && written > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if _, err := s.repo.PruneSamples(ctx, s.retain); err != nil {
			s.logger.Warn("failed to prune telemetry", "err", err)
		}
	}
}
