// Package ingest feeds fabric snapshots into the runtime.
//
// A Source owns its transport connection and runs on its own goroutine. Each
// received message is decoded, traced and handed to a Submitter; malformed
// messages are logged and skipped so they never reach reconciliation.
// Transport failures are retried with exponential backoff until the context
// is cancelled.
package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fabricviz/internal/codec"
	"fabricviz/internal/domain"
	"fabricviz/internal/observability"
)

// Submitter accepts decoded snapshots, in order
type Submitter interface {
	Submit(ctx context.Context, snap domain.Snapshot) error
}

// Source is a snapshot transport
type Source interface {
	Name() string
	Run(ctx context.Context, sub Submitter) error
}

// Backoff bounds reconnect delays
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b Backoff) policy() *backoff.ExponentialBackOff {
	p := backoff.NewExponentialBackOff()
	if b.Initial > 0 {
		p.InitialInterval = b.Initial
	}
	if b.Max > 0 {
		p.MaxInterval = b.Max
	}
	p.Reset()
	return p
}

// pipeline is the decode/trace/submit path shared by every source
type pipeline struct {
	name      string
	logger    *log.Logger
	collector *observability.Collector
}

func newPipeline(name string, logger *log.Logger, c *observability.Collector) pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return pipeline{name: name, logger: logger.WithPrefix("ingest"), collector: c}
}

// deliver decodes one message and submits it. Only submit errors are
// returned; decode errors are counted and skipped.
func (p pipeline) deliver(ctx context.Context, sub Submitter, data []byte) error {
	ctx, span := observability.Tracer().Start(ctx, "ingest.snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.source", p.name),
		attribute.Int("ingest.bytes", len(data)),
	)

	snap, err := codec.DecodeSnapshot(data)
	p.collector.ObserveIngest(p.name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		p.logger.Warn("skipping malformed snapshot", "source", p.name, "err", err)
		return nil
	}

	return p.submit(ctx, sub, snap)
}

func (p pipeline) submit(ctx context.Context, sub Submitter, snap domain.Snapshot) error {
	if snap.Source == "" {
		snap.Source = p.name
	}
	return sub.Submit(ctx, snap)
}

// pause waits before reconnecting after a lost connection. The backoff only
// restarts when the connection received at least one message, so a server
// that accepts and drops connections is retried with growing delays.
func (p pipeline) pause(ctx context.Context, bo *backoff.ExponentialBackOff, received int) error {
	if received > 0 {
		bo.Reset()
	}
	delay := bo.NextBackOff()
	p.logger.Info("reconnecting", "source", p.name, "received", received, "retry", delay)
	p.collector.ObserveReconnect(p.name)
	return wait(ctx, delay)
}

// wait sleeps for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
