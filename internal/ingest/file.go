package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"

	"fabricviz/internal/codec"
	"fabricviz/internal/observability"
	"fabricviz/internal/watcher"
)

// FileSource replays the snapshots in a JSON or YAML file, in order. With
// Watch set the file is replayed again whenever it changes.
type FileSource struct {
	Path     string
	Watch    bool
	Debounce time.Duration

	pipeline
}

// NewFileSource creates a file source
func NewFileSource(path string, watch bool, logger *log.Logger, c *observability.Collector) *FileSource {
	return &FileSource{
		Path:     path,
		Watch:    watch,
		pipeline: newPipeline("file", logger, c),
	}
}

// Name implements Source
func (s *FileSource) Name() string {
	return s.name
}

// Run replays the file, then keeps replaying it on change if watching
func (s *FileSource) Run(ctx context.Context, sub Submitter) error {
	if err := s.replay(ctx, sub); err != nil {
		return err
	}
	if !s.Watch {
		return nil
	}

	w := watcher.New(s.Path, watcher.WithDebounce(s.Debounce), watcher.WithLogger(s.logger))
	return w.Watch(ctx, func() {
		if err := s.replay(ctx, sub); err != nil {
			s.logger.Warn("replay failed", "path", s.Path, "err", err)
		}
	})
}

func (s *FileSource) replay(ctx context.Context, sub Submitter) error {
	ctx, span := observability.Tracer().Start(ctx, "ingest.file")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.path", s.Path))

	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	snaps, err := codec.DecoderForPath(s.Path).Decode(f)
	s.collector.ObserveIngest(s.name, err)
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.Path, err)
	}

	for _, snap := range snaps {
		if err := s.submit(ctx, sub, snap); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}
	s.logger.Info("replayed snapshots", "path", s.Path, "count", len(snaps))
	return nil
}
