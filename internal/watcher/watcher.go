// Package watcher reports content changes to a single file.
//
// The parent directory is watched rather than the file itself so that
// editors and atomic rename-into-place writers are seen. Bursts of events are
// debounced, and a change is only reported when the file's content digest
// differs from the last one reported.
package watcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long the file must be quiet before a change is reported
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches one file
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *log.Logger
	digest   [sha256.Size]byte
}

// New creates a watcher for path
func New(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		debounce: 500 * time.Millisecond,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch calls onChange, on the calling goroutine, each time the file settles
// with new content. The content present when Watch starts is the baseline.
// It blocks until ctx is cancelled or the watch cannot be established.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dir, name := filepath.Split(w.path)
	if dir == "" {
		dir = "."
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.digest, _ = w.sum()
	w.logger.Info("watching for changes", "path", w.path)

	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			settle.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-settle.C:
			sum, err := w.sum()
			if err != nil {
				w.logger.Warn("read watched file", "path", w.path, "err", err)
				continue
			}
			if sum == w.digest {
				w.logger.Debug("file touched without content change", "path", w.path)
				continue
			}
			w.digest = sum
			w.logger.Debug("file changed", "path", w.path)
			onChange()
		}
	}
}

func (w *Watcher) sum() ([sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
