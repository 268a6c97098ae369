package ingest

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"fabricviz/internal/observability"
)

// WebSocketSource reads one snapshot per websocket message
type WebSocketSource struct {
	URL string
	// Subscribe, when set, is sent as a text message after every connect.
	Subscribe string
	Backoff   Backoff

	pipeline
}

// NewWebSocketSource creates a websocket source
func NewWebSocketSource(url, subscribe string, bo Backoff, logger *log.Logger, c *observability.Collector) *WebSocketSource {
	return &WebSocketSource{
		URL:       url,
		Subscribe: subscribe,
		Backoff:   bo,
		pipeline:  newPipeline("websocket", logger, c),
	}
}

// Name implements Source
func (s *WebSocketSource) Name() string {
	return s.name
}

// Run connects, reads until the connection fails, and reconnects until ctx
// is cancelled.
func (s *WebSocketSource) Run(ctx context.Context, sub Submitter) error {
	bo := s.Backoff.policy()

	for {
		s.logger.Info("connecting", "url", s.URL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			s.logger.Warn("dial failed", "err", err, "retry", delay)
			s.collector.ObserveReconnect(s.name)
			if err := wait(ctx, delay); err != nil {
				return err
			}
			continue
		}
		received, err := s.read(ctx, conn, sub)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if err := s.pause(ctx, bo, received); err != nil {
			return err
		}
	}
}

// read consumes messages from conn and returns how many arrived. A nil error
// means the connection was lost and should be redialled.
func (s *WebSocketSource) read(ctx context.Context, conn *websocket.Conn, sub Submitter) (int, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	if s.Subscribe != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(s.Subscribe)); err != nil {
			s.logger.Warn("subscribe failed", "err", err)
			return 0, nil
		}
	}

	received := 0
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("read failed", "err", err, "received", received)
			}
			return received, nil
		}
		received++
		if err := s.deliver(ctx, sub, message); err != nil {
			return received, fmt.Errorf("submit: %w", err)
		}
	}
}
