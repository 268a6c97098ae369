// Package hub streams runtime events to browsers over Server-Sent Events.
//
// Every broadcast is encoded once and fanned out to all clients. Frame events
// are state, not history: each client holds at most one undelivered frame and
// a newer frame replaces it. Other events queue per client and are skipped
// for clients that fall behind.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// FrameEvent is the SSE event name whose messages replace each other per client
const FrameEvent = "frame"

// Named is implemented by events that carry their own SSE event name
type Named interface {
	EventName() string
}

// Message is one encoded SSE message
type Message struct {
	ID    uint64
	Event string
	Data  []byte
}

// WriteTo writes m in text/event-stream framing. A zero ID is omitted.
func (m Message) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if m.ID != 0 {
		fmt.Fprintf(&b, "id: %d\n", m.ID)
	}
	if m.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", m.Event)
	}
	fmt.Fprintf(&b, "data: %s\n\n", m.Data)

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Encode marshals event into a message without an id
func Encode(event any) (Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Data: data}
	if n, ok := event.(Named); ok {
		msg.Event = n.EventName()
	}
	return msg, nil
}

type client struct {
	id      string
	events  chan Message
	frame   chan Message
	dropped int
}

// offer queues msg for the client and reports whether it was accepted
func (c *client) offer(msg Message) bool {
	if msg.Event == FrameEvent {
		select {
		case <-c.frame:
		default:
		}
		c.frame <- msg
		return true
	}
	select {
	case c.events <- msg:
		return true
	default:
		c.dropped++
		return false
	}
}

// Option configures a Hub
type Option func(*Hub)

// WithGreeting sets a function whose result is sent to every client right
// after it connects, typically the current frame.
func WithGreeting(fn func() any) Option {
	return func(h *Hub) {
		h.greeting = fn
	}
}

// WithKeepalive sets the comment interval that keeps idle streams open
func WithKeepalive(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.keepalive = d
		}
	}
}

// Hub tracks connected clients and fans broadcasts out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	seq     uint64

	register   chan *client
	unregister chan *client
	broadcast  chan Message
	done       chan struct{}

	greeting  func() any
	keepalive time.Duration
	logger    *log.Logger
}

// New creates a hub; call Run to start it
func New(logger *log.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		keepalive:  30 * time.Second,
		logger:     logger.WithPrefix("sse"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled, then closes every stream
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.events)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "id", c.id, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "id", c.id, "dropped", c.dropped, "total", n)

		case msg := <-h.broadcast:
			h.seq++
			msg.ID = h.seq

			h.mu.RLock()
			for c := range h.clients {
				if !c.offer(msg) {
					h.logger.Debug("client behind, skipping event", "id", c.id, "event", msg.Event)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast encodes event and queues it for every client.
// It never blocks; when the hub is saturated the event is dropped.
func (h *Hub) Broadcast(event any) {
	msg, err := Encode(event)
	if err != nil {
		h.logger.Warn("failed to encode event", "err", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "event", msg.Event)
	}
}

// Forward broadcasts every event received on events until ctx is done
func Forward[E any](ctx context.Context, h *Hub, events <-chan E) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			h.Broadcast(ev)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events to one client until it disconnects or the hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		events: make(chan Message, 64),
		frame:  make(chan Message, 1),
	}

	select {
	case h.register <- c:
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: 2000\n\n")
	if h.greeting != nil {
		if msg, err := Encode(h.greeting()); err == nil {
			msg.WriteTo(w)
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		var msg Message
		select {
		case m, ok := <-c.events:
			if !ok {
				return
			}
			msg = m
		case msg = <-c.frame:
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			continue
		case <-r.Context().Done():
			return
		}

		if _, err := msg.WriteTo(w); err != nil {
			return
		}
		flusher.Flush()
	}
}
