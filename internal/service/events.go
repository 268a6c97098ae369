package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventRouterAdded     EventType = "router_added"
	EventRouterRemoved   EventType = "router_removed"
	EventLinkAdded       EventType = "link_added"
	EventLinkRemoved     EventType = "link_removed"
	EventLinksDropped    EventType = "links_dropped"
	EventFrame           EventType = "frame"
	EventSnapshotApplied EventType = "snapshot_applied"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventName names the event on the SSE stream
func (e Event) EventName() string {
	return string(e.Type)
}

// EntityPayload identifies the router or link an event is about.
// Source and Target are set for added links only.
type EntityPayload struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// SnapshotPayload summarises one applied snapshot
type SnapshotPayload struct {
	Source  string `json:"source,omitempty"`
	Changed bool   `json:"changed"`
	Routers int    `json:"routers"`
	Links   int    `json:"links"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
