package domain

import (
	"encoding/json"
	"time"
)

// Sample is one metrics payload recorded from a snapshot.
// The payload is kept as received; fabricviz never interprets it.
type Sample struct {
	ID         int64           `json:"id"`
	Source     string          `json:"source,omitempty"`
	Metrics    json.RawMessage `json:"metrics"`
	ReceivedAt time.Time       `json:"received_at"`
}
