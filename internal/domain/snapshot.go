package domain

import "encoding/json"

// Snapshot is one authoritative membership update from the fabric.
//
// A nil Routers or Links slice means the aspect was absent from the message
// and must not be touched. A non-nil slice, including an empty one, is the
// complete membership for that aspect.
type Snapshot struct {
	Routers []string        `json:"routers,omitempty"`
	Links   []LinkEntry     `json:"links,omitempty"`
	Source  string          `json:"source,omitempty"`
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// HasRouters reports whether the snapshot carries router membership
func (s Snapshot) HasRouters() bool {
	return s.Routers != nil
}

// HasLinks reports whether the snapshot carries link membership
func (s Snapshot) HasLinks() bool {
	return s.Links != nil
}

// HasMetrics reports whether the snapshot carries a metrics payload
func (s Snapshot) HasMetrics() bool {
	return len(s.Metrics) > 0 && string(s.Metrics) != "null"
}

// UnmarshalJSON keeps the absent/empty distinction for both aspects.
// encoding/json already leaves absent fields nil; an explicit null is
// treated as absent too.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Routers json.RawMessage `json:"routers"`
		Links   json.RawMessage `json:"links"`
		Source  string          `json:"source"`
		Metrics json.RawMessage `json:"metrics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Snapshot{Source: raw.Source, Metrics: raw.Metrics}

	if present(raw.Routers) {
		s.Routers = []string{}
		if err := json.Unmarshal(raw.Routers, &s.Routers); err != nil {
			return err
		}
	}
	if present(raw.Links) {
		s.Links = []LinkEntry{}
		if err := json.Unmarshal(raw.Links, &s.Links); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes empty-but-present aspects as [] rather than omitting them
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if s.HasRouters() {
		out["routers"] = s.Routers
	}
	if s.HasLinks() {
		out["links"] = s.Links
	}
	if s.Source != "" {
		out["source"] = s.Source
	}
	if s.HasMetrics() {
		out["metrics"] = s.Metrics
	}
	return json.Marshal(out)
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
