package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"fabricviz/internal/domain"
)

// YAMLCodec decodes YAML snapshot streams. Each document is one snapshot.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlSnapshot keeps the raw nodes so that a missing or null aspect can be
// told apart from an empty list.
type yamlSnapshot struct {
	Routers yaml.Node `yaml:"routers"`
	Links   yaml.Node `yaml:"links"`
	Source  string    `yaml:"source"`
	Metrics yaml.Node `yaml:"metrics"`
}

// Decode reads every document in r
func (c *YAMLCodec) Decode(r io.Reader) ([]domain.Snapshot, error) {
	decoder := yaml.NewDecoder(r)

	var snaps []domain.Snapshot
	for {
		var ys yamlSnapshot
		if err := decoder.Decode(&ys); err != nil {
			if errors.Is(err, io.EOF) {
				return snaps, nil
			}
			return nil, fmt.Errorf("failed to parse YAML snapshot %d: %w", len(snaps)+1, err)
		}

		snap, err := ys.toSnapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", len(snaps)+1, err)
		}
		snaps = append(snaps, snap)
	}
}

func (ys *yamlSnapshot) toSnapshot() (domain.Snapshot, error) {
	snap := domain.Snapshot{Source: ys.Source}

	hasRouters, err := present(&ys.Routers, "routers")
	if err != nil {
		return snap, err
	}
	hasLinks, err := present(&ys.Links, "links")
	if err != nil {
		return snap, err
	}

	if hasRouters {
		snap.Routers = []string{}
		if err := ys.Routers.Decode(&snap.Routers); err != nil {
			return snap, fmt.Errorf("routers: %w", err)
		}
	}
	if hasLinks {
		snap.Links = []domain.LinkEntry{}
		if err := ys.Links.Decode(&snap.Links); err != nil {
			return snap, fmt.Errorf("links: %w", err)
		}
	}
	if ys.Metrics.Kind != 0 && ys.Metrics.Tag != "!!null" {
		var v any
		if err := ys.Metrics.Decode(&v); err != nil {
			return snap, fmt.Errorf("metrics: %w", err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return snap, fmt.Errorf("metrics: %w", err)
		}
		snap.Metrics = raw
	}
	return snap, nil
}

// present reports whether a membership field carries a list. A missing or
// null field is absent; any other non-list value is an error.
func present(n *yaml.Node, field string) (bool, error) {
	switch {
	case n.Kind == 0:
		return false, nil
	case n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		return false, nil
	case n.Kind == yaml.SequenceNode:
		return true, nil
	default:
		return false, fmt.Errorf("%s: line %d: expected a list", field, n.Line)
	}
}
