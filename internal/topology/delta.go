package topology

// Delta describes what a reconciliation call changed.
// LinksDropped lists link entries that were skipped because an endpoint did
// not resolve; dropping is not a structural change.
type Delta struct {
	RoutersAdded   []string `json:"routers_added,omitempty"`
	RoutersRemoved []string `json:"routers_removed,omitempty"`
	LinksAdded     []string `json:"links_added,omitempty"`
	LinksRemoved   []string `json:"links_removed,omitempty"`
	LinksDropped   []string `json:"links_dropped,omitempty"`
}

// Changed reports whether any router or link was added or removed
func (d Delta) Changed() bool {
	return len(d.RoutersAdded) > 0 || len(d.RoutersRemoved) > 0 ||
		len(d.LinksAdded) > 0 || len(d.LinksRemoved) > 0
}

// Merge combines two deltas, in order
func (d Delta) Merge(o Delta) Delta {
	return Delta{
		RoutersAdded:   append(append([]string(nil), d.RoutersAdded...), o.RoutersAdded...),
		RoutersRemoved: append(append([]string(nil), d.RoutersRemoved...), o.RoutersRemoved...),
		LinksAdded:     append(append([]string(nil), d.LinksAdded...), o.LinksAdded...),
		LinksRemoved:   append(append([]string(nil), d.LinksRemoved...), o.LinksRemoved...),
		LinksDropped:   append(append([]string(nil), d.LinksDropped...), o.LinksDropped...),
	}
}
