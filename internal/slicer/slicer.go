// Package slicer extracts the events relevant to a single node: its own
// events plus the read activity on its inputs and the write activity on its
// outputs, and resolves the payloads carried by a port.
package slicer

import (
	"fmt"
	"slices"

	"github.com/alfredjeanlab/dagtrace/internal/graph"
	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/trace"
)

// Origin says which part of a slice an entry came from.
type Origin string

const (
	OriginOwn    Origin = "own"
	OriginInput  Origin = "input"
	OriginOutput Origin = "output"
)

// Entry is an event in the merged view of a slice.
type Entry struct {
	model.Event
	Origin Origin `json:"origin"`
	Port   string `json:"port,omitempty"`
}

// NodeSlice is the causally relevant part of a trace for one node.
type NodeSlice struct {
	Node    string                   `json:"node"`
	Own     []model.Event            `json:"own"`
	Inputs  map[string][]model.Event `json:"inputs"`
	Outputs map[string][]model.Event `json:"outputs"`
	Merged  []Entry                  `json:"merged"`
}

// Slice returns the slice of store for node. Own events are returned as
// recorded. Inputs hold the read-lifecycle events of the channel feeding
// each input port, looked up under the writer-side name; Outputs hold the
// append and half-close events of each output port. Merged is a stable
// time sort of all three, own events first, then inputs and outputs in port
// declaration order. Malformed events appear only in Own.
func Slice(m *graph.Model, aliases *graph.Resolver, store *trace.Store, node string) (*NodeSlice, error) {
	n, err := m.Node(node)
	if err != nil {
		return nil, err
	}

	s := &NodeSlice{
		Node:    node,
		Own:     store.NodeEvents(node),
		Inputs:  make(map[string][]model.Event, len(n.Inputs)),
		Outputs: make(map[string][]model.Event, len(n.Outputs)),
	}
	for _, e := range s.Own {
		if e.Valid() {
			s.Merged = append(s.Merged, Entry{Event: e, Origin: OriginOwn})
		}
	}
	for _, p := range n.Inputs {
		w, err := aliases.WriterPort(p)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node, err)
		}
		evs := filter(store.StreamEvents(w), model.ClassRead)
		s.Inputs[p] = evs
		for _, e := range evs {
			s.Merged = append(s.Merged, Entry{Event: e, Origin: OriginInput, Port: p})
		}
	}
	for _, p := range n.Outputs {
		evs := filter(store.StreamEvents(p), model.ClassWrite)
		s.Outputs[p] = evs
		for _, e := range evs {
			s.Merged = append(s.Merged, Entry{Event: e, Origin: OriginOutput, Port: p})
		}
	}
	slices.SortStableFunc(s.Merged, func(a, b Entry) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	if s.Merged == nil {
		s.Merged = []Entry{}
	}
	return s, nil
}

func filter(evs []model.Event, class model.TagClass) []model.Event {
	out := []model.Event{}
	for _, e := range evs {
		if e.Valid() && model.Classify(e.Tag) == class {
			out = append(out, e)
		}
	}
	return out
}
