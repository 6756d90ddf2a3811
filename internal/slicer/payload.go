package slicer

import (
	"encoding/json"

	"github.com/alfredjeanlab/dagtrace/internal/graph"
	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/trace"
)

var nullPayload = json.RawMessage("null")

// PayloadOf returns the data of every append on the channel behind port,
// in recorded order. Payloads are recorded once, by the producer, so an
// input port is first resolved to the output port feeding it. An append
// without data contributes a JSON null.
func PayloadOf(aliases *graph.Resolver, store *trace.Store, port string) ([]json.RawMessage, error) {
	w, err := aliases.WriterSide(port)
	if err != nil {
		return nil, err
	}
	out := []json.RawMessage{}
	for _, e := range store.StreamEvents(w) {
		if !e.Valid() || !model.IsAppend(e.Tag) {
			continue
		}
		if e.Data == nil {
			out = append(out, nullPayload)
			continue
		}
		out = append(out, e.Data)
	}
	return out, nil
}

// NodePayloads is the payload view of every port of one node.
type NodePayloads struct {
	Node    string                       `json:"node"`
	Inputs  map[string][]json.RawMessage `json:"inputs"`
	Outputs map[string][]json.RawMessage `json:"outputs"`
}

// PayloadsOf resolves the payloads of every input and output port of node.
func PayloadsOf(m *graph.Model, aliases *graph.Resolver, store *trace.Store, node string) (*NodePayloads, error) {
	n, err := m.Node(node)
	if err != nil {
		return nil, err
	}
	np := &NodePayloads{
		Node:    node,
		Inputs:  make(map[string][]json.RawMessage, len(n.Inputs)),
		Outputs: make(map[string][]json.RawMessage, len(n.Outputs)),
	}
	for _, p := range n.Inputs {
		if np.Inputs[p], err = PayloadOf(aliases, store, p); err != nil {
			return nil, err
		}
	}
	for _, p := range n.Outputs {
		if np.Outputs[p], err = PayloadOf(aliases, store, p); err != nil {
			return nil, err
		}
	}
	return np, nil
}
