// Package graph loads the static pipeline description: nodes, their ports,
// the edges joining output ports to input ports, and control dependencies.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/alfredjeanlab/dagtrace/internal/model"
)

// Model is a parsed pipeline graph. It is immutable once returned by Parse.
type Model struct {
	nodes   []*model.Node
	byName  map[string]int
	inputs  map[string]model.Port
	outputs map[string]model.Port
	edges   []model.Edge

	dependsOn  map[string][]string // node -> nodes it waits on
	dependents map[string][]string // node -> nodes waiting on it

	order   []string
	aliases *Resolver
}

type document struct {
	Nodes *[]rawNode    `json:"nodes"`
	Edges *[]model.Edge `json:"edges"`
}

type rawNode struct {
	Name    *string            `json:"name"`
	Type    string             `json:"type"`
	Inputs  []string           `json:"inputs"`
	Outputs []string           `json:"outputs"`
	Depends []model.Dependency `json:"depends"`
}

// Load reads and parses a graph document from r.
func Load(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	return Parse(data)
}

// Parse builds a Model from a graph document. It fails with model.ErrParse
// when a required field is missing or malformed and with
// model.ErrAliasConflict when two edges share an endpoint.
func Parse(data []byte) (*Model, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: graph: %v", model.ErrParse, err)
	}
	if doc.Nodes == nil {
		return nil, fmt.Errorf("%w: graph: missing nodes", model.ErrParse)
	}
	if doc.Edges == nil {
		return nil, fmt.Errorf("%w: graph: missing edges", model.ErrParse)
	}

	m := &Model{
		byName:     make(map[string]int, len(*doc.Nodes)),
		inputs:     make(map[string]model.Port),
		outputs:    make(map[string]model.Port),
		dependsOn:  make(map[string][]string),
		dependents: make(map[string][]string),
	}
	for i, rn := range *doc.Nodes {
		if err := m.addNode(i, rn); err != nil {
			return nil, err
		}
	}
	if err := m.linkDependencies(); err != nil {
		return nil, err
	}

	m.edges = make([]model.Edge, 0, len(*doc.Edges))
	for i, e := range *doc.Edges {
		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("%w: graph: edge %d: from and to are required", model.ErrParse, i)
		}
		if _, ok := m.outputs[e.From]; !ok {
			return nil, fmt.Errorf("%w: graph: edge %d: %q is not an output port of any node", model.ErrParse, i, e.From)
		}
		if _, ok := m.inputs[e.To]; !ok {
			return nil, fmt.Errorf("%w: graph: edge %d: %q is not an input port of any node", model.ErrParse, i, e.To)
		}
		m.edges = append(m.edges, e)
	}

	aliases, err := newResolver(m)
	if err != nil {
		return nil, err
	}
	m.aliases = aliases
	m.order = topoOrder(m)
	return m, nil
}

func (m *Model) addNode(i int, rn rawNode) error {
	if rn.Name == nil || *rn.Name == "" {
		return fmt.Errorf("%w: graph: node %d: missing name", model.ErrParse, i)
	}
	name := *rn.Name
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("%w: graph: duplicate node %q", model.ErrParse, name)
	}

	n := &model.Node{
		Name:    name,
		Type:    rn.Type,
		Inputs:  slices.Clone(rn.Inputs),
		Outputs: slices.Clone(rn.Outputs),
		Depends: slices.Clone(rn.Depends),
	}
	if n.Type == "" {
		n.Type = "unknown"
	}
	for j := range n.Depends {
		if !n.Depends[j].Type.IsValid() {
			n.Depends[j].Type = "unknown"
		}
	}
	for _, p := range n.Inputs {
		if err := m.claimPort(m.inputs, p, name, model.DirInput); err != nil {
			return err
		}
	}
	for _, p := range n.Outputs {
		if err := m.claimPort(m.outputs, p, name, model.DirOutput); err != nil {
			return err
		}
	}
	m.byName[name] = len(m.nodes)
	m.nodes = append(m.nodes, n)
	return nil
}

func (m *Model) claimPort(index map[string]model.Port, port, node string, dir model.Direction) error {
	if port == "" {
		return fmt.Errorf("%w: graph: node %q: empty %s port name", model.ErrParse, node, dir)
	}
	if prev, ok := index[port]; ok {
		return fmt.Errorf("%w: graph: %s port %q declared by both %q and %q", model.ErrParse, dir, port, prev.Node, node)
	}
	index[port] = model.Port{Name: port, Node: node, Direction: dir}
	return nil
}

func (m *Model) linkDependencies() error {
	for _, n := range m.nodes {
		for _, d := range n.Depends {
			for _, dep := range d.DependentNodes {
				if _, ok := m.byName[dep]; !ok {
					return fmt.Errorf("%w: graph: node %q depends on unknown node %q", model.ErrParse, n.Name, dep)
				}
				m.dependsOn[n.Name] = append(m.dependsOn[n.Name], dep)
				m.dependents[dep] = append(m.dependents[dep], n.Name)
			}
		}
	}
	return nil
}

// Nodes returns copies of all nodes in declaration order.
func (m *Model) Nodes() []model.Node {
	out := make([]model.Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = cloneNode(n)
	}
	return out
}

// Node returns a copy of the named node.
func (m *Model) Node(name string) (model.Node, error) {
	i, ok := m.byName[name]
	if !ok {
		return model.Node{}, fmt.Errorf("%w: %q", model.ErrUnknownNode, name)
	}
	return cloneNode(m.nodes[i]), nil
}

// HasNode reports whether the graph declares name.
func (m *Model) HasNode(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// InputPort looks up a declared input port.
func (m *Model) InputPort(name string) (model.Port, bool) {
	p, ok := m.inputs[name]
	return p, ok
}

// OutputPort looks up a declared output port.
func (m *Model) OutputPort(name string) (model.Port, bool) {
	p, ok := m.outputs[name]
	return p, ok
}

// Owner returns the node declaring port as an input or an output.
func (m *Model) Owner(port string) (string, bool) {
	if p, ok := m.outputs[port]; ok {
		return p.Node, true
	}
	if p, ok := m.inputs[port]; ok {
		return p.Node, true
	}
	return "", false
}

// Edges returns the edges in declaration order.
func (m *Model) Edges() []model.Edge {
	return slices.Clone(m.edges)
}

// DependsOn returns the nodes that name waits on.
func (m *Model) DependsOn(name string) []string {
	return slices.Clone(m.dependsOn[name])
}

// Dependents returns the nodes waiting on name.
func (m *Model) Dependents(name string) []string {
	return slices.Clone(m.dependents[name])
}

// Order returns every node name in a deterministic upstream-first order.
func (m *Model) Order() []string {
	return slices.Clone(m.order)
}

// Aliases returns the resolver derived from the edge list.
func (m *Model) Aliases() *Resolver {
	return m.aliases
}

// Response renders the model for the dashboard.
func (m *Model) Response() *model.GraphResponse {
	nodes := make([]*model.Node, len(m.nodes))
	for i, n := range m.nodes {
		c := cloneNode(n)
		nodes[i] = &c
	}
	return &model.GraphResponse{Nodes: nodes, Edges: m.Edges(), Order: m.Order()}
}

func cloneNode(n *model.Node) model.Node {
	c := *n
	c.Inputs = slices.Clone(n.Inputs)
	c.Outputs = slices.Clone(n.Outputs)
	c.Depends = make([]model.Dependency, len(n.Depends))
	for i, d := range n.Depends {
		c.Depends[i] = model.Dependency{Type: d.Type, DependentNodes: slices.Clone(d.DependentNodes)}
	}
	return c
}
