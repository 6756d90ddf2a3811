package graph

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/alfredjeanlab/dagtrace/internal/model"
)

// pipelineDoc declares the consumer before its producers so that the
// topological order differs from declaration order.
const pipelineDoc = `{
  "nodes": [
    {"name": "C", "type": "sink", "inputs": ["C/in"], "outputs": [],
     "depends": [{"type": "sync", "dependent_nodes": ["S"]}]},
    {"name": "A", "type": "source", "inputs": [], "outputs": ["A/out"]},
    {"name": "B", "type": "llm", "inputs": ["B/in"], "outputs": ["B/out"]},
    {"name": "S", "type": "safety"}
  ],
  "edges": [
    {"from": "A/out", "to": "B/in"},
    {"from": "B/out", "to": "C/in"}
  ]
}`

func mustParse(t *testing.T, doc string) *Model {
	t.Helper()
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestParse_Nodes(t *testing.T) {
	m := mustParse(t, pipelineDoc)

	nodes := m.Nodes()
	if len(nodes) != 4 {
		t.Fatalf("len(Nodes()) = %d, want 4", len(nodes))
	}
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	if want := []string{"C", "A", "B", "S"}; !slices.Equal(names, want) {
		t.Errorf("node order = %v, want %v", names, want)
	}

	b, err := m.Node("B")
	if err != nil {
		t.Fatalf("Node(B): %v", err)
	}
	if b.Type != "llm" {
		t.Errorf("B.Type = %q, want %q", b.Type, "llm")
	}
	if s, _ := m.Node("S"); s.Type != "safety" {
		t.Errorf("S.Type = %q, want %q", s.Type, "safety")
	}
}

func TestParse_PortOwners(t *testing.T) {
	m := mustParse(t, pipelineDoc)

	for _, tc := range []struct {
		port string
		node string
		dir  model.Direction
	}{
		{"A/out", "A", model.DirOutput},
		{"B/in", "B", model.DirInput},
		{"B/out", "B", model.DirOutput},
		{"C/in", "C", model.DirInput},
	} {
		var (
			p  model.Port
			ok bool
		)
		if tc.dir == model.DirInput {
			p, ok = m.InputPort(tc.port)
		} else {
			p, ok = m.OutputPort(tc.port)
		}
		if !ok {
			t.Errorf("port %q not found", tc.port)
			continue
		}
		if p.Node != tc.node || p.Direction != tc.dir {
			t.Errorf("port %q = %+v, want node %q dir %q", tc.port, p, tc.node, tc.dir)
		}
		if owner, _ := m.Owner(tc.port); owner != tc.node {
			t.Errorf("Owner(%q) = %q, want %q", tc.port, owner, tc.node)
		}
	}
	if _, ok := m.Owner("nope"); ok {
		t.Error("Owner(nope) reported a node")
	}
}

func TestParse_Dependencies(t *testing.T) {
	m := mustParse(t, pipelineDoc)

	if got := m.DependsOn("C"); !slices.Equal(got, []string{"S"}) {
		t.Errorf("DependsOn(C) = %v, want [S]", got)
	}
	if got := m.Dependents("S"); !slices.Equal(got, []string{"C"}) {
		t.Errorf("Dependents(S) = %v, want [C]", got)
	}
	if got := m.DependsOn("A"); len(got) != 0 {
		t.Errorf("DependsOn(A) = %v, want empty", got)
	}
}

func TestParse_Order(t *testing.T) {
	m := mustParse(t, pipelineDoc)
	// A is the first ready node in declaration order; C waits on B and S.
	want := []string{"A", "B", "S", "C"}
	if got := m.Order(); !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestParse_OrderWithCycle(t *testing.T) {
	m := mustParse(t, `{
	  "nodes": [
	    {"name": "X", "inputs": ["X/in"], "outputs": ["X/out"]},
	    {"name": "Y", "inputs": ["Y/in"], "outputs": ["Y/out"]},
	    {"name": "Z"}
	  ],
	  "edges": [
	    {"from": "X/out", "to": "Y/in"},
	    {"from": "Y/out", "to": "X/in"}
	  ]
	}`)
	want := []string{"Z", "X", "Y"}
	if got := m.Order(); !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestParse_DefaultsType(t *testing.T) {
	m := mustParse(t, `{"nodes": [{"name": "A"}], "edges": []}`)
	a, _ := m.Node("A")
	if a.Type != "unknown" {
		t.Errorf("Type = %q, want %q", a.Type, "unknown")
	}
}

func TestNode_ReturnsCopy(t *testing.T) {
	m := mustParse(t, pipelineDoc)

	b, _ := m.Node("B")
	b.Inputs[0] = "mutated"
	b.Type = "mutated"

	again, _ := m.Node("B")
	if again.Inputs[0] != "B/in" || again.Type != "llm" {
		t.Errorf("model was mutated through a returned node: %+v", again)
	}
}

func TestNode_Unknown(t *testing.T) {
	m := mustParse(t, pipelineDoc)
	if _, err := m.Node("missing"); !errors.Is(err, model.ErrUnknownNode) {
		t.Errorf("Node(missing) error = %v, want ErrUnknownNode", err)
	}
	if m.HasNode("missing") {
		t.Error("HasNode(missing) = true")
	}
}

func TestParse_Errors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{"NotJSON", `{`, model.ErrParse, "graph"},
		{"NotObject", `[]`, model.ErrParse, "graph"},
		{"MissingNodes", `{"edges": []}`, model.ErrParse, "missing nodes"},
		{"MissingEdges", `{"nodes": []}`, model.ErrParse, "missing edges"},
		{"NodesWrongType", `{"nodes": {}, "edges": []}`, model.ErrParse, "graph"},
		{"MissingName", `{"nodes": [{"type": "x"}], "edges": []}`, model.ErrParse, "missing name"},
		{"EmptyName", `{"nodes": [{"name": ""}], "edges": []}`, model.ErrParse, "missing name"},
		{"NameWrongType", `{"nodes": [{"name": 7}], "edges": []}`, model.ErrParse, "graph"},
		{"DuplicateNode", `{"nodes": [{"name": "A"}, {"name": "A"}], "edges": []}`, model.ErrParse, "duplicate node"},
		{
			"DuplicatePort",
			`{"nodes": [{"name": "A", "outputs": ["p"]}, {"name": "B", "outputs": ["p"]}], "edges": []}`,
			model.ErrParse, "declared by both",
		},
		{
			"EdgeMissingTo",
			`{"nodes": [{"name": "A", "outputs": ["A/out"]}], "edges": [{"from": "A/out"}]}`,
			model.ErrParse, "required",
		},
		{
			"EdgeUndeclaredFrom",
			`{"nodes": [{"name": "B", "inputs": ["B/in"]}], "edges": [{"from": "A/out", "to": "B/in"}]}`,
			model.ErrParse, "not an output port",
		},
		{
			"EdgeUndeclaredTo",
			`{"nodes": [{"name": "A", "outputs": ["A/out"]}], "edges": [{"from": "A/out", "to": "B/in"}]}`,
			model.ErrParse, "not an input port",
		},
		{
			"UnknownDependency",
			`{"nodes": [{"name": "A", "depends": [{"type": "sync", "dependent_nodes": ["Q"]}]}], "edges": []}`,
			model.ErrParse, "unknown node",
		},
		{
			"DuplicateTo",
			`{"nodes": [
			   {"name": "A", "outputs": ["A/out"]},
			   {"name": "X", "outputs": ["X/out"]},
			   {"name": "B", "inputs": ["B/in"]}],
			  "edges": [{"from": "A/out", "to": "B/in"}, {"from": "X/out", "to": "B/in"}]}`,
			model.ErrAliasConflict, "fed by both",
		},
		{
			"DuplicateFrom",
			`{"nodes": [
			   {"name": "A", "outputs": ["A/out"]},
			   {"name": "B", "inputs": ["B/in"]},
			   {"name": "C", "inputs": ["C/in"]}],
			  "edges": [{"from": "A/out", "to": "B/in"}, {"from": "A/out", "to": "C/in"}]}`,
			model.ErrAliasConflict, "feeds both",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tc.wantMsg)
			}
		})
	}
}

func TestLoad_Reader(t *testing.T) {
	m, err := Load(strings.NewReader(pipelineDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Edges()) != 2 {
		t.Errorf("len(Edges()) = %d, want 2", len(m.Edges()))
	}
}

func TestResponse(t *testing.T) {
	m := mustParse(t, pipelineDoc)
	resp := m.Response()
	if len(resp.Nodes) != 4 || len(resp.Edges) != 2 || len(resp.Order) != 4 {
		t.Errorf("Response() = %d nodes, %d edges, %d order; want 4, 2, 4",
			len(resp.Nodes), len(resp.Edges), len(resp.Order))
	}
}
