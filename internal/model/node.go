package model

// Direction says which side of a node a port sits on.
type Direction string

const (
	DirInput  Direction = "input"
	DirOutput Direction = "output"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// Node is a pipeline component as declared in the graph document.
type Node struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Inputs  []string     `json:"inputs"`
	Outputs []string     `json:"outputs"`
	Depends []Dependency `json:"depends,omitempty"`
}

// Port is a named endpoint. Node is the owning node, resolved once at parse time.
type Port struct {
	Name      string    `json:"name"`
	Node      string    `json:"node"`
	Direction Direction `json:"direction"`
}

// Edge is a logical channel from a producer's output port to a consumer's input port.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphResponse is the graph as served to the dashboard.
type GraphResponse struct {
	Nodes []*Node  `json:"nodes"`
	Edges []Edge   `json:"edges"`
	Order []string `json:"order"`
}
