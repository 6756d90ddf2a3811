package model

// DependencyType categorizes a control dependency between two nodes.
// The pipeline engine emits free-form types, so any non-empty value is accepted.
type DependencyType string

const (
	DepSync  DependencyType = "sync"
	DepAsync DependencyType = "async"
)

// String returns the string representation of the dependency type.
func (d DependencyType) String() string {
	return string(d)
}

// IsValid reports whether the dependency type is a non-empty string of at most 50 characters.
func (d DependencyType) IsValid() bool {
	return len(d) > 0 && len(d) <= 50
}

// Dependency is one `depends` descriptor of a node: the node waits on every
// node listed in DependentNodes.
type Dependency struct {
	Type           DependencyType `json:"type"`
	DependentNodes []string       `json:"dependent_nodes"`
}
