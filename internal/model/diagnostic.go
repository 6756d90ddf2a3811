package model

// DiagnosticKind names why an event was left out of a derived result.
type DiagnosticKind string

const (
	// DiagMalformed marks an event without a usable tag or time.
	DiagMalformed DiagnosticKind = "malformed_event"
	// DiagUnattributed marks a stream event whose stream no node can claim.
	DiagUnattributed DiagnosticKind = "unattributed_event"
)

// EventSource says which section of the trace an event was recorded under.
type EventSource string

const (
	SourceNode   EventSource = "node"
	SourceStream EventSource = "stream"
)

// Diagnostic records one dropped event.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Source EventSource    `json:"source"`
	Owner  string         `json:"owner"` // node or stream name the event was recorded under
	Index  int            `json:"index"` // position within the owner's recorded sequence
	Tag    string         `json:"tag,omitempty"`
	Reason string         `json:"reason"`
}
