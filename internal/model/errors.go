package model

import "errors"

// Error kinds. Callers match them with errors.Is; producers wrap them with
// fmt.Errorf("%w: ...", kind) to add the offending field or name.
var (
	// ErrParse is returned when a document is not well-formed or lacks a required field.
	ErrParse = errors.New("parse error")
	// ErrAliasConflict is returned when two edges share a from or a to port.
	ErrAliasConflict = errors.New("alias conflict")
	// ErrUnknownNode is returned for a lookup of a node the graph does not declare.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownPort is returned for a lookup of a port with no matching edge or declaration.
	ErrUnknownPort = errors.New("unknown port")
	// ErrMalformedEvent describes a trace event without a usable tag or time.
	ErrMalformedEvent = errors.New("malformed event")
)

// IsLookupError reports whether err is a caller lookup miss
// (ErrUnknownNode or ErrUnknownPort).
func IsLookupError(err error) bool {
	return errors.Is(err, ErrUnknownNode) || errors.Is(err, ErrUnknownPort)
}
