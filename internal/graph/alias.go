package graph

import (
	"fmt"

	"github.com/alfredjeanlab/dagtrace/internal/model"
)

// Resolver maps the two names of each logical channel onto each other: the
// writer-side output port and the reader-side input port. The index is
// built once and never modified.
type Resolver struct {
	writerOf map[string]string // input port -> output port
	readerOf map[string]string // output port -> input port
	outputs  map[string]model.Port
}

// NewResolver returns the resolver of m. It is the same value as m.Aliases().
func NewResolver(m *Model) *Resolver {
	return m.aliases
}

func newResolver(m *Model) (*Resolver, error) {
	r := &Resolver{
		writerOf: make(map[string]string, len(m.edges)),
		readerOf: make(map[string]string, len(m.edges)),
		outputs:  m.outputs,
	}
	for _, e := range m.edges {
		if prev, ok := r.writerOf[e.To]; ok {
			return nil, fmt.Errorf("%w: input port %q is fed by both %q and %q", model.ErrAliasConflict, e.To, prev, e.From)
		}
		if prev, ok := r.readerOf[e.From]; ok {
			return nil, fmt.Errorf("%w: output port %q feeds both %q and %q", model.ErrAliasConflict, e.From, prev, e.To)
		}
		r.writerOf[e.To] = e.From
		r.readerOf[e.From] = e.To
	}
	return r, nil
}

// WriterPort returns the output port feeding input.
func (r *Resolver) WriterPort(input string) (string, error) {
	out, ok := r.writerOf[input]
	if !ok {
		return "", fmt.Errorf("%w: %q is not the target of any edge", model.ErrUnknownPort, input)
	}
	return out, nil
}

// ReaderPort returns the input port fed by output.
func (r *Resolver) ReaderPort(output string) (string, error) {
	in, ok := r.readerOf[output]
	if !ok {
		return "", fmt.Errorf("%w: %q is not the source of any edge", model.ErrUnknownPort, output)
	}
	return in, nil
}

// WriterSide resolves port to the name its channel is written under:
// input ports go through WriterPort, declared output ports are returned
// unchanged.
func (r *Resolver) WriterSide(port string) (string, error) {
	if out, ok := r.writerOf[port]; ok {
		return out, nil
	}
	if _, ok := r.outputs[port]; ok {
		return port, nil
	}
	return "", fmt.Errorf("%w: %q is neither a connected input nor an output port", model.ErrUnknownPort, port)
}

// Len returns the number of channels.
func (r *Resolver) Len() int {
	return len(r.writerOf)
}
