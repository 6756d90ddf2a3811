// Package session ties a parsed graph and trace together and memoizes the
// views derived from them.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alfredjeanlab/dagtrace/internal/events"
	"github.com/alfredjeanlab/dagtrace/internal/graph"
	"github.com/alfredjeanlab/dagtrace/internal/idgen"
	"github.com/alfredjeanlab/dagtrace/internal/metrics"
	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/slicer"
	"github.com/alfredjeanlab/dagtrace/internal/source"
	"github.com/alfredjeanlab/dagtrace/internal/timeline"
	"github.com/alfredjeanlab/dagtrace/internal/trace"
)

// Options configures Load.
type Options struct {
	Location *time.Location   // zone for timeline start strings (default UTC)
	Logger   *slog.Logger     // default slog.Default()
	Metrics  *metrics.Metrics // optional
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Session is one immutable graph and trace pair.
type Session struct {
	ID       string
	GraphURI string
	TraceURI string
	LoadedAt time.Time

	Graph   *graph.Model
	Aliases *graph.Resolver
	Trace   *trace.Store

	opts   Options
	flight singleflight.Group

	mu       sync.Mutex
	timeline *timeline.Timeline
	slices   map[string]*slicer.NodeSlice
}

// Load fetches and parses both documents concurrently.
func Load(ctx context.Context, graphSrc, traceSrc source.Source, opts Options) (*Session, error) {
	var (
		m     *graph.Model
		store *trace.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := graphSrc.Fetch(gctx)
		if err != nil {
			return err
		}
		if m, err = graph.Parse(data); err != nil {
			return fmt.Errorf("graph %s: %w", graphSrc.URI(), err)
		}
		return nil
	})
	g.Go(func() error {
		data, err := traceSrc.Fetch(gctx)
		if err != nil {
			return err
		}
		if store, err = trace.Parse(data); err != nil {
			return fmt.Errorf("trace %s: %w", traceSrc.URI(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return New(m, store, graphSrc.URI(), traceSrc.URI(), opts)
}

// New wraps already parsed documents.
func New(m *graph.Model, store *trace.Store, graphURI, traceURI string, opts Options) (*Session, error) {
	id, err := idgen.SessionID(store.SessionID())
	if err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Session{
		ID:       id,
		GraphURI: graphURI,
		TraceURI: traceURI,
		LoadedAt: time.Now().UTC(),
		Graph:    m,
		Aliases:  graph.NewResolver(m),
		Trace:    store,
		opts:     opts,
		slices:   make(map[string]*slicer.NodeSlice),
	}
	st := store.Stats()
	opts.logger().Info("session loaded",
		"session", id, "graph", graphURI, "trace", traceURI,
		"nodes", len(m.Order()), "channels", s.Aliases.Len(),
		"events", st.Events, "malformed", st.Malformed)
	return s, nil
}

// Timeline builds the timeline on first use and returns the cached value
// afterwards. Concurrent first callers share one build.
func (s *Session) Timeline() *timeline.Timeline {
	s.mu.Lock()
	if t := s.timeline; t != nil {
		s.mu.Unlock()
		return t
	}
	s.mu.Unlock()

	v, _, _ := s.flight.Do("timeline", func() (any, error) {
		s.mu.Lock()
		if t := s.timeline; t != nil {
			s.mu.Unlock()
			return t, nil
		}
		s.mu.Unlock()

		start := time.Now()
		t := timeline.Build(s.Graph, s.Aliases, s.Trace,
			timeline.WithLocation(s.opts.Location),
			timeline.WithLogger(s.opts.logger().With("session", s.ID)))
		s.opts.Metrics.ObserveBuild(time.Since(start), len(t.Items), dropsByKind(t.Diagnostics))

		s.mu.Lock()
		s.timeline = t
		s.mu.Unlock()
		return t, nil
	})
	return v.(*timeline.Timeline)
}

func dropsByKind(diags []model.Diagnostic) map[string]int {
	out := make(map[string]int)
	for _, d := range diags {
		out[string(d.Kind)]++
	}
	return out
}

// Slice returns the memoized slice of node.
func (s *Session) Slice(node string) (*slicer.NodeSlice, error) {
	s.mu.Lock()
	if ns, ok := s.slices[node]; ok {
		s.mu.Unlock()
		s.opts.Metrics.ObserveQuery("slice", "ok")
		return ns, nil
	}
	s.mu.Unlock()

	v, err, _ := s.flight.Do("slice/"+node, func() (any, error) {
		s.mu.Lock()
		if ns, ok := s.slices[node]; ok {
			s.mu.Unlock()
			return ns, nil
		}
		s.mu.Unlock()

		ns, err := slicer.Slice(s.Graph, s.Aliases, s.Trace, node)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.slices[node] = ns
		s.mu.Unlock()
		return ns, nil
	})
	s.opts.Metrics.ObserveQuery("slice", queryStatus(err))
	if err != nil {
		return nil, err
	}
	return v.(*slicer.NodeSlice), nil
}

// Payload returns the payloads carried by the channel behind port.
func (s *Session) Payload(port string) ([]json.RawMessage, error) {
	p, err := slicer.PayloadOf(s.Aliases, s.Trace, port)
	s.opts.Metrics.ObserveQuery("payload", queryStatus(err))
	return p, err
}

// Payloads returns the payloads of every port of node.
func (s *Session) Payloads(node string) (*slicer.NodePayloads, error) {
	p, err := slicer.PayloadsOf(s.Graph, s.Aliases, s.Trace, node)
	s.opts.Metrics.ObserveQuery("payload", queryStatus(err))
	return p, err
}

// PortAlias describes both names of the channel a port belongs to.
type PortAlias struct {
	Port      string          `json:"port"`
	Node      string          `json:"node"`
	Direction model.Direction `json:"direction"`
	Writer    string          `json:"writer"`
	Reader    string          `json:"reader,omitempty"`
}

// Alias resolves port to its channel. An input port must be connected; an
// output port that feeds nothing has an empty Reader.
func (s *Session) Alias(port string) (*PortAlias, error) {
	pa, err := s.alias(port)
	s.opts.Metrics.ObserveQuery("alias", queryStatus(err))
	return pa, err
}

func (s *Session) alias(port string) (*PortAlias, error) {
	if p, ok := s.Graph.InputPort(port); ok {
		w, err := s.Aliases.WriterPort(port)
		if err != nil {
			return nil, err
		}
		return &PortAlias{Port: port, Node: p.Node, Direction: p.Direction, Writer: w, Reader: port}, nil
	}
	if p, ok := s.Graph.OutputPort(port); ok {
		r, _ := s.Aliases.ReaderPort(port)
		return &PortAlias{Port: port, Node: p.Node, Direction: p.Direction, Writer: port, Reader: r}, nil
	}
	return nil, fmt.Errorf("%w: %q is not declared by any node", model.ErrUnknownPort, port)
}

// Summary describes the session for events and the session endpoint.
func (s *Session) Summary() events.SessionSummary {
	st := s.Trace.Stats()
	t := s.Timeline()
	return events.SessionSummary{
		SessionID: s.ID,
		Graph:     s.GraphURI,
		Trace:     s.TraceURI,
		Nodes:     st.Nodes,
		Streams:   st.Streams,
		Events:    st.Events,
		Malformed: st.Malformed,
		Items:     len(t.Items),
		Dropped:   t.Dropped(),
		LoadedAt:  s.LoadedAt,
	}
}

func queryStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case model.IsLookupError(err):
		return "not_found"
	default:
		return "error"
	}
}
