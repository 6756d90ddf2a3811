// Package timeline merges node and stream events of a trace into one
// strictly increasing sequence, each event attributed to the node that owns it.
package timeline

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alfredjeanlab/dagtrace/internal/graph"
	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/trace"
)

// Epsilon is the minimum gap, in microseconds, between adjacent items.
const Epsilon int64 = 1000

// StartLayout renders Item.Start.
const StartLayout = "2006-01-02T15:04:05.000000Z07:00"

// Item is one event placed on the timeline.
type Item struct {
	ID      int     `json:"id"`
	Group   string  `json:"group"`
	GroupID int     `json:"group_id"`
	Time    float64 `json:"time"`    // seconds since the Unix epoch, after nudging
	TimeUS  int64   `json:"time_us"` // Time in microseconds
	Start   string  `json:"start"`
	Tag     string  `json:"tag"`
	Label   string  `json:"label"`
	Source  string  `json:"source"` // "node" or "stream:<name>"
}

// Group is a timeline lane; there is one per node.
type Group struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// Timeline is the result of Build.
type Timeline struct {
	Items       []Item             `json:"items"`
	Groups      []Group            `json:"groups"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
	Min         string             `json:"min,omitempty"`
	Max         string             `json:"max,omitempty"`
}

// Dropped returns the number of events left out of the timeline.
func (t *Timeline) Dropped() int {
	return len(t.Diagnostics)
}

type options struct {
	loc    *time.Location
	logger *slog.Logger
}

// Option configures Build.
type Option func(*options)

// WithLocation sets the zone used to render Item.Start. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithLogger sets the logger that receives drop diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type candidate struct {
	group  string
	source string
	ev     model.Event
}

// Build reconstructs the timeline of store against the graph m.
//
// Node events come first, nodes taken in m.Order() followed by nodes only
// the trace knows about; stream events follow in document order. The sort
// is stable, so this enumeration order breaks ties between equal times.
func Build(m *graph.Model, aliases *graph.Resolver, store *trace.Store, opts ...Option) *Timeline {
	o := options{loc: time.UTC, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	b := &builder{m: m, aliases: aliases, groupIDs: make(map[string]int)}
	for _, name := range m.Order() {
		b.group(name)
	}

	for _, name := range m.Order() {
		b.addNodeEvents(name, store.NodeEvents(name))
	}
	for _, name := range store.NodeNames() {
		if !m.HasNode(name) {
			b.addNodeEvents(name, store.NodeEvents(name))
		}
	}
	for _, name := range store.StreamNames() {
		b.addStreamEvents(name, store.StreamEvents(name))
	}

	slices.SortStableFunc(b.cands, func(x, y candidate) int {
		switch {
		case x.ev.Time < y.ev.Time:
			return -1
		case x.ev.Time > y.ev.Time:
			return 1
		}
		return 0
	})

	times := make([]int64, len(b.cands))
	for i, c := range b.cands {
		times[i] = c.ev.Time
	}
	times = Nudge(times)

	t := &Timeline{
		Items:       make([]Item, len(b.cands)),
		Groups:      b.groups,
		Diagnostics: b.diags,
	}
	if t.Diagnostics == nil {
		t.Diagnostics = []model.Diagnostic{}
	}
	for i, c := range b.cands {
		t.Items[i] = Item{
			ID:      i,
			Group:   c.group,
			GroupID: b.groupIDs[c.group],
			Time:    Seconds(times[i]),
			TimeUS:  times[i],
			Start:   FormatStart(times[i], o.loc),
			Tag:     c.ev.Tag,
			Label:   c.ev.Label(),
			Source:  c.source,
		}
	}
	if n := len(t.Items); n > 0 {
		t.Min = t.Items[0].Start
		t.Max = t.Items[n-1].Start
	}

	for _, d := range t.Diagnostics {
		o.logger.Debug("timeline: dropped event",
			"kind", d.Kind, "source", d.Source, "owner", d.Owner, "index", d.Index, "reason", d.Reason)
	}
	if len(t.Diagnostics) > 0 {
		o.logger.Warn("timeline: events dropped", "dropped", len(t.Diagnostics), "kept", len(t.Items))
	}
	return t
}

type builder struct {
	m       *graph.Model
	aliases *graph.Resolver

	cands    []candidate
	diags    []model.Diagnostic
	groups   []Group
	groupIDs map[string]int
}

func (b *builder) group(name string) {
	if _, ok := b.groupIDs[name]; ok {
		return
	}
	b.groupIDs[name] = len(b.groups)
	b.groups = append(b.groups, Group{ID: len(b.groups), Content: name})
}

func (b *builder) addNodeEvents(node string, evs []model.Event) {
	for i, ev := range evs {
		if !ev.Valid() {
			b.drop(model.DiagMalformed, model.SourceNode, node, i, ev, ev.Malformed)
			continue
		}
		b.group(node)
		b.cands = append(b.cands, candidate{group: node, source: string(model.SourceNode), ev: ev})
	}
}

func (b *builder) addStreamEvents(stream string, evs []model.Event) {
	for i, ev := range evs {
		if !ev.Valid() {
			b.drop(model.DiagMalformed, model.SourceStream, stream, i, ev, ev.Malformed)
			continue
		}
		owner, err := b.attribute(stream, ev.Tag)
		if err != nil {
			b.drop(model.DiagUnattributed, model.SourceStream, stream, i, ev, err.Error())
			continue
		}
		b.group(owner)
		b.cands = append(b.cands, candidate{group: owner, source: "stream:" + stream, ev: ev})
	}
}

// attribute returns the node a stream event belongs to. Read-lifecycle
// events are recorded under the reader-facing name but describe the
// producer's channel, so they hop to the writer side first.
func (b *builder) attribute(stream, tag string) (string, error) {
	if model.Classify(tag) == model.ClassRead {
		if w, err := b.aliases.WriterPort(stream); err == nil {
			p, _ := b.m.OutputPort(w)
			return p.Node, nil
		}
		if p, ok := b.m.OutputPort(stream); ok {
			return p.Node, nil
		}
		return "", fmt.Errorf("%w: read event on %q has no writer side", model.ErrUnknownPort, stream)
	}
	if owner, ok := b.m.Owner(stream); ok {
		return owner, nil
	}
	return "", fmt.Errorf("%w: no node declares stream %q", model.ErrUnknownPort, stream)
}

func (b *builder) drop(kind model.DiagnosticKind, src model.EventSource, owner string, i int, ev model.Event, reason string) {
	b.diags = append(b.diags, model.Diagnostic{
		Kind:   kind,
		Source: src,
		Owner:  owner,
		Index:  i,
		Tag:    ev.Tag,
		Reason: reason,
	})
}

// Nudge returns a copy of times, which must be sorted ascending and lie in
// [0, model.MaxEventTime] as the trace store guarantees, in which
// every element is at least Epsilon greater than its predecessor. An
// element within Epsilon of the previous (already nudged) one is moved to
// exactly previous+Epsilon. Order is never changed, and applying Nudge to
// its own output returns it unchanged.
func Nudge(times []int64) []int64 {
	out := slices.Clone(times)
	for i := 1; i < len(out); i++ {
		if out[i]-out[i-1] <= Epsilon {
			out[i] = out[i-1] + Epsilon
		}
	}
	return out
}

// Seconds converts microseconds to fractional seconds.
func Seconds(us int64) float64 {
	return float64(us) / 1e6
}

// FormatStart renders a microsecond timestamp as ISO-8601 in loc.
func FormatStart(us int64, loc *time.Location) string {
	return time.UnixMicro(us).In(loc).Format(StartLayout)
}
