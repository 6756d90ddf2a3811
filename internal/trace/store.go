// Package trace holds the raw execution trace recorded by the pipeline
// engine, grouped by owning node and by owning stream. It does not interpret
// events beyond flagging records that lack a tag or a time.
package trace

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/alfredjeanlab/dagtrace/internal/model"
)

// Store is a parsed trace document. It is immutable once returned by Parse.
type Store struct {
	sessionID string

	nodeNames []string
	nodes     map[string][]model.Event

	streamNames []string
	streams     map[string][]model.Event
}

// Load reads and parses a trace document from r.
func Load(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from a trace document. Missing "nodes" or "streams"
// sections are treated as empty, since traces of truncated runs are common.
// Section and key order of the document is preserved.
func Parse(data []byte) (*Store, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: trace: invalid JSON", model.ErrParse)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: trace: document is not an object", model.ErrParse)
	}

	s := &Store{
		nodes:   make(map[string][]model.Event),
		streams: make(map[string][]model.Event),
	}
	if id := doc.Get("unique_id"); id.Exists() && id.Type != gjson.Null {
		s.sessionID = id.String()
	}

	var err error
	if s.nodeNames, err = parseSection(doc, "nodes", s.nodes); err != nil {
		return nil, err
	}
	if s.streamNames, err = parseSection(doc, "streams", s.streams); err != nil {
		return nil, err
	}
	return s, nil
}

func parseSection(doc gjson.Result, section string, into map[string][]model.Event) ([]string, error) {
	sec := doc.Get(section)
	if !sec.Exists() || sec.Type == gjson.Null {
		return nil, nil
	}
	if !sec.IsObject() {
		return nil, fmt.Errorf("%w: trace: %s is not an object", model.ErrParse, section)
	}

	var (
		names []string
		err   error
	)
	sec.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !value.IsArray() {
			err = fmt.Errorf("%w: trace: %s[%q] is not an array", model.ErrParse, section, name)
			return false
		}
		if _, seen := into[name]; !seen {
			names = append(names, name)
			into[name] = []model.Event{}
		}
		value.ForEach(func(_, ev gjson.Result) bool {
			into[name] = append(into[name], parseEvent(ev))
			return true
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// parseEvent decodes one record. Problems are recorded on the event rather
// than returned so that a single bad record does not reject the trace.
func parseEvent(ev gjson.Result) model.Event {
	if !ev.IsObject() {
		return model.Event{Malformed: "record is not an object"}
	}
	var e model.Event
	e.Type = ev.Get("type").String()
	if d := ev.Get("data"); d.Exists() {
		e.Data = []byte(d.Raw)
	}

	tag := ev.Get("event")
	switch {
	case !tag.Exists():
		e.Malformed = "missing event tag"
	case tag.Type != gjson.String || tag.Str == "":
		e.Malformed = "event tag is not a non-empty string"
	default:
		e.Tag = tag.Str
	}

	tm := ev.Get("time")
	if !tm.Exists() {
		return withReason(e, "missing time")
	}
	us, ok := parseMicros(tm)
	if !ok {
		return withReason(e, fmt.Sprintf("invalid time %s", tm.Raw))
	}
	e.Time = us
	return e
}

func withReason(e model.Event, reason string) model.Event {
	if e.Malformed == "" {
		e.Malformed = reason
	} else {
		e.Malformed += "; " + reason
	}
	return e
}

// parseMicros accepts an integral JSON number in [0, model.MaxEventTime].
func parseMicros(v gjson.Result) (int64, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
		return n, n >= 0 && n <= model.MaxEventTime
	}
	f := v.Float()
	if f < 0 || f != math.Trunc(f) || f > float64(model.MaxEventTime) {
		return 0, false
	}
	return int64(f), true
}

// SessionID returns the document's unique_id, or "" when absent.
func (s *Store) SessionID() string {
	return s.sessionID
}

// NodeEvents returns the events recorded under node, in recorded order.
// An unknown node yields an empty slice.
func (s *Store) NodeEvents(node string) []model.Event {
	return cloneEvents(s.nodes[node])
}

// StreamEvents returns the events recorded under stream, in recorded order.
// An unknown stream yields an empty slice.
func (s *Store) StreamEvents(stream string) []model.Event {
	return cloneEvents(s.streams[stream])
}

func cloneEvents(evs []model.Event) []model.Event {
	out := make([]model.Event, len(evs))
	copy(out, evs)
	return out
}

// NodeNames returns the node keys in document order.
func (s *Store) NodeNames() []string {
	return slices.Clone(s.nodeNames)
}

// StreamNames returns the stream keys in document order.
func (s *Store) StreamNames() []string {
	return slices.Clone(s.streamNames)
}

// Stats summarizes the store.
type Stats struct {
	Nodes     int `json:"nodes"`
	Streams   int `json:"streams"`
	Events    int `json:"events"`
	Malformed int `json:"malformed"`
}

// Stats counts keys and events.
func (s *Store) Stats() Stats {
	st := Stats{Nodes: len(s.nodeNames), Streams: len(s.streamNames)}
	count := func(evs []model.Event) {
		for _, e := range evs {
			st.Events++
			if !e.Valid() {
				st.Malformed++
			}
		}
	}
	for _, evs := range s.nodes {
		count(evs)
	}
	for _, evs := range s.streams {
		count(evs)
	}
	return st
}
