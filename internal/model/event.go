package model

import (
	"encoding/json"
	"strings"
)

// TagScope separates the scoping prefix of an event tag from its label,
// e.g. "PipeStreamBase::read buf".
const TagScope = "::"

// MaxEventTime is the latest accepted event time in microseconds (early
// 2112). Later times are flagged malformed so that nudged timeline times
// stay below 2^53, where int64 and float64 microseconds agree.
const MaxEventTime int64 = 1 << 52

// Event is a single trace record as written by the pipeline engine.
type Event struct {
	Tag  string          `json:"event"`
	Time int64           `json:"time"` // microseconds since the Unix epoch
	Type string          `json:"type,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	// Malformed is non-empty when the record lacks a usable tag or time.
	Malformed string `json:"malformed,omitempty"`
}

// Valid reports whether the event carries both a tag and a time.
func (e Event) Valid() bool {
	return e.Malformed == ""
}

// Label returns the tag's trailing component after its last scope
// delimiter, or the whole tag when it is unscoped.
func (e Event) Label() string {
	return Label(e.Tag)
}

// Label returns tag's trailing component after the last TagScope.
func Label(tag string) string {
	if i := strings.LastIndex(tag, TagScope); i >= 0 {
		return tag[i+len(TagScope):]
	}
	return tag
}

// TagClass groups stream tags by the side of the channel they describe.
type TagClass int

const (
	// ClassOther covers every tag outside the two classes below.
	ClassOther TagClass = iota
	// ClassRead is the read lifecycle: buffer read, read wait, read woken.
	ClassRead
	// ClassWrite is the producer lifecycle: append and half close.
	ClassWrite
)

// String returns the string representation of the class.
func (c TagClass) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassWrite:
		return "write"
	}
	return "other"
}

// Classify returns the class of tag. Labels are compared after lowercasing
// and folding spaces and dashes to underscores, so "read buf", "read_buf"
// and "Read-Buf" are the same tag.
func Classify(tag string) TagClass {
	switch normalizeLabel(Label(tag)) {
	case "read_buf", "read_wait", "read_wake", "read_woken":
		return ClassRead
	case "append", "half_close":
		return ClassWrite
	}
	return ClassOther
}

// IsAppend reports whether tag records a payload append.
func IsAppend(tag string) bool {
	return normalizeLabel(Label(tag)) == "append"
}

var labelFolder = strings.NewReplacer(" ", "_", "-", "_")

func normalizeLabel(label string) string {
	return labelFolder.Replace(strings.ToLower(strings.TrimSpace(label)))
}
