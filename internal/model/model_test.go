package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestLabel(t *testing.T) {
	for _, tc := range []struct {
		tag  string
		want string
	}{
		{"PipeStreamBase::read buf", "read buf"},
		{"a::b::c", "c"},
		{"plain", "plain"},
		{"trailing::", ""},
		{"", ""},
	} {
		if got := Label(tc.tag); got != tc.want {
			t.Errorf("Label(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		tag  string
		want TagClass
	}{
		{"PipeStreamBase::read buf", ClassRead},
		{"PipeStreamBase::read wait", ClassRead},
		{"PipeStreamBase::read wake", ClassRead},
		{"read_buf", ClassRead},
		{"read_woken", ClassRead},
		{"Read-Buf", ClassRead},
		{"PipeStreamBase::append", ClassWrite},
		{"PipeStreamBase::half_close", ClassWrite},
		{"half close", ClassWrite},
		{"PipeStreamBase::close", ClassOther},
		{"PipeStreamBase::wait wait", ClassOther},
		{"read", ClassOther},
		{"", ClassOther},
	} {
		if got := Classify(tc.tag); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func TestTagClass_String(t *testing.T) {
	for _, tc := range []struct {
		class TagClass
		want  string
	}{
		{ClassRead, "read"},
		{ClassWrite, "write"},
		{ClassOther, "other"},
	} {
		if got := tc.class.String(); got != tc.want {
			t.Errorf("TagClass(%d).String() = %q, want %q", tc.class, got, tc.want)
		}
	}
}

func TestIsAppend(t *testing.T) {
	if !IsAppend("PipeStreamBase::append") {
		t.Error("IsAppend(append) = false")
	}
	if IsAppend("PipeStreamBase::half_close") {
		t.Error("IsAppend(half_close) = true")
	}
}

func TestEvent_Valid(t *testing.T) {
	if !(Event{Tag: "x", Time: 1}).Valid() {
		t.Error("well-formed event reported invalid")
	}
	if (Event{Malformed: "missing time"}).Valid() {
		t.Error("malformed event reported valid")
	}
}

func TestDependencyType_IsValid(t *testing.T) {
	for _, tc := range []struct {
		typ  DependencyType
		want bool
	}{
		{DepSync, true},
		{DepAsync, true},
		{DependencyType("custom"), true},
		{DependencyType(""), false},
		{DependencyType(string(make([]byte, 51))), false},
	} {
		if got := tc.typ.IsValid(); got != tc.want {
			t.Errorf("DependencyType(%q).IsValid() = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestIsLookupError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: %q", ErrUnknownNode, "x"), true},
		{fmt.Errorf("node %q: %w", "B", fmt.Errorf("%w: y", ErrUnknownPort)), true},
		{ErrParse, false},
		{errors.New("other"), false},
		{nil, false},
	} {
		if got := IsLookupError(tc.err); got != tc.want {
			t.Errorf("IsLookupError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
