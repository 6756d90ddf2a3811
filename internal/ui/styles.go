package ui

import (
	"fmt"

	"github.com/alfredjeanlab/dagtrace/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorWrite  = 114 // green
	colorWarn   = 215 // orange
	colorMuted  = 245 // medium gray
)

// groupColors cycles across timeline lanes.
var groupColors = []int{74, 114, 180, 139, 73, 215, 110, 174}

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderGroup colors a node name by its timeline group id so that each lane
// keeps one color across the output.
func RenderGroup(id int, name string) string {
	if id < 0 {
		id = -id
	}
	return paint(groupColors[id%len(groupColors)], name)
}

// RenderTag colors an event label by its lifecycle class: reads in the
// accent color, writes in green, everything else unstyled.
func RenderTag(tag, label string) string {
	switch model.Classify(tag) {
	case model.ClassRead:
		return paint(colorAccent, label)
	case model.ClassWrite:
		return paint(colorWrite, label)
	}
	return label
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
