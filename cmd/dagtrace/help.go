package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dagtrace/internal/ui"
)

var (
	// "  timeline    Print the merged timeline"
	reCommandLine = regexp.MustCompile(`^(  )(\S+)(\s{2,}.*)$`)

	// "  -g, --graph string   graph document ..." or "      --json   output as JSON"
	reFlagLine = regexp.MustCompile(`^(\s+)((?:-\w, )?--[\w-]+)( [a-z]\w*)?(\s{2,}.*)$`)

	reDefault = regexp.MustCompile(`\(default [^)]*\)`)
)

// helpStyle renders the pieces of a help screen. Command groups are painted
// in their timeline lane colors so "Views:" and "System:" stay apart.
type helpStyle struct {
	group   func(index int, title string) string
	section func(string) string
	command func(string) string
	flag    func(string) string
	muted   func(string) string
}

var terminalHelpStyle = helpStyle{
	group:   ui.RenderGroup,
	section: ui.RenderAccent,
	command: ui.RenderCommand,
	flag:    ui.RenderAccent,
	muted:   ui.RenderMuted,
}

type helpSection int

const (
	sectionText helpSection = iota
	sectionCommands
	sectionFlags
)

// colorizedHelpFunc returns a Cobra help function that styles the usage text
// of a command when the terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		orig := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)
		fmt.Fprint(orig, colorizeHelp(buf.String(), cmd.Root().Groups(), terminalHelpStyle))
	}
}

// colorizeHelpOutput styles s with the terminal palette and the root
// command's groups.
func colorizeHelpOutput(s string) string {
	return colorizeHelp(s, rootCmd.Groups(), terminalHelpStyle)
}

// colorizeHelp walks the usage text line by line. Section headers decide how
// the indented lines below them are read: command listings under group
// titles, flag tables under "Flags:" and "Global Flags:". "Usage:" and the
// free text sections are left alone.
func colorizeHelp(s string, groups []*cobra.Group, st helpStyle) string {
	groupIndex := make(map[string]int, len(groups))
	for i, g := range groups {
		groupIndex[g.Title] = i
	}

	lines := strings.Split(s, "\n")
	section := sectionText
	for i, line := range lines {
		if line == "" {
			continue
		}
		if line[0] != ' ' {
			title := strings.TrimSpace(line)
			switch {
			case title == "Flags:" || title == "Global Flags:":
				section = sectionFlags
				lines[i] = st.section(title)
			case title == "Available Commands:" || title == "Additional Commands:":
				section = sectionCommands
				lines[i] = st.section(title)
			default:
				if idx, ok := groupIndex[title]; ok {
					section = sectionCommands
					lines[i] = st.group(idx, title)
				} else {
					section = sectionText
				}
			}
			continue
		}

		switch section {
		case sectionCommands:
			if m := reCommandLine.FindStringSubmatch(line); m != nil {
				lines[i] = m[1] + st.command(m[2]) + m[3]
			}
		case sectionFlags:
			if m := reFlagLine.FindStringSubmatch(line); m != nil {
				typ := m[3]
				if typ != "" {
					typ = " " + st.muted(typ[1:])
				}
				lines[i] = m[1] + st.flag(m[2]) + typ + reDefault.ReplaceAllStringFunc(m[4], st.muted)
			}
		}
	}
	return strings.Join(lines, "\n")
}
