package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/slicer"
	"github.com/alfredjeanlab/dagtrace/internal/timeline"
	"github.com/alfredjeanlab/dagtrace/internal/ui"
)

// dataWidth caps inline payloads in tables.
const dataWidth = 60

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// compactData renders a raw payload on one line.
func compactData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return ui.Truncate(buf.String(), dataWidth)
}

// printTimelineTable lists items in order with their offset from the first.
// Only the last column is colored so tabwriter alignment holds.
func printTimelineTable(w io.Writer, t *timeline.Timeline) {
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tSTART\t+MS\tGROUP\tSOURCE\tEVENT")
	var first int64
	for i, it := range t.Items {
		if i == 0 {
			first = it.TimeUS
		}
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\t%s\t%s\n",
			it.ID,
			it.Start,
			float64(it.TimeUS-first)/1000,
			it.Group,
			it.Source,
			ui.RenderTag(it.Tag, it.Label),
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d items in %d groups", len(t.Items), len(t.Groups))
	if n := t.Dropped(); n > 0 {
		fmt.Fprint(w, ", ", ui.RenderWarn(fmt.Sprintf("%d dropped (see diagnostics)", n)))
	}
	fmt.Fprintln(w)
}

func printDiagnosticsTable(w io.Writer, diags []model.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintln(w, "No dropped events.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "KIND\tSOURCE\tOWNER\tINDEX\tTAG\tREASON")
	for _, d := range diags {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", d.Kind, d.Source, d.Owner, d.Index, d.Tag, d.Reason)
	}
	tw.Flush()
}

func printEvents(w io.Writer, indent string, evs []model.Event) {
	if len(evs) == 0 {
		fmt.Fprintf(w, "%s%s\n", indent, ui.RenderMuted("(none)"))
		return
	}
	for _, e := range evs {
		if !e.Valid() {
			fmt.Fprintf(w, "%s%s %s\n", indent, ui.RenderWarn("malformed:"), e.Malformed)
			continue
		}
		line := fmt.Sprintf("%s%-16d %s", indent, e.Time, ui.RenderTag(e.Tag, e.Label()))
		if d := compactData(e.Data); d != "" {
			line += " " + ui.RenderMuted(d)
		}
		fmt.Fprintln(w, line)
	}
}

// printSlice prints own, input, and output events per port, or only the
// merged view when merged is set.
func printSlice(w io.Writer, s *slicer.NodeSlice, inputs, outputs []string, merged bool) {
	fmt.Fprintf(w, "%s %s\n", ui.RenderAccent("Node:"), s.Node)
	if merged {
		for _, e := range s.Merged {
			src := string(e.Origin)
			if e.Port != "" {
				src += " " + e.Port
			}
			fmt.Fprintf(w, "  %-16d %-24s %s\n", e.Time, src, ui.RenderTag(e.Tag, e.Label()))
		}
		return
	}

	fmt.Fprintln(w, ui.RenderAccent("Own:"))
	printEvents(w, "  ", s.Own)
	for _, p := range inputs {
		fmt.Fprintf(w, "%s %s\n", ui.RenderAccent("Input:"), p)
		printEvents(w, "  ", s.Inputs[p])
	}
	for _, p := range outputs {
		fmt.Fprintf(w, "%s %s\n", ui.RenderAccent("Output:"), p)
		printEvents(w, "  ", s.Outputs[p])
	}
}

func printPayloads(w io.Writer, port string, payloads []json.RawMessage) {
	fmt.Fprintf(w, "%s %s (%d)\n", ui.RenderAccent("Port:"), port, len(payloads))
	for i, p := range payloads {
		fmt.Fprintf(w, "  [%d] %s\n", i, compactData(p))
	}
}

func printGraph(w io.Writer, g *model.GraphResponse) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NODE\tTYPE\tINPUTS\tOUTPUTS\tDEPENDS")
	for _, n := range g.Nodes {
		var deps []string
		for _, d := range n.Depends {
			deps = append(deps, fmt.Sprintf("%s:%s", d.Type, strings.Join(d.DependentNodes, ",")))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.Name, n.Type,
			strings.Join(n.Inputs, ","),
			strings.Join(n.Outputs, ","),
			strings.Join(deps, " "),
		)
	}
	tw.Flush()

	if len(g.Edges) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.RenderAccent("Edges:"))
		for _, e := range g.Edges {
			fmt.Fprintf(w, "  %s -> %s\n", e.From, e.To)
		}
	}

	order := make([]string, len(g.Order))
	for i, name := range g.Order {
		order[i] = ui.RenderGroup(i, name)
	}
	fmt.Fprintf(w, "\n%s %s\n", ui.RenderAccent("Order:"), strings.Join(order, " "))
}
