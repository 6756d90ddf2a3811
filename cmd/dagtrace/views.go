package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Short:   "Print every event of the trace on one ordered timeline",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		limit, _ := cmd.Flags().GetInt("limit")

		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		t := sess.Timeline()
		if group != "" || limit > 0 {
			t = filterTimeline(t, group, limit)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		printTimelineTable(cmd.OutOrStdout(), t)
		return nil
	},
}

// filterTimeline keeps the items of group (all when empty), at most limit of
// them (all when zero). Groups and diagnostics are kept whole.
func filterTimeline(t *timeline.Timeline, group string, limit int) *timeline.Timeline {
	out := *t
	out.Items = []timeline.Item{}
	for _, it := range t.Items {
		if group != "" && it.Group != group {
			continue
		}
		if limit > 0 && len(out.Items) == limit {
			break
		}
		out.Items = append(out.Items, it)
	}
	return &out
}

var sliceCmd = &cobra.Command{
	Use:     "slice <node>",
	Short:   "Show a node's own events and the channel activity on its ports",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merged, _ := cmd.Flags().GetBool("merged")

		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		s, err := sess.Slice(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		n, _ := sess.Graph.Node(args[0])
		printSlice(cmd.OutOrStdout(), s, n.Inputs, n.Outputs, merged)
		return nil
	},
}

var payloadCmd = &cobra.Command{
	Use:   "payload <port>",
	Short: "Print the data appended to the channel behind a port",
	Long: `Print the data appended to the channel behind a port.

An input port resolves to the output port feeding it. With --node the
argument names a node and the payloads of all its ports are printed.`,
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		byNode, _ := cmd.Flags().GetBool("node")

		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if byNode {
			np, err := sess.Payloads(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(w, np)
			}
			n, _ := sess.Graph.Node(args[0])
			for _, p := range n.Inputs {
				printPayloads(w, p, np.Inputs[p])
			}
			for _, p := range n.Outputs {
				printPayloads(w, p, np.Outputs[p])
			}
			return nil
		}

		p, err := sess.Payload(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(w, map[string]any{"port": args[0], "payloads": p})
		}
		printPayloads(w, args[0], p)
		return nil
	},
}

var aliasCmd = &cobra.Command{
	Use:     "alias <port>",
	Short:   "Show the writer and reader names of the channel behind a port",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		a, err := sess.Alias(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), a)
		}
		tw := newTable(cmd.OutOrStdout())
		reader := a.Reader
		if reader == "" {
			reader = "(unconnected)"
		}
		for _, row := range [][2]string{
			{"Port:", a.Port}, {"Node:", a.Node}, {"Direction:", a.Direction.String()},
			{"Writer:", a.Writer}, {"Reader:", reader},
		} {
			tw.Write([]byte(row[0] + "\t" + row[1] + "\n")) //nolint:errcheck
		}
		return tw.Flush()
	},
}

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "List nodes, ports, edges and dependencies of the graph",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		g := sess.Graph.Response()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), g)
		}
		printGraph(cmd.OutOrStdout(), g)
		return nil
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:     "diagnostics",
	Short:   "List trace events left out of the timeline and why",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		diags := sess.Timeline().Diagnostics
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string][]model.Diagnostic{"diagnostics": diags})
		}
		printDiagnosticsTable(cmd.OutOrStdout(), diags)
		return nil
	},
}

func init() {
	timelineCmd.Flags().String("group", "", "only show items of this node")
	timelineCmd.Flags().Int("limit", 0, "show at most this many items")
	sliceCmd.Flags().Bool("merged", false, "print one time-ordered list instead of per-port sections")
	payloadCmd.Flags().Bool("node", false, "treat the argument as a node and print every port")
}
