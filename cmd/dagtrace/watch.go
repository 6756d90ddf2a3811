package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dagtrace/internal/events"
	"github.com/alfredjeanlab/dagtrace/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Print session events published by a running server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		if cfg.NATSURL == "" {
			return fmt.Errorf("watch needs a NATS server (DAGTRACE_NATS_URL or nats_url in the config file)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchEvents(ctx, cmd.OutOrStdout(), cfg.NATSURL, topic)
	},
}

// watchEvents prints every message on topic until ctx is done.
func watchEvents(ctx context.Context, w io.Writer, natsURL, topic string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printSessionEvent(w, msg)
		}
	}
}

// sessionEnvelope covers the fields shared by every session event.
type sessionEnvelope struct {
	Session  *events.SessionSummary `json:"session"`
	Previous string                 `json:"previous_session_id"`
	Trigger  string                 `json:"trigger"`
	Graph    string                 `json:"graph"`
	Trace    string                 `json:"trace"`
	Error    string                 `json:"error"`
}

func printSessionEvent(w io.Writer, msg events.Message) {
	data := msg.Data
	if jsonOutput {
		fmt.Fprintln(w, string(data))
		return
	}
	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Fprintf(w, "%s %s %s\n", ui.RenderWarn("unreadable event on"), msg.Topic, data)
		return
	}
	now := time.Now().Format("15:04:05")
	switch {
	case env.Error != "":
		fmt.Fprintf(w, "%s %s %s (graph %s, trace %s)\n",
			ui.RenderMuted(now), ui.RenderWarn("load failed:"), env.Error, env.Graph, env.Trace)
	case env.Session != nil:
		s := env.Session
		verb := "loaded"
		if env.Previous != "" {
			verb = "reloaded (was " + env.Previous + ")"
		}
		fmt.Fprintf(w, "%s %s %s: %d items, %d dropped, %d events from %s\n",
			ui.RenderMuted(now), ui.RenderAccent(s.SessionID), verb, s.Items, s.Dropped, s.Events, s.Trace)
	default:
		fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(now), msg.Topic, data)
	}
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "NATS subject to follow")
}
