// Package server exposes a loaded trace session over HTTP: the timeline,
// node slices, port payloads, and a server-sent event stream of reloads.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/dagtrace/internal/events"
	"github.com/alfredjeanlab/dagtrace/internal/metrics"
	"github.com/alfredjeanlab/dagtrace/internal/session"
)

// Sessions is the part of session.Holder the server needs.
type Sessions interface {
	Current() (*session.Session, error)
	Reload(ctx context.Context, trigger string) (*session.Session, error)
}

// TraceServer serves the current session of a Sessions provider.
type TraceServer struct {
	sessions Sessions
	metrics  *metrics.Metrics
	hub      *sseHub
	logger   *slog.Logger
}

// NewTraceServer returns a server for sessions. events must be the
// Broadcaster the sessions publish through; m and logger may be nil.
func NewTraceServer(sessions Sessions, events *Broadcaster, m *metrics.Metrics, logger *slog.Logger) *TraceServer {
	hub := newSSEHub()
	if events != nil {
		hub = events.hub
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceServer{
		sessions: sessions,
		metrics:  m,
		hub:      hub,
		logger:   logger,
	}
}

// Broadcaster is an events.Publisher that fans every event out to connected
// SSE clients before forwarding it to the next publisher.
type Broadcaster struct {
	next events.Publisher
	hub  *sseHub
}

// NewBroadcaster wraps next, which may be nil.
func NewBroadcaster(next events.Publisher) *Broadcaster {
	if next == nil {
		next = &events.NoopPublisher{}
	}
	return &Broadcaster{next: next, hub: newSSEHub()}
}

func (b *Broadcaster) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
	} else {
		b.hub.broadcast(topic, payload)
	}
	return b.next.Publish(ctx, topic, event)
}

func (b *Broadcaster) Close() error {
	return b.next.Close()
}
