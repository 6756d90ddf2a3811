package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicSessionLoaded   = "dagtrace.session.loaded"
	TopicSessionReloaded = "dagtrace.session.reloaded"
	TopicSessionFailed   = "dagtrace.session.failed"

	// TopicAll matches every dagtrace subject.
	TopicAll = "dagtrace.>"
)

// Event types

// SessionSummary describes a loaded graph and trace pair.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Graph     string    `json:"graph"`
	Trace     string    `json:"trace"`
	Nodes     int       `json:"nodes"`
	Streams   int       `json:"streams"`
	Events    int       `json:"events"`
	Malformed int       `json:"malformed"`
	Items     int       `json:"items"`
	Dropped   int       `json:"dropped"`
	LoadedAt  time.Time `json:"loaded_at"`
}

type SessionLoaded struct {
	Session SessionSummary `json:"session"`
}

type SessionReloaded struct {
	Session  SessionSummary `json:"session"`
	Previous string         `json:"previous_session_id,omitempty"`
	Trigger  string         `json:"trigger,omitempty"` // path that changed, if any
}

type SessionFailed struct {
	Graph string `json:"graph"`
	Trace string `json:"trace"`
	Error string `json:"error"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher discards every event. Used when no NATS server is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers messages matching topic on the returned channel until
	// the returned cancel function is called, which also closes the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
