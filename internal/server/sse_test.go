package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/dagtrace/internal/events"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicSessionLoaded, []byte(`{"session_id":"run-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicSessionLoaded || string(evt.Data) != `{"session_id":"run-1"}` || evt.ID != 1 {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe([]string{"dagtrace.session.failed"})
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicSessionReloaded, []byte(`{}`))
	hub.broadcast(events.TopicSessionFailed, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicSessionFailed {
			t.Fatalf("topic = %q", evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: %q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe(nil)
	hub.unsubscribe(client)

	hub.broadcast(events.TopicSessionLoaded, []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := newSSEHub()
	if got := hub.eventsSince(0); len(got) != 0 {
		t.Fatalf("empty hub returned %d events", len(got))
	}
	for range 5 {
		hub.broadcast(events.TopicSessionReloaded, []byte(`{}`))
	}
	got := hub.eventsSince(2)
	if len(got) != 3 || got[0].ID != 3 || got[2].ID != 5 {
		t.Fatalf("eventsSince(2) = %+v", got)
	}
}

func TestSSEHub_HistoryBounded(t *testing.T) {
	hub := newSSEHub()
	for range sseReplaySize + 10 {
		hub.broadcast(events.TopicSessionReloaded, []byte(`{}`))
	}
	got := hub.eventsSince(0)
	if len(got) != sseReplaySize {
		t.Fatalf("history = %d, want %d", len(got), sseReplaySize)
	}
	if got[0].ID != 11 {
		t.Fatalf("oldest ID = %d, want 11", got[0].ID)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"dagtrace.session.loaded", "dagtrace.session.loaded", true},
		{"dagtrace.session.loaded", "dagtrace.session.failed", false},
		{"dagtrace.session.*", "dagtrace.session.reloaded", true},
		{"dagtrace.*", "dagtrace.session.reloaded", false},
		{"dagtrace.>", "dagtrace.session.reloaded", true},
		{"dagtrace.>", "dagtrace", false},
		{"dagtrace.>", "other.session.loaded", false},
		{"*.*.*", "dagtrace.session.failed", true},
		{"*.*.*", "dagtrace.session", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// streamFor runs one SSE request until stop is called and returns its body.
func streamFor(t *testing.T, env *testEnv, path, lastID string, during func()) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	if during != nil {
		during()
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	return rec.Body.String()
}

func TestHandleEventStream_Reload(t *testing.T) {
	env := newTestServer()
	body := streamFor(t, env, "/v1/events/stream", "", func() {
		if _, err := env.holder.Reload(context.Background(), ""); err != nil {
			t.Errorf("Reload: %v", err)
		}
	})

	if strings.Contains(body, "event:"+topicSessionCurrent) {
		t.Errorf("snapshot sent before any session was loaded:\n%s", body)
	}
	if !strings.Contains(body, "event:dagtrace.session.loaded") {
		t.Fatalf("missing loaded event:\n%s", body)
	}
	if !strings.Contains(body, `"session_id":"run-http"`) {
		t.Fatalf("missing session id:\n%s", body)
	}
}

func TestHandleEventStream_Snapshot(t *testing.T) {
	env := newLoadedServer(t)
	body := streamFor(t, env, "/v1/events/stream", "", nil)

	scanner := bufio.NewScanner(strings.NewReader(body))
	var event, data string
	sawID := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			sawID = true
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
	if event != topicSessionCurrent {
		t.Fatalf("event = %q, want %q", event, topicSessionCurrent)
	}
	if sawID {
		t.Error("snapshot carried an id")
	}
	if !json.Valid([]byte(data)) {
		t.Fatalf("invalid JSON data %q", data)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	env := newLoadedServer(t)
	env.trace.set(`{`)
	body := streamFor(t, env, "/v1/events/stream?topics=dagtrace.session.failed", "", func() {
		_, _ = env.holder.Reload(context.Background(), "")
	})
	if strings.Contains(body, topicSessionCurrent) {
		t.Errorf("snapshot not filtered:\n%s", body)
	}
	if !strings.Contains(body, "event:dagtrace.session.failed") {
		t.Fatalf("missing failed event:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	env := newTestServer()
	env.srv.hub.broadcast(events.TopicSessionLoaded, []byte(`{"n":1}`))
	env.srv.hub.broadcast(events.TopicSessionReloaded, []byte(`{"n":2}`))
	env.srv.hub.broadcast(events.TopicSessionReloaded, []byte(`{"n":3}`))

	body := streamFor(t, env, "/v1/events/stream", "1", nil)
	if strings.Contains(body, `data:{"n":1}`) {
		t.Errorf("event 1 replayed:\n%s", body)
	}
	for _, want := range []string{`id:2`, `data:{"n":2}`, `id:3`, `data:{"n":3}`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s:\n%s", want, body)
		}
	}
}

func TestBroadcaster_Forwards(t *testing.T) {
	next := &countingPublisher{}
	b := NewBroadcaster(next)
	client := b.hub.subscribe(nil)
	defer b.hub.unsubscribe(client)

	if err := b.Publish(context.Background(), events.TopicSessionFailed, events.SessionFailed{Error: "x"}); err != nil {
		t.Fatal(err)
	}
	if next.n != 1 {
		t.Errorf("forwarded %d events, want 1", next.n)
	}
	select {
	case evt := <-client.ch:
		if !strings.Contains(string(evt.Data), `"error":"x"`) {
			t.Errorf("data = %s", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no SSE event")
	}
}

type countingPublisher struct{ n int }

func (p *countingPublisher) Publish(context.Context, string, any) error {
	p.n++
	return nil
}

func (p *countingPublisher) Close() error { return nil }
