package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/alfredjeanlab/dagtrace/internal/events"
	"github.com/alfredjeanlab/dagtrace/internal/source"
)

// ErrNoSession is returned by Holder.Current before the first successful load.
var ErrNoSession = errors.New("no session loaded")

// Holder owns the current session and replaces it on reload. Readers never
// block on a reload; a failed reload keeps the previous session.
type Holder struct {
	graphSrc source.Source
	traceSrc source.Source
	pub      events.Publisher
	opts     Options

	reloadMu sync.Mutex
	cur      atomic.Pointer[Session]
}

// NewHolder creates a holder. pub may be nil.
func NewHolder(graphSrc, traceSrc source.Source, pub events.Publisher, opts Options) *Holder {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Holder{graphSrc: graphSrc, traceSrc: traceSrc, pub: pub, opts: opts}
}

// Current returns the loaded session.
func (h *Holder) Current() (*Session, error) {
	s := h.cur.Load()
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

// Sources returns the graph and trace sources.
func (h *Holder) Sources() (graphSrc, traceSrc source.Source) {
	return h.graphSrc, h.traceSrc
}

// Reload loads both documents again and swaps the session in. trigger names
// what caused the reload and is only reported in events.
func (h *Holder) Reload(ctx context.Context, trigger string) (*Session, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	log := h.opts.logger()
	s, err := Load(ctx, h.graphSrc, h.traceSrc, h.opts)
	h.opts.Metrics.ObserveReload(err)
	if err != nil {
		log.Error("session load failed", "graph", h.graphSrc.URI(), "trace", h.traceSrc.URI(), "error", err)
		if perr := h.pub.Publish(ctx, events.TopicSessionFailed, events.SessionFailed{
			Graph: h.graphSrc.URI(),
			Trace: h.traceSrc.URI(),
			Error: err.Error(),
		}); perr != nil {
			log.Warn("publish failed", "topic", events.TopicSessionFailed, "error", perr)
		}
		return nil, err
	}

	summary := s.Summary()
	prev := h.cur.Swap(s)

	topic, event := events.TopicSessionLoaded, any(events.SessionLoaded{Session: summary})
	if prev != nil {
		topic = events.TopicSessionReloaded
		event = events.SessionReloaded{Session: summary, Previous: prev.ID, Trigger: trigger}
	}
	if err := h.pub.Publish(ctx, topic, event); err != nil {
		log.Warn("publish failed", "topic", topic, "error", err)
	}
	return s, nil
}
