package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/dagtrace/internal/model"
	"github.com/alfredjeanlab/dagtrace/internal/session"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
//
// Port names contain slashes, so port routes take the rest of the path.
func (s *TraceServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/session", s.handleGetSession)
	mux.HandleFunc("POST /v1/session/reload", s.handleReload)
	mux.HandleFunc("GET /v1/graph", s.handleGetGraph)
	mux.HandleFunc("GET /v1/timeline", s.handleGetTimeline)
	mux.HandleFunc("GET /v1/diagnostics", s.handleGetDiagnostics)
	mux.HandleFunc("GET /v1/nodes/{name}/slice", s.handleGetSlice)
	mux.HandleFunc("GET /v1/nodes/{name}/payloads", s.handleGetNodePayloads)
	mux.HandleFunc("GET /v1/payloads/{port...}", s.handleGetPayload)
	mux.HandleFunc("GET /v1/aliases/{port...}", s.handleGetAlias)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *TraceServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if _, err := s.sessions.Current(); err != nil {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleGetSession handles GET /v1/session.
func (s *TraceServer) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleReload handles POST /v1/session/reload.
func (s *TraceServer) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Reload(r.Context(), "api")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrParse) || errors.Is(err, model.ErrAliasConflict) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleGetGraph handles GET /v1/graph.
func (s *TraceServer) handleGetGraph(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Graph.Response())
}

// handleGetTimeline handles GET /v1/timeline.
// With ?group=<node> only that node's items are returned; groups and
// diagnostics are always complete.
func (s *TraceServer) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	t := sess.Timeline()
	group := r.URL.Query().Get("group")
	if group == "" {
		writeJSON(w, http.StatusOK, t)
		return
	}

	filtered := *t
	filtered.Items = filtered.Items[:0:0]
	for _, it := range t.Items {
		if it.Group == group {
			filtered.Items = append(filtered.Items, it)
		}
	}
	writeJSON(w, http.StatusOK, &filtered)
}

// handleGetDiagnostics handles GET /v1/diagnostics.
func (s *TraceServer) handleGetDiagnostics(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnostics": sess.Timeline().Diagnostics})
}

// handleGetSlice handles GET /v1/nodes/{name}/slice.
func (s *TraceServer) handleGetSlice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	ns, err := sess.Slice(r.PathValue("name"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

// handleGetNodePayloads handles GET /v1/nodes/{name}/payloads.
func (s *TraceServer) handleGetNodePayloads(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	np, err := sess.Payloads(r.PathValue("name"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

// handleGetPayload handles GET /v1/payloads/{port...}.
func (s *TraceServer) handleGetPayload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	port := r.PathValue("port")
	p, err := sess.Payload(port)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"port": port, "payloads": p})
}

// handleGetAlias handles GET /v1/aliases/{port...}.
func (s *TraceServer) handleGetAlias(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	pa, err := sess.Alias(r.PathValue("port"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pa)
}

// current writes 503 and returns false while no session is loaded.
func (s *TraceServer) current(w http.ResponseWriter) (*session.Session, bool) {
	sess, err := s.sessions.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return nil, false
	}
	return sess, true
}

// writeLookupError maps unknown nodes and ports to 404.
func writeLookupError(w http.ResponseWriter, err error) {
	if model.IsLookupError(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
