package search

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/httputil"
	"github.com/platinummonkey/docsearch/pkg/observability"
)

// SessionHeader carries the session a query belongs to.
const SessionHeader = "X-Session-ID"

// QueryRecorder records executed queries for suggestions.
type QueryRecorder interface {
	Record(query string, results int, took time.Duration)
}

// Suggester returns previously seen queries starting with prefix.
type Suggester interface {
	Suggestions(ctx context.Context, prefix string, limit int) ([]string, error)
}

// SearchHandlers provides HTTP handlers for search
type SearchHandlers struct {
	engine    *Engine
	sessions  *expirable.LRU[string, *Session]
	recorder  QueryRecorder
	suggester Suggester
	onChange  func(active int)

	// live holds the IDs currently in sessions. The eviction callback runs
	// under the cache's lock, so mu is never held across a cache call.
	mu   sync.Mutex
	live map[string]struct{}
}

// HandlerOption configures SearchHandlers.
type HandlerOption func(*SearchHandlers)

// WithRecorder records every successful query.
func WithRecorder(r QueryRecorder) HandlerOption {
	return func(h *SearchHandlers) { h.recorder = r }
}

// WithSuggester enables GET /suggest.
func WithSuggester(s Suggester) HandlerOption {
	return func(h *SearchHandlers) { h.suggester = s }
}

// WithSessionObserver calls fn with the number of open sessions whenever it
// changes.
func WithSessionObserver(fn func(active int)) HandlerOption {
	return func(h *SearchHandlers) { h.onChange = fn }
}

// NewSearchHandlers creates new search handlers. At most maxSessions
// sessions are kept, each for sessionTTL after its last use.
func NewSearchHandlers(engine *Engine, maxSessions int, sessionTTL time.Duration, opts ...HandlerOption) *SearchHandlers {
	h := &SearchHandlers{
		engine:   engine,
		onChange: func(int) {},
		live:     make(map[string]struct{}),
	}
	h.sessions = expirable.NewLRU[string, *Session](maxSessions, func(id string, s *Session) {
		s.Cancel()
		h.onChange(h.untrack(id))
	}, sessionTTL)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ActiveSessions returns the number of open sessions.
func (h *SearchHandlers) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// track marks id open. It reports the open count and whether id was new.
func (h *SearchHandlers) track(id string) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, seen := h.live[id]
	h.live[id] = struct{}{}
	return len(h.live), !seen
}

func (h *SearchHandlers) untrack(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, id)
	return len(h.live)
}

func (h *SearchHandlers) openSession() string {
	id := uuid.New().String()
	// Counted before Add so that a capacity eviction inside Add reports the
	// final count.
	h.track(id)
	h.sessions.Add(id, h.engine.NewSession())
	h.onChange(h.ActiveSessions())
	return id
}

// touch refreshes the expiry of a session found by Get. If the session
// expired in between, Add stores it again and it is counted anew.
func (h *SearchHandlers) touch(id string, s *Session) {
	h.sessions.Add(id, s)
	if n, added := h.track(id); added {
		h.onChange(n)
	}
}

// RegisterRoutes registers search routes
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/search", h.search).Methods("GET")
	router.HandleFunc("/sessions", h.createSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.deleteSession).Methods("DELETE")
	router.HandleFunc("/lookup", h.lookup).Methods("GET")
	router.HandleFunc("/namespaces", h.namespaces).Methods("GET")
	router.HandleFunc("/stats", h.stats).Methods("GET")
	router.HandleFunc("/suggest", h.suggest).Methods("GET")
}

// search handles GET /search?q=...&limit=...
//
// Requests carrying X-Session-ID run in that session, so a newer request
// supersedes an older one still in flight; the older one gets 409.
func (h *SearchHandlers) search(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryLimit(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := Request{
		Query: httputil.QueryParam(r, "q"),
		Limit: limit,
	}

	start := time.Now()
	var resp *Response
	if id := r.Header.Get(SessionHeader); id != "" {
		session, ok := h.sessions.Get(id)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "unknown session")
			return
		}
		h.touch(id, session)
		w.Header().Set(SessionHeader, id)
		resp, err = session.Search(observability.WithSessionID(r.Context(), id), req)
	} else {
		resp, err = h.engine.Search(r.Context(), req)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.recorder != nil && resp.Mode != ModeEmpty {
		h.recorder.Record(req.Query, resp.TotalCount, time.Since(start))
	}
	httputil.WriteSuccess(w, resp)
}

// createSession handles POST /sessions
func (h *SearchHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	id := h.openSession()
	w.Header().Set(SessionHeader, id)
	httputil.WriteCreated(w, map[string]string{"session_id": id})
}

// deleteSession handles DELETE /sessions/{id}
func (h *SearchHandlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathParam(w, r, "id")
	if !ok {
		return
	}
	if !h.sessions.Remove(id) {
		httputil.WriteError(w, http.StatusNotFound, "unknown session")
		return
	}
	httputil.WriteNoContent(w)
}

// lookup handles GET /lookup?path=ns::path::name
func (h *SearchHandlers) lookup(w http.ResponseWriter, r *http.Request) {
	path, ok := httputil.RequireQueryParam(w, r, "path")
	if !ok {
		return
	}
	result, err := h.engine.Lookup(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// namespaces handles GET /namespaces
func (h *SearchHandlers) namespaces(w http.ResponseWriter, r *http.Request) {
	nss, err := h.engine.Namespaces()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, nss)
}

// stats handles GET /stats
func (h *SearchHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, version, err := h.engine.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"version": version,
		"stats":   stats,
	})
}

// suggest handles GET /suggest?prefix=...&limit=...
func (h *SearchHandlers) suggest(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "suggestions are disabled")
		return
	}
	limit, err := httputil.QueryLimit(r, "limit", 10)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit > 100 {
		limit = 100
	}

	suggestions, err := h.suggester.Suggestions(r.Context(), httputil.QueryParam(r, "prefix"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"suggestions": suggestions})
}

func (h *SearchHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSuperseded):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		observability.FromContext(r.Context()).Debug("request cancelled")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("search request failed")
		httputil.WriteInternalError(w, err)
	}
}
