package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *fakeRecorder) Record(query string, results int, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
}

type fakeSuggester struct {
	err error
}

func (s fakeSuggester) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{prefix + "der", prefix + "der kind:fn"}[:min(limit, 2)], nil
}

func setupTestRouter(t *testing.T, engine *Engine, opts ...HandlerOption) (*mux.Router, *SearchHandlers) {
	t.Helper()
	h := NewSearchHandlers(engine, 16, time.Minute, opts...)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router, h
}

func doRequest(router http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_Search(t *testing.T) {
	recorder := &fakeRecorder{}
	router, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))), WithRecorder(recorder))

	rec := doRequest(router, "GET", "/search?q=render", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "render", resp.Query)
	assert.Equal(t, ModeName, resp.Mode)
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, []string{"alpha::Widget::render", "beta::widget_render"}, fullPaths(resp.Results))

	rec = doRequest(router, "GET", "/search?q=rend&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Results, 1)

	rec = doRequest(router, "GET", "/search", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Results)

	assert.Equal(t, []string{"render", "rend"}, recorder.queries, "empty queries are not recorded")
}

func TestHandlers_SearchErrors(t *testing.T) {
	router, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))))

	rec := doRequest(router, "GET", "/search?q=render+kind:bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "GET", "/search?q=render&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "GET", "/search?q=render", map[string]string{SessionHeader: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, "POST", "/search?q=render", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	empty, _ := setupTestRouter(t, NewEngine(Static(nil)))
	rec = doRequest(empty, "GET", "/search?q=render", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlers_Sessions(t *testing.T) {
	router, h := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))))

	rec := doRequest(router, "POST", "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	id := created["session_id"]
	require.NotEmpty(t, id)
	assert.Equal(t, id, rec.Header().Get(SessionHeader))
	assert.Equal(t, 1, h.sessions.Len())
	assert.Equal(t, 1, h.ActiveSessions())

	for _, q := range []string{"r", "re", "rend"} {
		rec = doRequest(router, "GET", "/search?q="+q, map[string]string{SessionHeader: id})
		require.Equal(t, http.StatusOK, rec.Code, q)
		assert.Equal(t, id, rec.Header().Get(SessionHeader))
	}

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"alpha::Widget::render", "beta::widget_render"}, fullPaths(resp.Results))

	rec = doRequest(router, "DELETE", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, h.ActiveSessions())

	rec = doRequest(router, "DELETE", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_SupersededSessionRequest(t *testing.T) {
	src := newGateSource(scenarioCatalog(t))
	router, h := setupTestRouter(t, NewEngine(src))

	id := h.openSession()
	header := map[string]string{SessionHeader: id}

	codes := make(chan int, 1)
	go func() {
		codes <- doRequest(router, "GET", "/search?q=rend", header).Code
	}()
	<-src.entered

	rec := doRequest(router, "GET", "/search?q=render", header)
	assert.Equal(t, http.StatusOK, rec.Code)

	close(src.release)
	select {
	case code := <-codes:
		assert.Equal(t, http.StatusConflict, code)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded request never returned")
	}
}

func TestHandlers_Lookup(t *testing.T) {
	router, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))))

	rec := doRequest(router, "GET", "/lookup?path=alpha::Widget::render", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "alpha::Widget::render", result.FullPath)

	rec = doRequest(router, "GET", "/lookup?path=alpha::Nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, "GET", "/lookup", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "path is required")
}

func TestHandlers_NamespacesAndStats(t *testing.T) {
	router, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))))

	rec := doRequest(router, "GET", "/namespaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nss []NamespaceInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&nss))
	require.Len(t, nss, 2)
	assert.Equal(t, "alpha", nss[0].ID)

	rec = doRequest(router, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"items":3`))
}

func TestHandlers_Suggest(t *testing.T) {
	router, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))), WithSuggester(fakeSuggester{}))

	rec := doRequest(router, "GET", "/suggest?prefix=ren&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"render"}, body["suggestions"])

	rec = doRequest(router, "GET", "/suggest?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))), WithSuggester(fakeSuggester{err: errors.New("db down")}))
	rec = doRequest(failing, "GET", "/suggest?prefix=ren", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	disabled, _ := setupTestRouter(t, NewEngine(Static(scenarioCatalog(t))))
	rec = doRequest(disabled, "GET", "/suggest?prefix=ren", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlers_SessionObserverOnEviction(t *testing.T) {
	var seen []int
	h := NewSearchHandlers(NewEngine(Static(scenarioCatalog(t))), 2, time.Minute,
		WithSessionObserver(func(active int) { seen = append(seen, active) }))

	first := h.openSession()
	h.openSession()
	h.openSession() // evicts the oldest

	_, ok := h.sessions.Get(first)
	assert.False(t, ok)
	assert.Equal(t, 2, h.ActiveSessions())
	assert.Equal(t, []int{1, 2, 2, 2}, seen)
}

func TestHandlers_SessionCountSurvivesEvictionDuringRefresh(t *testing.T) {
	var seen []int
	h := NewSearchHandlers(NewEngine(Static(scenarioCatalog(t))), 4, time.Minute,
		WithSessionObserver(func(active int) { seen = append(seen, active) }))

	id := h.openSession()
	session, ok := h.sessions.Get(id)
	require.True(t, ok)

	// The session expires between the lookup and the refresh.
	require.True(t, h.sessions.Remove(id))
	assert.Equal(t, 0, h.ActiveSessions())

	h.touch(id, session)
	assert.Equal(t, 1, h.sessions.Len())
	assert.Equal(t, 1, h.ActiveSessions())

	// Refreshing a live session does not count it twice.
	h.touch(id, session)
	assert.Equal(t, 1, h.ActiveSessions())
	assert.Equal(t, []int{1, 0, 1}, seen)
}
