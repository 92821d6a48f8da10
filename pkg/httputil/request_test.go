package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    int
		wantErr bool
	}{
		{"missing uses default", "/search", 10, false},
		{"blank uses default", "/search?limit=%20", 10, false},
		{"valid", "/search?limit=25", 25, false},
		{"padded", "/search?limit=%205", 5, false},
		{"zero", "/search?limit=0", 0, true},
		{"negative", "/search?limit=-1", 0, true},
		{"not a number", "/search?limit=ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QueryLimit(httptest.NewRequest(http.MethodGet, tt.target, nil), "limit", 10)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "limit must be a positive integer")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryParamKeepsSpaces(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/search?q=%20render%20", nil)
	assert.Equal(t, " render ", QueryParam(r, "q"))
	assert.Empty(t, QueryParam(r, "missing"))
}

func TestPathParam(t *testing.T) {
	router := mux.NewRouter()
	var got string
	router.HandleFunc("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, _ = PathParam(w, r, "id")
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/sessions/s-1", nil))
	assert.Equal(t, "s-1", got)

	rec := httptest.NewRecorder()
	_, ok := PathParam(rec, httptest.NewRequest(http.MethodDelete, "/sessions/", nil), "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireQueryParam(t *testing.T) {
	rec := httptest.NewRecorder()
	path, ok := RequireQueryParam(rec, httptest.NewRequest(http.MethodGet, "/lookup?path=alpha::Widget", nil), "path")
	assert.True(t, ok)
	assert.Equal(t, "alpha::Widget", path)

	rec = httptest.NewRecorder()
	_, ok = RequireQueryParam(rec, httptest.NewRequest(http.MethodGet, "/lookup?path=%20%20", nil), "path")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "path is required", body.Error)
}

func TestResponses(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		code  int
	}{
		{"success", func(w http.ResponseWriter) { WriteSuccess(w, map[string]int{"n": 1}) }, http.StatusOK},
		{"created", func(w http.ResponseWriter) { WriteCreated(w, map[string]string{"session_id": "x"}) }, http.StatusCreated},
		{"error", func(w http.ResponseWriter) { WriteError(w, http.StatusConflict, "superseded") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, errors.New("secret dsn")) }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotContains(t, rec.Body.String(), "secret dsn")
		})
	}

	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
