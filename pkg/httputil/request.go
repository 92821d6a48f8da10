package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// QueryParam returns the raw value of a query parameter. Surrounding spaces
// are kept since they are significant in search text.
func QueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// QueryLimit parses a positive integer query parameter. An absent or blank
// parameter yields def.
func QueryLimit(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

// RequireQueryParam returns a non-blank query parameter, or writes a 400
// and reports false.
func RequireQueryParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val := QueryParam(r, key)
	if strings.TrimSpace(val) == "" {
		WriteError(w, http.StatusBadRequest, key+" is required")
		return "", false
	}
	return val, true
}

// PathParam returns a mux route variable, or writes a 400 and reports false.
func PathParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val := mux.Vars(r)[key]
	if val == "" {
		WriteError(w, http.StatusBadRequest, "missing path parameter: "+key)
		return "", false
	}
	return val, true
}
