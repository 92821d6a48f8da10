package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, v interface{}) error {
	return WriteJSON(w, http.StatusOK, v)
}

func WriteCreated(w http.ResponseWriter, v interface{}) error {
	return WriteJSON(w, http.StatusCreated, v)
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError replies with an ErrorResponse carrying message.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteInternalError replies 500 with the generic status text. err is never
// sent to the client.
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
