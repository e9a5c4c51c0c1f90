package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eraycc/g4f-azure/pkg/upstream"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message, Type: errType}})
}

// writeUpstreamError surfaces upstream failures verbatim: a typed HTTPError
// keeps its upstream status code and body; anything else (network error,
// timeout) becomes a 502.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var httpErr *upstream.HTTPError
	if errors.As(err, &httpErr) {
		writeError(w, httpErr.StatusCode, httpErr.Body, "upstream_error")
		return
	}
	writeError(w, http.StatusBadGateway, err.Error(), "upstream_error")
}
