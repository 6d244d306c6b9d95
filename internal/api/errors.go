package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/sunwatch/internal/refresh"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// OfflineResponse is returned by snapshot endpoints when no data can be served.
type OfflineResponse struct {
	Error     string        `json:"error"`
	Status    OfflineStatus `json:"status"`
	Timestamp string        `json:"timestamp"`
}

// OfflineStatus marks the installation as unreachable.
type OfflineStatus struct {
	Online bool `json:"online"`
}

// writeJSON writes a JSON response with the given status code and payload.
// The payload is encoded before the header is sent, so an unencodable
// value becomes a 500 rather than an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var body []byte
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			status = http.StatusInternalServerError
			data, _ = json.Marshal(Error{ //nolint:errcheck // Error always encodes
				Status:  status,
				Code:    ErrCodeInternal,
				Message: "failed to encode response",
			})
		}
		body = append(data, '\n')
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		w.Write(body)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeOffline writes a 503 with the offline payload when err comes from a
// refresh cycle. Any other error is a 500.
func writeOffline(w http.ResponseWriter, err error) {
	if !refresh.IsRefreshError(err) {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, OfflineResponse{
		Error:     err.Error(),
		Status:    OfflineStatus{Online: false},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
