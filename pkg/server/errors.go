package server

import (
	"encoding/json"
	"net/http"

	"taxmate-hq/throttle/pkg/telemetry/logging"
)

// Error types returned in the error envelope.
const (
	ErrorTypeInvalidRequest = "invalid_request"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeRateLimited    = "rate_limited"
	ErrorTypeInternal       = "internal_error"
)

// ErrorResponse is the JSON envelope of every error returned by the API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a single API error.
type ErrorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Type:      errType,
		Message:   message,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
