package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"receiving-engine/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	LineIDs   []int  `json:"line_ids,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeBody encodes v after the caller has already written headers and status.
func writeBody(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps receiving engine errors onto HTTP statuses.
// Validation errors carry the offending line ids so the client can highlight
// them without re-parsing the message text.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *core.InputError
	var confirmErr *core.ConfirmValidationError

	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		writeError(w, r, err.Error(), "SESSION_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrOpenSessionExists):
		writeError(w, r, err.Error(), "SESSION_ALREADY_OPEN", http.StatusConflict)
	case errors.Is(err, core.ErrLockNotObtained):
		writeError(w, r, err.Error(), "COMMIT_LOCKED", http.StatusConflict)
	case errors.As(err, &inputErr):
		writeError(w, r, inputErr.Error(), "INVALID_SCAN", http.StatusBadRequest)
	case errors.As(err, &confirmErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Error:     confirmErr.Error(),
			Code:      "CONFIRM_VALIDATION",
			LineIDs:   confirmErr.LineIDs,
			RequestID: requestIDFromContext(r.Context()),
		})
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
