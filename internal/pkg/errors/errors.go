package errors

import (
	"encoding/json"
	"net/http"

	"relayd/internal/engine/relay"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteValidationError maps a relay validation failure to a 400 response,
// carrying the offending values (e.g. unknown event names) in details.
func WriteValidationError(w http.ResponseWriter, verr *relay.ValidationError) {
	var details interface{}
	if len(verr.Invalid) > 0 {
		details = map[string]interface{}{
			"field":   verr.Field,
			"invalid": verr.Invalid,
		}
	} else {
		details = map[string]interface{}{"field": verr.Field}
	}
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, verr.Error(), details)
}
