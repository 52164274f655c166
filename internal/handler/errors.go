package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// Error codes carried in ErrorDetail.Code.
const (
	codeNotFound        = "not_found"
	codeValidation      = "validation_error"
	codeConflict        = "conflict"
	codeTooLarge        = "payload_too_large"
	codeArchiveDisabled = "archive_disabled"
	codeInternal        = "internal_error"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error":{...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// respondError maps a service error to its status code. Unknown errors are
// logged and reported as 500 without leaking their text.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, notFoundMsg)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrRejected):
		writeError(w, http.StatusUnprocessableEntity, codeValidation, unwrapMessage(err))
	case errors.Is(err, domain.ErrObserverAttached):
		writeError(w, http.StatusConflict, codeConflict, "another observer is already attached to this run")
	case errors.Is(err, domain.ErrArchiveDisabled):
		writeError(w, http.StatusServiceUnavailable, codeArchiveDisabled, "itinerary archive is not configured")
	default:
		s.log.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// sentinelPrefixes are the texts of the sentinels respondError surfaces to
// clients. unwrapMessage strips everything up to and including them.
var sentinelPrefixes = []string{
	domain.ErrValidation.Error() + ": ",
	domain.ErrRejected.Error() + ": ",
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.WorkflowService.Start: validation error: at least one document is required"
// becomes "at least one document is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, prefix := range sentinelPrefixes {
		if _, after, ok := strings.Cut(msg, prefix); ok && after != "" {
			return after
		}
	}
	return msg
}
