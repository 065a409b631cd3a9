package httpapi

import (
	"net/http"
	"runtime/debug"

	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error(err, "marshalling response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Error(err, "writing response")
	}
}

// respondError writes err as a RunError.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	runErr := domain.NewRunError(err, string(debug.Stack()), s.production)
	status := statusFor(runErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error(err, "request failed")
	}
	respondJSON(w, status, runErr)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorKindValidation:
		return http.StatusBadRequest
	case domain.ErrorKindNotFound:
		return http.StatusNotFound
	case domain.ErrorKindPrecondition:
		return http.StatusConflict
	case domain.ErrorKindUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorKindTransport, domain.ErrorKindSchema:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
