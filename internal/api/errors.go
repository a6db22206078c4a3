package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/registry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

// Stream subscription errors, sent back as error frames.
var errInvalidSubscription = errors.New("subscription payload must list channels")

func errUnknownChannel(ch string) error {
	return fmt.Errorf("unknown channel %q: want %s<kind>[.<id>] or %s", ch, ChannelPrefix, ChannelAll)
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
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

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeSwitchError maps a registry error onto an HTTP status.
func (s *Server) writeSwitchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound), errors.Is(err, registry.ErrGroupNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, registry.ErrDeviceExists), errors.Is(err, registry.ErrGroupExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, registry.ErrWrongKind),
		errors.Is(err, registry.ErrInvalidValue),
		errors.Is(err, agent.ErrUnknownKind):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, registry.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		s.logger.Error("switch operation failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
