package httputil

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/yameogogildas/transactions/internal/apperr"
	"github.com/yameogogildas/transactions/internal/logger"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}

// WriteAppError maps the error taxonomy onto HTTP status codes. Causes
// of internal errors are logged, never rendered.
func WriteAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.Log.Error("request failed", zap.Error(err))
	}
	WriteJSON(w, StatusForKind(kind), ErrorResponse{Error: apperr.Reason(err), Kind: string(kind)})
}

func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.Conflict, apperr.InvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
