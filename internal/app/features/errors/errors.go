// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/limits"
	"go.uber.org/zap"
)

// Status maps a store error to the HTTP status handlers respond with.
// Unrecognized errors are treated as bad input.
func Status(err error) int {
	switch {
	case stderrors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case stderrors.Is(err, apperr.ErrNotAuthorized):
		return http.StatusForbidden
	case stderrors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, apperr.ErrDuplicateRequest), stderrors.Is(err, apperr.ErrAlreadyMember):
		return http.StatusConflict
	case stderrors.Is(err, apperr.ErrTransient):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Write sends err to the client as {"error": "..."} with the mapped
// status. Internal errors are logged and masked with a generic message;
// domain errors pass through verbatim.
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		msg = "internal error"
	}
	JSON(w, status, map[string]string{"error": msg})
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON request body into dst, capped at
// limits.MaxJSONBodySize.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, limits.MaxJSONBodySize)).Decode(dst)
}
