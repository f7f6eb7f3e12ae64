package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"go.uber.org/zap"
)

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger(context.Background()).Error("failed to encode response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeRoomNotJoined:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeStoreUnavailable, domain.CodeClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainError writes err with the status and code of its sentinel.
func DomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		observability.GetLogger(r.Context()).Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteError(w, status, code, domain.PublicMessage(err))
}
