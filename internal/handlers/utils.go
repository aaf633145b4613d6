package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campuslife/apiserver/internal/apperr"
	"github.com/campuslife/apiserver/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// ErrorResponse is the error payload shape shared by every endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func withPrincipal(ctx context.Context, principal types.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, principal)
}

// PrincipalFromContext returns the principal the auth middleware resolved for
// this request.
func PrincipalFromContext(ctx context.Context) (types.Principal, error) {
	principal, ok := ctx.Value(contextPrincipalKey).(types.Principal)
	if !ok || principal.Email == "" {
		return types.Principal{}, apperr.New(apperr.ErrUnauthorized, "valid access token is required")
	}
	return principal, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto the response. Unclassified
// faults get a correlation id that ties the 500 response to its log line.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "Unauthorized",
			Message: "Valid access token is required",
		})
	case errors.Is(err, apperr.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Forbidden"})
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrConflict):
		writeError(w, apperr.Status(err), err.Error())
	case errors.Is(err, apperr.ErrDependency):
		logger.Error("dependency failure", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		correlationID := apperr.CorrelationID()
		logger.Error("unhandled fault", "correlation_id", correlationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     "Internal server error",
			RequestID: correlationID,
		})
	}
}
