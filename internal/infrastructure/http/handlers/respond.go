// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/http/middleware"
	"github.com/cookbookhq/backend/pkg/errors"
)

// ErrorResponse is the wire shape of every error body.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail carries the stable error code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code" example:"BAD_REQUEST"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError maps an application error onto the wire contract. Errors that
// are not *errors.AppError are masked as 500 so internals never leak.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		logger.Error("Unhandled error", zap.Error(err))
		appErr = errors.NewInternalError("internal error")
	}

	writeJSON(w, logger, appErr.StatusCode(), ErrorResponse{
		Error: ErrorDetail{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		},
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}
