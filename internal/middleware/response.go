package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string                `json:"error"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

// WriteError maps err to a JSON error response. *apperror.Error keeps its
// status and message; anything else is logged and reported as a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		LoggerFrom(r.Context()).Error("unhandled error", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
		return
	}
	for k, v := range appErr.Headers {
		w.Header().Set(k, v)
	}
	if appErr.Status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).Error(appErr.Message, zap.Error(appErr.Cause))
	}
	WriteJSON(w, appErr.Status, errorBody{Error: appErr.Message, Details: appErr.Details})
}
