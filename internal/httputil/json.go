package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}

// WriteAppError maps a typed error to its HTTP status and writes the
// stable code alongside the message so clients can branch on it.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
		return
	}
	WriteJSON(w, StatusFor(appErr), ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err *apperrors.Error) int {
	switch err.Code {
	case apperrors.ErrTransferNotConfigured.Code:
		return http.StatusServiceUnavailable
	case apperrors.ErrTransferUnavailable.Code:
		return http.StatusBadGateway
	}
	switch err.Kind {
	case apperrors.KindValidation, apperrors.KindDomain:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
