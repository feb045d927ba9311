package http

import (
	"encoding/json"
	"net/http"
	apperrors "slotify/pkg/errors"
)

type ErrorResponse struct {
	Error apperrors.ErrorResponse `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError renders any error as the standard error envelope. Errors that are
// not AppErrors are reported as internal failures without exposing the cause.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := apperrors.AsAppError(err)
	status := appErr.StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return WriteJSON(w, status, ErrorResponse{Error: appErr.Response()})
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WriteMessage(w http.ResponseWriter, statusCode int, message string, data any) error {
	return WriteJSON(w, statusCode, SuccessResponse{Message: message, Data: data})
}

func WriteCreated(w http.ResponseWriter, message string, data any) error {
	return WriteMessage(w, http.StatusCreated, message, data)
}
