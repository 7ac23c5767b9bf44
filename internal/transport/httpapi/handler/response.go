package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/kislikjeka/tallymigrate/internal/shared/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError sends a plain error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondAppError sends an AppError with its mapped status
func respondAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	message := appErr.Message
	if appErr.Err != nil && appErr.Code != apperrors.ErrCodeInternal {
		message = appErr.Err.Error()
	}
	respondWithJSON(w, appErr.HTTPStatus(), ErrorResponse{Error: message, Code: appErr.Code})
}
