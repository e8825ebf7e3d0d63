package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/transfer-indexer/internal/errors"
	"github.com/transfer-indexer/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// mapServiceError maps service and storage errors to HTTP status codes.
// Internal detail never leaks into the response body.
func mapServiceError(err error) (int, string, string) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case "INVALID_ADDRESS_FORMAT", "INVALID_TX_HASH", "INVALID_RAW_AMOUNT":
			return http.StatusBadRequest, ErrCodeInvalidInput, serviceErr.Message
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
		}
	}

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		if catErr.Category == apperrors.CategoryNotFound {
			return catErr.StatusCode, ErrCodeNotFound, catErr.Message
		}
		return catErr.StatusCode, catErr.Code, "An internal error occurred"
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}
