package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arjun-computer-geek/saas-demo/services"
)

// ErrorResponse represents a structured error response. Error carries the
// machine-readable code.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse is the body of responses that carry no data
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteMessage writes a 200 OK response with only a message
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   services.CodeValidation,
		Message: message,
		Details: details,
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   services.CodeNotFound,
		Message: message,
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   services.CodeInternal,
		Message: message,
	})
}

// StatusFor maps a domain error type to its HTTP status
func StatusFor(t services.ErrorType) int {
	switch t {
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorTypeForbidden:
		return http.StatusForbidden
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case services.ErrorTypeConflict:
		return http.StatusConflict
	case services.ErrorTypeGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err as a JSON error response and returns the
// status used. Internal errors never expose their cause.
func WriteDomainError(w http.ResponseWriter, err error) (int, error) {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError, WriteInternalServerError(w, "An unexpected error occurred")
	}

	status := StatusFor(domainErr.Type)
	resp := ErrorResponse{
		Error:   domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
	}
	if status == http.StatusInternalServerError {
		resp.Message = "An internal error occurred"
		resp.Details = nil
	}
	return status, WriteJSON(w, status, resp)
}
