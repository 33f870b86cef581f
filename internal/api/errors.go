package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
	"github.com/cam-andersen/InventorySystemV3/internal/command"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// badRequest wraps a validation failure.
func badRequest(format string, args ...interface{}) *APIError {
	return NewAPIError("BAD_REQUEST", fmt.Sprintf(format, args...), http.StatusBadRequest, nil)
}

type errorMapping struct {
	target  error
	code    string
	status  int
	message string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{command.ErrBusy, "BUSY", http.StatusConflict, "A dispatch is already in progress"},
	{command.ErrNotFound, "NOT_FOUND", http.StatusNotFound, "Resource not found"},
	{command.ErrInvalidParameter, "BAD_REQUEST", http.StatusBadRequest, "Malformed or missing required parameter"},
	{catalog.ErrItemNotFound, "NOT_FOUND", http.StatusNotFound, "Item not found in catalog"},
	{adapter.ErrInvalidLocation, "INVALID_LOCATION", http.StatusBadRequest, "Item location is outside the robot's bins"},
	{adapter.ErrCancelled, "CANCELLED", http.StatusConflict, "Operation cancelled"},
	{adapter.ErrTimeout, "TIMEOUT", http.StatusGatewayTimeout, "Robot did not respond in time"},
	{adapter.ErrUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable, "Robot is unavailable"},
	{adapter.ErrInternal, "INTERNAL", http.StatusInternalServerError, "Internal server error"},
}

// ToAPIError converts an error to an API error with HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	var robotErr *adapter.RobotError
	details := interface{}(nil)
	if errors.As(err, &robotErr) {
		details = robotErr.Details
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, marshalErrorResponse(m.code, m.message, details)
		}
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	jsonBytes, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		fallback, _ := json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
		return fallback
	}
	return jsonBytes
}
