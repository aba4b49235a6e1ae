// errors.go - Structured error handling for API responses
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docfill/backend/internal/conversation"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Set when a completion is rejected for missing values.
	UnfilledCount        int      `json:"unfilled_count,omitempty"`
	UnfilledPlaceholders []string `json:"unfilled_placeholders,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromOrchestration maps a typed orchestration error onto an HTTP response.
func fromOrchestration(e *conversation.Error) *APIError {
	out := &APIError{Message: e.Message}
	switch e.Kind {
	case conversation.KindValidation:
		out.Status, out.Code = http.StatusBadRequest, "VALIDATION_ERROR"
	case conversation.KindValidationFailed:
		out.Status, out.Code = http.StatusBadRequest, "INVALID_VALUE"
	case conversation.KindSessionNotFound:
		out.Status, out.Code = http.StatusBadRequest, "SESSION_NOT_FOUND"
	case conversation.KindUnknownField:
		out.Status, out.Code = http.StatusBadRequest, "UNKNOWN_FIELD"
	case conversation.KindIncompleteDocument:
		out.Status, out.Code = http.StatusBadRequest, "INCOMPLETE_DOCUMENT"
		out.UnfilledCount = e.UnfilledCount
		out.UnfilledPlaceholders = e.UnfilledNames
	case conversation.KindProcessingFailed:
		out.Status, out.Code = http.StatusInternalServerError, "PROCESSING_FAILED"
	case conversation.KindGenerationFailed:
		out.Status, out.Code = http.StatusInternalServerError, "GENERATION_FAILED"
	default:
		out.Status, out.Code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	return out
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *conversation.Error:
		apiErr = fromOrchestration(e)
	case *echo.HTTPError:
		code := "HTTP_ERROR"
		if e.Code == http.StatusRequestEntityTooLarge {
			code = "FILE_TOO_LARGE"
		}
		apiErr = &APIError{
			Status:  e.Code,
			Code:    code,
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		}
	}

	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}
