// errors.go - Structured error responses and mapping of domain errors
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/session"
	"github.com/tpms-dashboard/backend/internal/storage"
)

// Error codes
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidAxles  = "INVALID_AXLE_CONFIG"
	CodeNotFound      = "NOT_FOUND"
	CodeUnknownTire   = "UNKNOWN_TIRE"
	CodeSessionClosed = "SESSION_CLOSED"
	CodeInternal      = "INTERNAL_ERROR"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
)

// ShowErrorDetails includes the cause of unexpected errors in responses.
var ShowErrorDetails = true

// APIError is the JSON body of every failed /api request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(status int, code, message string, cause error) *APIError {
	err := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, cause error) *APIError {
	return newAPIError(http.StatusBadRequest, CodeBadRequest, message, cause)
}

// NewValidationError reports a malformed request field
func NewValidationError(field string) *APIError {
	return newAPIError(http.StatusBadRequest, CodeValidation,
		fmt.Sprintf("validation failed for field: %s", field), nil)
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(resource string, id string) *APIError {
	return newAPIError(http.StatusNotFound, CodeNotFound,
		fmt.Sprintf("%s not found: %s", resource, id), nil)
}

// NewInternalError creates a 500 error
func NewInternalError(message string, cause error) *APIError {
	if !ShowErrorDetails {
		cause = nil
	}
	return newAPIError(http.StatusInternalServerError, CodeInternal, message, cause)
}

// NewServiceUnavailableError is returned by endpoints whose backing component is disabled.
func NewServiceUnavailableError(message string) *APIError {
	return newAPIError(http.StatusServiceUnavailable, CodeUnavailable, message, nil)
}

// FromDomainError maps errors of the session, layout and storage packages.
// resource and id name the looked-up object for not found responses.
func FromDomainError(err error, resource, id string) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError(resource, id)
	case errors.Is(err, session.ErrUnknownTire):
		return newAPIError(http.StatusNotFound, CodeUnknownTire, err.Error(), nil)
	case errors.Is(err, session.ErrClosed):
		return newAPIError(http.StatusConflict, CodeSessionClosed, "session is closed", nil)
	case errors.Is(err, layout.ErrEmptyConfig),
		errors.Is(err, layout.ErrInvalidAxle),
		errors.Is(err, layout.ErrTireCountRange),
		errors.Is(err, layout.ErrTireCountMismatch):
		return newAPIError(http.StatusBadRequest, CodeInvalidAxles, "invalid axle configuration", err)
	default:
		return NewInternalError("request failed", err)
	}
}

// ErrorHandler renders every error as an APIError.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = FromDomainError(err, "resource", "")
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
