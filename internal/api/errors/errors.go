// Package errors provides structured error types and response helpers for the API.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/builder"
	"github.com/buildswift/orchestrator/internal/payments"
	"github.com/buildswift/orchestrator/internal/social"
)

// Error codes for structured API responses.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeSignatureError   = "SIGNATURE_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeVendorError      = "VENDOR_ERROR"
	CodeAuthExpired      = "AUTH_EXPIRED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeStorageError     = "STORAGE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// APIError represents a structured API error response.
type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of the error with details merged in.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &APIError{
		Code:      e.Code,
		Message:   e.Message,
		Details:   merged,
		RequestID: e.RequestID,
	}
}

// WithRequestID returns a copy of the error with the request ID set.
func (e *APIError) WithRequestID(requestID string) *APIError {
	return &APIError{
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}

// Retryable reports the details.retryable flag.
func (e *APIError) Retryable() bool {
	r, _ := e.Details["retryable"].(bool)
	return r
}

// New creates a new APIError with the given code and message.
func New(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *APIError {
	return New(CodeValidationError, message).WithDetails(map[string]any{"retryable": false})
}

// NewSignatureError creates a webhook signature error.
func NewSignatureError(message string) *APIError {
	return New(CodeSignatureError, message).WithDetails(map[string]any{"retryable": false})
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *APIError {
	return New(CodeNotFound, message)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *APIError {
	return New(CodeUnauthorized, message)
}

// NewRateLimitedError creates a backpressure error.
func NewRateLimitedError(message string) *APIError {
	return New(CodeRateLimited, message).WithDetails(map[string]any{"retryable": true})
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *APIError {
	return New(CodeInternalError, message)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidationError, CodeSignatureError:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeVendorError, CodeAuthExpired:
		return http.StatusBadGateway
	case CodeGenerationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError maps a domain error onto the API taxonomy. Errors it does not
// recognise become INTERNAL_ERROR without leaking their text.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var publishErr *social.PublishError
	if errors.As(err, &publishErr) {
		return fromPublishError(publishErr)
	}

	var vendorErr *payments.VendorError
	if errors.As(err, &vendorErr) {
		details := map[string]any{"retryable": vendorErr.Retryable()}
		if vendorErr.StatusCode != 0 {
			details["vendor_status"] = vendorErr.StatusCode
		}
		if vendorErr.Code != "" {
			details["vendor_code"] = vendorErr.Code
		}
		return New(CodeVendorError, vendorErr.Message).WithDetails(details)
	}

	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		return NewSignatureError("webhook signature verification failed")
	case errors.Is(err, payments.ErrInvalidPayload):
		return NewValidationError("webhook payload could not be parsed")
	case errors.Is(err, payments.ErrUnknownPackage),
		errors.Is(err, builder.ErrInvalidProfile),
		errors.Is(err, social.ErrUnknownPlatform):
		return NewValidationError(err.Error())
	case errors.Is(err, builder.ErrGenerationFailed):
		return New(CodeGenerationFailed, "site generation failed, retry later").
			WithDetails(map[string]any{"retryable": true})
	case errors.Is(err, builder.ErrStorage), errors.Is(err, applog.ErrStorage):
		return New(CodeStorageError, "failed to persist result").
			WithDetails(map[string]any{"retryable": true})
	case errors.Is(err, applog.ErrUnknownLog):
		return NewNotFoundError("log not found")
	}
	return NewInternalError("An unexpected error occurred")
}

func fromPublishError(e *social.PublishError) *APIError {
	details := map[string]any{
		"platform":  string(e.Platform),
		"retryable": e.Retryable(),
	}
	if e.StatusCode != 0 {
		details["vendor_status"] = e.StatusCode
	}
	if e.VendorCode != "" {
		details["vendor_code"] = e.VendorCode
	}

	switch {
	case errors.Is(e, social.ErrInvalidPayload):
		return New(CodeValidationError, e.Message).WithDetails(details)
	case errors.Is(e, social.ErrAuthExpired):
		details["kind"] = "auth_expired"
		return New(CodeAuthExpired, e.Message).WithDetails(details)
	case errors.Is(e, social.ErrRateLimited):
		details["kind"] = "rate_limited"
		return New(CodeRateLimited, e.Message).WithDetails(details)
	}
	details["kind"] = "vendor_error"
	return New(CodeVendorError, e.Message).WithDetails(details)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an APIError as a JSON response.
func WriteError(w http.ResponseWriter, err *APIError) {
	if err.Code == CodeRateLimited {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, err.HTTPStatusCode(), err)
}

// WriteErrorWithRequestID writes an APIError with the request ID set.
func WriteErrorWithRequestID(w http.ResponseWriter, err *APIError, requestID string) {
	WriteError(w, err.WithRequestID(requestID))
}

// GetStackTrace returns the current stack trace as a string.
func GetStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ValidationError represents a field-level validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of field-level validation errors.
type ValidationErrors []ValidationError

// Add adds a new validation error for a field.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any validation errors.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToAPIError converts validation errors to an APIError with field details.
func (v ValidationErrors) ToAPIError() *APIError {
	if len(v) == 0 {
		return NewValidationError("validation failed")
	}

	mainMessage := v[0].Message
	if len(v) > 1 {
		mainMessage = fmt.Sprintf("%s (and %d more errors)", mainMessage, len(v)-1)
	}

	return &APIError{
		Code:    CodeValidationError,
		Message: mainMessage,
		Details: map[string]any{
			"fields":    v,
			"retryable": false,
		},
	}
}

// ErrorLogEntry represents a structured error log entry.
type ErrorLogEntry struct {
	CorrelationID string `json:"correlation_id"`
	ErrorCode     string `json:"error_code"`
	Message       string `json:"message"`
	StackTrace    string `json:"stack_trace"`
}

// NewErrorLogEntry creates a new error log entry with all required fields.
func NewErrorLogEntry(correlationID, errorCode, message string) *ErrorLogEntry {
	return &ErrorLogEntry{
		CorrelationID: correlationID,
		ErrorCode:     errorCode,
		Message:       message,
		StackTrace:    GetStackTrace(),
	}
}

// ToSlogAttrs returns the error log entry as slog attributes for structured logging.
func (e *ErrorLogEntry) ToSlogAttrs() []any {
	return []any{
		"correlation_id", e.CorrelationID,
		"error_code", e.ErrorCode,
		"message", e.Message,
		"stack_trace", e.StackTrace,
	}
}
