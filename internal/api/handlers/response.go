// Package handlers provides HTTP request handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errEmptyBody is returned by decodeJSON for a request without a body.
var errEmptyBody = errors.New("request body is empty")

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteError maps err onto the API taxonomy and writes it with the request
// id. Server-side failures are logged at error level, client errors at debug.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := apierrors.FromError(err)
	requestID := middleware.GetReqID(r.Context())

	status := apiErr.HTTPStatusCode()
	attrs := []any{
		"error", err,
		"error_code", apiErr.Code,
		"status", status,
		"path", r.URL.Path,
		"request_id", requestID,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Debug("request rejected", attrs...)
	}

	apierrors.WriteErrorWithRequestID(w, apiErr, requestID)
}

// WriteBadRequest writes a VALIDATION_ERROR with message.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w, apierrors.NewValidationError(message), middleware.GetReqID(r.Context()))
}

// writeFieldErrors writes the aggregated field errors.
func writeFieldErrors(w http.ResponseWriter, r *http.Request, errs apierrors.ValidationErrors) {
	apierrors.WriteErrorWithRequestID(w, errs.ToAPIError(), middleware.GetReqID(r.Context()))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
