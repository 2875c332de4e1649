package social

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Failure kinds surfaced for every platform.
var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrAuthExpired     = errors.New("auth expired")
	ErrRateLimited     = errors.New("rate limited")
	ErrVendor          = errors.New("vendor error")
	ErrUnknownPlatform = errors.New("unknown platform")
)

// PublishError is a failed publish. Kind is one of the failure sentinels.
type PublishError struct {
	Platform   Platform
	Kind       error
	StatusCode int
	VendorCode string
	Message    string
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (%d): %s", e.Platform, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Platform, e.Kind, e.Message)
}

// Unwrap returns the failure kind.
func (e *PublishError) Unwrap() error {
	return e.Kind
}

// Retryable reports whether the caller may retry later.
func (e *PublishError) Retryable() bool {
	switch {
	case errors.Is(e.Kind, ErrRateLimited):
		return true
	case errors.Is(e.Kind, ErrVendor):
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

func invalidPayload(p Platform, format string, args ...any) *PublishError {
	return &PublishError{Platform: p, Kind: ErrInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

func transportError(p Platform, err error) *PublishError {
	return &PublishError{Platform: p, Kind: ErrVendor, Message: err.Error()}
}

// Graph API error codes.
const (
	graphCodeTokenInvalid = 190
)

var graphThrottleCodes = map[int64]bool{4: true, 17: true, 32: true, 613: true}

// classify maps a vendor error response onto a failure kind. Graph error
// codes take precedence over the HTTP status.
func classify(p Platform, status int, body gjson.Result) *PublishError {
	graphCode := body.Get("error.code")
	vendorCode := graphCode.String()
	if vendorCode == "" {
		vendorCode = body.Get("errors.0.code").String()
	}

	kind := ErrVendor
	switch {
	case graphCode.Type == gjson.Number && graphCode.Int() == graphCodeTokenInvalid:
		kind = ErrAuthExpired
	case graphCode.Type == gjson.Number && graphThrottleCodes[graphCode.Int()]:
		kind = ErrRateLimited
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuthExpired
	}

	return &PublishError{
		Platform:   p,
		Kind:       kind,
		StatusCode: status,
		VendorCode: vendorCode,
		Message:    errorMessage(status, body),
	}
}

func errorMessage(status int, body gjson.Result) string {
	for _, path := range []string{"error.message", "errors.0.message", "detail", "title", "error_description"} {
		if msg := body.Get(path).String(); msg != "" {
			return msg
		}
	}
	if msg := body.Get("error").String(); msg != "" && !body.Get("error").IsObject() {
		return msg
	}
	return http.StatusText(status)
}
