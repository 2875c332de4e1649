package payments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
)

var (
	// ErrInvalidSignature means the webhook signature header is missing,
	// malformed, stale or does not match the payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidPayload means a correctly signed webhook body could not be parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrUnknownPackage means the checkout named a package that is not offered.
	ErrUnknownPackage = errors.New("unknown package")
)

// VendorError is a failed call to the payment processor.
type VendorError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment processor %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment processor %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the processor failure is transient.
func (e *VendorError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// vendorError converts an error returned by the processor SDK.
func vendorError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &VendorError{
			StatusCode: se.HTTPStatusCode,
			Code:       string(se.Code),
			Message:    se.Msg,
		}
	}
	return &VendorError{Message: err.Error()}
}
