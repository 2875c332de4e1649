// Package generator calls the generative content API that turns a prompt into
// a complete HTML page.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when the API answered 2xx with no usable text.
var ErrMalformedResponse = errors.New("malformed generation response")

// Request is a single generation call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// StopReasonMaxTokens marks output cut off by the token limit.
const StopReasonMaxTokens = "max_tokens"

// Result is the generated text plus the usage the call was billed for.
type Result struct {
	Text         string  `json:"-"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	StopReason   string  `json:"stop_reason,omitempty"`
}

// Truncated reports whether the model stopped at the token limit.
func (r *Result) Truncated() bool {
	return r != nil && r.StopReason == StopReasonMaxTokens
}

// Generator produces content for a prompt. Implementations make exactly one
// outbound call per Generate and never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// APIError is a non-2xx answer from the generative API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("generation api %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("generation api %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode returns the vendor status code.
func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Retryable reports whether the vendor considers the failure transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// Per-token pricing of the generation model, in USD per million tokens.
const (
	InputPricePerMillion  = 15.0
	OutputPricePerMillion = 75.0
)

// EstimateCost returns the USD cost of a call rounded to four decimals.
func EstimateCost(inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)*InputPricePerMillion/1_000_000 +
		float64(outputTokens)*OutputPricePerMillion/1_000_000
	return math.Round(cost*10000) / 10000
}

// StripCodeFences removes a leading and trailing markdown fence line if the
// model wrapped its output in one.
func StripCodeFences(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
