package builder

import (
	"errors"
	"fmt"
)

// Sentinel build failures. A BuildError always wraps exactly one of them.
var (
	// ErrInvalidProfile means the profile is missing a required field or is
	// malformed. Not retryable without user correction.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrGenerationFailed means the generative API call failed, timed out or
	// returned unusable content. The whole build may be retried.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrStorage means the artifact bundle could not be written.
	ErrStorage = errors.New("storage failure")
)

// Build stages reported on errors and in logs.
const (
	StageValidate = "validate"
	StageSlug     = "slug"
	StagePrompt   = "prompt"
	StageGenerate = "generate"
	StagePublish  = "publish"
)

// BuildError describes where a build failed.
type BuildError struct {
	Err   error
	Stage string
	Slug  string
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := e.Err.Error()
	if e.Slug != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Slug)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %v", msg, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s at %s", msg, e.Stage)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Retryable reports whether re-running the same build may succeed.
func (e *BuildError) Retryable() bool {
	return errors.Is(e.Err, ErrGenerationFailed) || errors.Is(e.Err, ErrStorage)
}

func newBuildError(sentinel error, stage, slug string, cause error) *BuildError {
	return &BuildError{Err: sentinel, Stage: stage, Slug: slug, Cause: cause}
}

// IsRetryable reports whether err is a retryable build failure.
func IsRetryable(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return false
}
