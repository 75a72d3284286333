package domain

import (
	"errors"
	"fmt"
)

// ErrMissingCredential marks a request that cannot run because a provider key is not configured.
// Callers can correct it; it is never retried.
var ErrMissingCredential = errors.New("credential not configured")

// ErrNoImageGenerated is returned when the generative model answers without an image.
var ErrNoImageGenerated = errors.New("no image generated")

// MissingCredentialError names the credential that is absent.
func MissingCredentialError(name string) error {
	return fmt.Errorf("%s API key not configured: %w", name, ErrMissingCredential)
}

// UpstreamFetchError is a failure fetching the base photograph.
type UpstreamFetchError struct {
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("street view fetch failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("street view fetch failed: %v", e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// GenerationError is a failure of the generative-image call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Outcome maps an error returned by the transform pipeline to its event outcome.
func Outcome(err error) TransformOutcome {
	var fetchErr *UpstreamFetchError
	var genErr *GenerationError
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrMissingCredential):
		return OutcomePreconditionFailed
	case errors.As(err, &fetchErr):
		return OutcomeFetchFailed
	case errors.As(err, &genErr):
		return OutcomeGenerationFailed
	default:
		return OutcomeFailed
	}
}

// ParseTransformOutcome validates an outcome filter. The empty string means
// every outcome and is returned unchanged.
func ParseTransformOutcome(s string) (TransformOutcome, error) {
	o := TransformOutcome(s)
	switch o {
	case "", OutcomeCompleted, OutcomePreconditionFailed, OutcomeFetchFailed,
		OutcomeGenerationFailed, OutcomeFailed:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}
