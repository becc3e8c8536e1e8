package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrNotReady indicates the provider has not finished initializing.
	ErrNotReady = errors.New("provider not ready")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrAllProviders indicates all providers in the chain have been exhausted.
	ErrAllProviders = errors.New("all providers failed")

	// ErrCoolingDown indicates the provider is backing off after recent
	// failures. It wraps ErrNotReady.
	ErrCoolingDown = fmt.Errorf("%w: cooling down after failures", ErrNotReady)

	// ErrNoProvider indicates no provider is configured for the requested role.
	ErrNoProvider = errors.New("no provider configured")
)

// IsRetryable reports whether another provider might succeed where this
// one failed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrProviderDown) ||
		errors.Is(err, ErrNotReady)
}
