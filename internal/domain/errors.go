package domain

import "errors"

// Error taxonomy shared by providers, guards and strategies.
var (
	// ErrDataUnavailable is returned when an upstream returned no or partial data.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrValidationFailure is returned when a guard hard-fails.
	ErrValidationFailure = errors.New("validation failure")

	// ErrTransientProvider is returned when a provider call failed after retries.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrConfiguration is returned when a required option is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidEvent is returned for malformed discovery events.
	ErrInvalidEvent = errors.New("invalid discovery event")
)
