// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates structurally wrong caller input (missing ids, society mismatch).
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the actor lacks the capability for the society.
	ErrForbidden = errors.New("forbidden")

	// ErrNotEligible indicates the registration does not currently qualify for a certificate.
	ErrNotEligible = errors.New("not eligible")

	// ErrRender indicates the rendering engine failed to produce a document.
	ErrRender = errors.New("render failed")

	// ErrRateLimited indicates temporary lock of public verification due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., registration already certified).
	ErrAlreadyExists = errors.New("already exists")
)
