// Package common defines shared constants and sentinel errors used across
// gymbridge components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")
	ErrForbidden  = errors.New("forbidden")

	// Validation errors.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidArgument  = errors.New("invalid argument")
)
