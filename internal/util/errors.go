package util

import "errors"

var (
	// ErrNotFound indicates a catalog row or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates the configuration file could not be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)
