package model

import "errors"

// Error classes shared by the remote gateway and the engine. Gateways wrap
// driver errors with one of these so callers can branch with errors.Is.
var (
	// ErrPermissionDenied is an authorization or policy rejection by the
	// remote store. It degrades the engine to local mode.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient is a network or timeout failure worth retrying.
	ErrTransient = errors.New("transient remote failure")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is an illegal request, rejected before any mutation.
	ErrValidation = errors.New("validation failed")
)
