package domain

import "errors"

// Sentinel errors shared by the store and the services. Callers match them
// with errors.Is; wrapped context is added at each layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)
