package domain

import "errors"

// Error kinds shared by every store. Callers wrap them with context and the
// HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
