package models

import "errors"

// Error kinds returned by delivery operations. Callers match them with
// errors.Is; the wrapping error carries the detail.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
)
