package services

import "errors"

// Failure classes surfaced by services. Controllers map them onto HTTP
// status codes; everything else is an internal error.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)
