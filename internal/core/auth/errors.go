package auth

import "errors"

// Authentication errors. All map to UNAUTHENTICATED so a caller cannot tell
// a malformed header from a wrong token.
var (
	ErrMissingToken    = errors.New("bearer token required in authorization metadata")
	ErrMalformedHeader = errors.New("authorization metadata must be \"Bearer <token>\"")
	ErrInvalidToken    = errors.New("invalid bearer token")
)
