package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Admission errors
	ErrMaliciousInput     = errors.New("malicious input pattern")
	ErrSuspiciousActor    = errors.New("suspicious actor")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionIDGenerator = errors.New("session id generation failed")
)
