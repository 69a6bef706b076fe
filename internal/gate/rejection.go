package gate

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// Kind classifies a rejection
type Kind string

const (
	KindValidation           Kind = "validation"
	KindForbidden            Kind = "forbidden"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindRateLimited          Kind = "rate_limited"
	KindAccountLocked        Kind = "account_locked"
	KindAuthenticationFailed Kind = "authentication_failed"
)

// Rejection is a terminal admission decision. Message is safe to show to
// clients; Detail is for operator logs only.
type Rejection struct {
	Kind       Kind
	Status     int
	Code       string
	Message    string
	Detail     string
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
	}
	return string(r.Kind)
}

// Unwrap maps the rejection onto the shared sentinel errors
func (r *Rejection) Unwrap() error {
	switch r.Kind {
	case KindValidation:
		return models.ErrMaliciousInput
	case KindForbidden:
		return models.ErrSuspiciousActor
	case KindPayloadTooLarge:
		return models.ErrPayloadTooLarge
	case KindRateLimited:
		return models.ErrRateLimitExceeded
	case KindAccountLocked:
		return models.ErrAccountLocked
	case KindAuthenticationFailed:
		return models.ErrUnauthorized
	}
	return nil
}

// AsRejection extracts a *Rejection from err
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func validationRejection(detail string) *Rejection {
	return &Rejection{
		Kind:    KindValidation,
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: "Request rejected",
		Detail:  detail,
	}
}

func forbiddenRejection(detail string) *Rejection {
	return &Rejection{
		Kind:    KindForbidden,
		Status:  http.StatusForbidden,
		Code:    "forbidden",
		Message: "Access denied",
		Detail:  detail,
	}
}

func payloadTooLargeRejection(detail string) *Rejection {
	return &Rejection{
		Kind:    KindPayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "payload_too_large",
		Message: "Request body too large",
		Detail:  detail,
	}
}

func rateLimitedRejection(detail string, retryAfter time.Duration) *Rejection {
	return &Rejection{
		Kind:       KindRateLimited,
		Status:     http.StatusTooManyRequests,
		Code:       "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		Detail:     detail,
		RetryAfter: retryAfter,
	}
}

func accountLockedRejection(detail string, retryAfter time.Duration) *Rejection {
	return &Rejection{
		Kind:       KindAccountLocked,
		Status:     http.StatusTooManyRequests,
		Code:       "account_locked",
		Message:    "Too many failed login attempts. Please try again later.",
		Detail:     detail,
		RetryAfter: retryAfter,
	}
}

func authenticationFailedRejection(detail string) *Rejection {
	return &Rejection{
		Kind:    KindAuthenticationFailed,
		Status:  http.StatusUnauthorized,
		Code:    "unauthorized",
		Message: "Authentication failed",
		Detail:  detail,
	}
}
