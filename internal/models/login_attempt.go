package models

import "time"

// LoginAttempt represents a single login attempt observed by the gate
type LoginAttempt struct {
	Email         string    `json:"email"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent,omitempty"`
	AttemptTime   time.Time `json:"attempt_time"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// BlockedAccount describes an identity that is currently locked out
type BlockedAccount struct {
	Email        string    `json:"email"`
	FailureCount int       `json:"failure_count"`
	LockoutCount int       `json:"lockout_count"`
	LockedUntil  time.Time `json:"locked_until"`
}

// SuspectedIP is a reporting-only signal: an address with repeated failed
// logins in the trailing hour. It is not enforced.
type SuspectedIP struct {
	IPAddress    string `json:"ip_address"`
	FailureCount int    `json:"failure_count"`
}
