package ratelimit

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Scope names one configured use of the counter
type Scope string

const (
	ScopeCourierPhone     Scope = "courier-phone"
	ScopeCourierIP        Scope = "courier-ip"
	ScopeApplicationEmail Scope = "application-email"
	ScopeApplicationIP    Scope = "application-ip"
	ScopeAuthIP           Scope = "auth-ip"
)

// Policy is the (limit, window) pair applied to a scope.
// BlockFor > 0 turns an exceeded window into a longer block.
type Policy struct {
	Limit    int
	Window   time.Duration
	BlockFor time.Duration
}

// DefaultPolicies are the fixed per-scope thresholds
var DefaultPolicies = map[Scope]Policy{
	ScopeCourierPhone:     {Limit: 5, Window: 2 * time.Hour},
	ScopeCourierIP:        {Limit: 8, Window: 1 * time.Hour},
	ScopeApplicationEmail: {Limit: 3, Window: 24 * time.Hour},
	ScopeApplicationIP:    {Limit: 5, Window: 2 * time.Hour},
	ScopeAuthIP:           {Limit: 5, Window: 15 * time.Minute, BlockFor: 1 * time.Hour},
}

// Key renders the composite (scope, identity) rate limit key
func Key(scope Scope, identity string) string {
	return string(scope) + ":" + identity
}

// Limiter applies named policies on top of a shared Counter
type Limiter struct {
	counter  *Counter
	policies map[Scope]Policy
}

// NewLimiter creates a Limiter. A nil policies map uses DefaultPolicies.
func NewLimiter(counter *Counter, policies map[Scope]Policy) *Limiter {
	if policies == nil {
		policies = DefaultPolicies
	}
	return &Limiter{
		counter:  counter,
		policies: policies,
	}
}

// Check counts a hit for identity under scope. Unknown scopes are a
// programming error and are reported as such.
func (l *Limiter) Check(scope Scope, identity string) (Decision, error) {
	p, ok := l.policies[scope]
	if !ok {
		return Decision{}, fmt.Errorf("unknown rate limit scope %q", scope)
	}
	return l.counter.IncrementWithBlock(Key(scope, identity), p.Limit, p.Window, p.BlockFor), nil
}

// Reset clears the counter for identity under scope
func (l *Limiter) Reset(scope Scope, identity string) {
	l.counter.Reset(Key(scope, identity))
}

// Policy returns the policy configured for scope
func (l *Limiter) Policy(scope Scope) (Policy, bool) {
	p, ok := l.policies[scope]
	return p, ok
}

// Counter exposes the underlying counter for sweeping
func (l *Limiter) Counter() *Counter {
	return l.counter
}

// NormalizePhone keeps only the digits of a phone number, so
// "+1 (555) 123-4567" and "15551234567" share a key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail lowercases and trims an email identity
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
