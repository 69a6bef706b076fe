// Package lockout tracks failed logins per identity and locks identities
// that cross the failure threshold.
package lockout

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// historyWindow is how long lockout history survives for escalation
const historyWindow = 24 * time.Hour

// Config holds lockout thresholds
type Config struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	// Multiplier grows the lockout for repeated lockouts inside 24h.
	// Values <= 1 keep every lockout at LockoutDuration.
	Multiplier         float64
	MaxLockoutDuration time.Duration
}

// DefaultConfig returns 5 attempts / 15 minutes
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		Multiplier:         1.5,
		MaxLockoutDuration: 1 * time.Hour,
	}
}

type entry struct {
	failureCount   int
	firstFailureAt time.Time
	lockedUntil    time.Time
	lockoutCount   int
	lastLockoutAt  time.Time
}

// Tracker is the per-identity lockout state machine (Unlocked -> Locked).
// A lock expires lazily: once lockedUntil passes the identity reads as
// unlocked with no further call.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time
}

// NewTracker creates a Tracker. A nil clock defaults to time.Now.
func NewTracker(config Config, clock func() time.Time) *Tracker {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = DefaultConfig().LockoutDuration
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		entries: make(map[string]*entry),
		config:  config,
		now:     clock,
	}
}

// RecordFailure counts a failed login for email. It returns true when this
// failure moved the identity into the locked state, along with the lock expiry.
func (t *Tracker) RecordFailure(email string) (locked bool, until time.Time) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[email]
	if !ok {
		e = &entry{}
		t.entries[email] = e
	}

	if now.Before(e.lockedUntil) {
		return false, e.lockedUntil
	}

	// lock elapsed or the trailing window ran out: start a fresh count
	if !e.lockedUntil.IsZero() || now.Sub(e.firstFailureAt) >= t.config.LockoutDuration {
		e.failureCount = 0
		e.lockedUntil = time.Time{}
	}
	if e.failureCount == 0 {
		e.firstFailureAt = now
	}
	e.failureCount++

	if e.failureCount < t.config.MaxAttempts {
		return false, time.Time{}
	}

	if now.Sub(e.lastLockoutAt) >= historyWindow {
		e.lockoutCount = 0
	}
	e.lockoutCount++
	e.lastLockoutAt = now
	e.lockedUntil = now.Add(t.lockoutDuration(e.lockoutCount))
	return true, e.lockedUntil
}

func (t *Tracker) lockoutDuration(lockoutCount int) time.Duration {
	d := t.config.LockoutDuration
	if t.config.Multiplier > 1 && lockoutCount > 1 {
		d = time.Duration(float64(d) * math.Pow(t.config.Multiplier, float64(lockoutCount-1)))
	}
	if t.config.MaxLockoutDuration > 0 && d > t.config.MaxLockoutDuration {
		d = t.config.MaxLockoutDuration
	}
	return d
}

// RecordSuccess clears all state for email
func (t *Tracker) RecordSuccess(email string) {
	t.mu.Lock()
	delete(t.entries, email)
	t.mu.Unlock()
}

// IsLocked reports whether email is locked right now
func (t *Tracker) IsLocked(email string) bool {
	_, locked := t.LockedUntil(email)
	return locked
}

// LockedUntil returns the lock expiry for email while it is locked
func (t *Tracker) LockedUntil(email string) (time.Time, bool) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[email]
	if !ok || !now.Before(e.lockedUntil) {
		return time.Time{}, false
	}
	return e.lockedUntil, true
}

// FailureCount returns the live failure count for email
func (t *Tracker) FailureCount(email string) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[email]
	if !ok {
		return 0
	}
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		return 0
	}
	if e.lockedUntil.IsZero() && now.Sub(e.firstFailureAt) >= t.config.LockoutDuration {
		return 0
	}
	return e.failureCount
}

// UnlockAccount drops every trace of email, locked or not.
// It reports whether an entry existed.
func (t *Tracker) UnlockAccount(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[email]
	delete(t.entries, email)
	return ok
}

// BlockedAccounts lists identities locked right now, soonest expiry first
func (t *Tracker) BlockedAccounts() []models.BlockedAccount {
	now := t.now()

	t.mu.Lock()
	blocked := make([]models.BlockedAccount, 0)
	for email, e := range t.entries {
		if now.Before(e.lockedUntil) {
			blocked = append(blocked, models.BlockedAccount{
				Email:        email,
				FailureCount: e.failureCount,
				LockoutCount: e.lockoutCount,
				LockedUntil:  e.lockedUntil,
			})
		}
	}
	t.mu.Unlock()

	sort.Slice(blocked, func(i, j int) bool {
		return blocked[i].LockedUntil.Before(blocked[j].LockedUntil)
	})
	return blocked
}

// Sweep removes entries that are neither locked, counting failures, nor
// holding lockout history. The key list is copied first and each key is
// re-checked under its own short critical section.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	removed := 0
	for _, k := range keys {
		now := t.now()
		t.mu.Lock()
		if e, ok := t.entries[k]; ok && t.stale(e, now) {
			delete(t.entries, k)
			removed++
		}
		t.mu.Unlock()
	}
	return removed
}

func (t *Tracker) stale(e *entry, now time.Time) bool {
	if now.Before(e.lockedUntil) {
		return false
	}
	if e.lockoutCount > 0 && now.Sub(e.lastLockoutAt) < historyWindow {
		return false
	}
	return now.Sub(e.firstFailureAt) >= t.config.LockoutDuration
}

// Len returns the number of tracked identities
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
