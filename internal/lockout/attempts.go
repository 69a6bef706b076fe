package lockout

import (
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// Failure reasons recorded with login attempts
const (
	ReasonInvalidCredentials = "invalid_credentials"
	// ReasonAccountLocked marks an attempt refused before verification.
	// It is logged but is not a credential failure.
	ReasonAccountLocked = "account_locked"
)

const (
	// DefaultAttemptCapacity bounds the attempt log
	DefaultAttemptCapacity = 1000
	// DefaultAttemptMaxAge is how long a record is kept
	DefaultAttemptMaxAge = 24 * time.Hour
)

// AttemptLog is an append-only ring buffer of login attempts.
// When full, the oldest record is overwritten.
type AttemptLog struct {
	mu     sync.RWMutex
	buf    []models.LoginAttempt
	head   int // index of the oldest record
	size   int
	maxAge time.Duration
	now    func() time.Time
}

// NewAttemptLog creates an AttemptLog. Non-positive arguments fall back to
// the defaults; a nil clock defaults to time.Now.
func NewAttemptLog(capacity int, maxAge time.Duration, clock func() time.Time) *AttemptLog {
	if capacity <= 0 {
		capacity = DefaultAttemptCapacity
	}
	if maxAge <= 0 {
		maxAge = DefaultAttemptMaxAge
	}
	if clock == nil {
		clock = time.Now
	}
	return &AttemptLog{
		buf:    make([]models.LoginAttempt, capacity),
		maxAge: maxAge,
		now:    clock,
	}
}

// Record appends an attempt, stamping it with the current time when unset
func (l *AttemptLog) Record(attempt models.LoginAttempt) {
	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.head+l.size)%len(l.buf)] = attempt
		l.size++
		return
	}
	l.buf[l.head] = attempt
	l.head = (l.head + 1) % len(l.buf)
}

// Recent returns up to limit records, newest first, skipping expired ones.
// limit <= 0 returns every live record.
func (l *AttemptLog) Recent(limit int) []models.LoginAttempt {
	cutoff := l.now().Add(-l.maxAge)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}
	out := make([]models.LoginAttempt, 0, limit)
	for i := l.size - 1; i >= 0 && len(out) < limit; i-- {
		a := l.buf[(l.head+i)%len(l.buf)]
		if a.AttemptTime.Before(cutoff) {
			// older records sit behind this one
			break
		}
		out = append(out, a)
	}
	return out
}

// FailuresByIP counts credential failures per IP since the given time.
// Attempts refused because the identity was locked are not counted.
func (l *AttemptLog) FailuresByIP(since time.Time) map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for i := 0; i < l.size; i++ {
		a := l.buf[(l.head+i)%len(l.buf)]
		if a.Success || a.FailureReason == ReasonAccountLocked {
			continue
		}
		if !a.AttemptTime.Before(since) {
			counts[a.IPAddress]++
		}
	}
	return counts
}

// SuspectedIPs lists IPs with at least threshold failures in the trailing
// window, highest count first. This is a reporting signal only.
func (l *AttemptLog) SuspectedIPs(threshold int, window time.Duration) []models.SuspectedIP {
	counts := l.FailuresByIP(l.now().Add(-window))

	out := make([]models.SuspectedIP, 0)
	for ip, n := range counts {
		if n >= threshold {
			out = append(out, models.SuspectedIP{IPAddress: ip, FailureCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FailureCount != out[j].FailureCount {
			return out[i].FailureCount > out[j].FailureCount
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	return out
}

// Prune drops records older than the max age from the front of the buffer
func (l *AttemptLog) Prune() int {
	cutoff := l.now().Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for l.size > 0 && l.buf[l.head].AttemptTime.Before(cutoff) {
		l.buf[l.head] = models.LoginAttempt{}
		l.head = (l.head + 1) % len(l.buf)
		l.size--
		removed++
	}
	return removed
}

// Len returns the number of buffered records
func (l *AttemptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
