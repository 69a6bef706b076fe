// Package sessions owns the in-memory registry of authenticated sessions.
package sessions

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultMaxSessions = 1000
	DefaultIdleTimeout = 24 * time.Hour

	// sweepBatch bounds how many sessions one idle-sweep critical section removes
	sweepBatch = 128
)

// Config holds registry bounds
type Config struct {
	MaxSessions int
	IdleTimeout time.Duration
}

// IDGenerator produces opaque session identifiers
type IDGenerator func() (string, error)

// RandomID returns a random (v4) UUID drawn from crypto/rand
func RandomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type record struct {
	session models.Session
	elem    *list.Element // position in the recency list
}

// Registry holds active sessions keyed by id, plus a per-user index.
// Both maps and the recency list are only touched under mu, together.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*record
	byUser  map[string]map[string]struct{}
	recency *list.List // front = least recently active

	config Config
	newID  IDGenerator
	now    func() time.Time
}

// NewRegistry creates a Registry. Zero config values fall back to defaults;
// a nil clock defaults to time.Now.
func NewRegistry(config Config, clock func() time.Time) *Registry {
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		byID:    make(map[string]*record),
		byUser:  make(map[string]map[string]struct{}),
		recency: list.New(),
		config:  config,
		newID:   RandomID,
		now:     clock,
	}
}

// SetIDGenerator replaces the session id source
func (r *Registry) SetIDGenerator(gen IDGenerator) {
	r.mu.Lock()
	r.newID = gen
	r.mu.Unlock()
}

// CreateSession registers a new active session and returns its id.
// Idle sessions at the cold end are purged first; if the registry is still
// over capacity the least recently active sessions are evicted.
func (r *Registry) CreateSession(userID, email, ip, userAgent string) (string, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for attempt := 0; ; attempt++ {
		candidate, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrSessionIDGenerator, err)
		}
		if _, taken := r.byID[candidate]; !taken {
			id = candidate
			break
		}
		if attempt >= 3 {
			return "", fmt.Errorf("%w: repeated collision", models.ErrSessionIDGenerator)
		}
	}

	rec := &record{session: models.Session{
		ID:           id,
		UserID:       userID,
		Email:        email,
		IPAddress:    ip,
		UserAgent:    userAgent,
		LoginTime:    now,
		LastActivity: now,
		IsActive:     true,
	}}
	rec.elem = r.recency.PushBack(id)
	r.byID[id] = rec

	userSet, ok := r.byUser[userID]
	if !ok {
		userSet = make(map[string]struct{})
		r.byUser[userID] = userSet
	}
	userSet[id] = struct{}{}

	r.expireIdleLocked(now, sweepBatch)
	for len(r.byID) > r.config.MaxSessions {
		oldest := r.recency.Front()
		if oldest == nil {
			break
		}
		r.removeLocked(oldest.Value.(string))
	}

	return id, nil
}

// UpdateActivity bumps lastActivity for an active session.
// It reports false for unknown or inactive sessions.
func (r *Registry) UpdateActivity(sessionID string) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[sessionID]
	if !ok || !rec.session.IsActive {
		return false
	}
	if now.Sub(rec.session.LastActivity) >= r.config.IdleTimeout {
		r.removeLocked(sessionID)
		return false
	}
	rec.session.LastActivity = now
	r.recency.MoveToBack(rec.elem)
	return true
}

// EndSession removes a session from both indexes
func (r *Registry) EndSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sessionID)
}

// EndAllUserSessions removes every session owned by userID and returns how
// many were removed.
func (r *Registry) EndAllUserSessions(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byUser[userID]
	n := 0
	for id := range ids {
		if r.removeLocked(id) {
			n++
		}
	}
	delete(r.byUser, userID)
	return n
}

// removeLocked deletes id from the primary map, the user index and the
// recency list. Callers hold mu.
func (r *Registry) removeLocked(sessionID string) bool {
	rec, ok := r.byID[sessionID]
	if !ok {
		return false
	}
	delete(r.byID, sessionID)
	r.recency.Remove(rec.elem)

	if userSet, ok := r.byUser[rec.session.UserID]; ok {
		delete(userSet, sessionID)
		if len(userSet) == 0 {
			delete(r.byUser, rec.session.UserID)
		}
	}
	return true
}

// expireIdleLocked removes up to limit idle sessions from the cold end of
// the recency list. Callers hold mu.
func (r *Registry) expireIdleLocked(now time.Time, limit int) int {
	removed := 0
	for removed < limit {
		front := r.recency.Front()
		if front == nil {
			break
		}
		rec := r.byID[front.Value.(string)]
		if now.Sub(rec.session.LastActivity) < r.config.IdleTimeout {
			break
		}
		r.removeLocked(rec.session.ID)
		removed++
	}
	return removed
}

// SweepIdle purges every session idle past the timeout, one bounded batch
// per critical section.
func (r *Registry) SweepIdle() int {
	total := 0
	for {
		now := r.now()
		r.mu.Lock()
		n := r.expireIdleLocked(now, sweepBatch)
		r.mu.Unlock()

		total += n
		if n < sweepBatch {
			return total
		}
	}
}

// GetSession returns a copy of the session with the given id
func (r *Registry) GetSession(sessionID string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return rec.session, true
}

// GetUserSessions returns copies of every session owned by userID
func (r *Registry) GetUserSessions(userID string) []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	out := make([]models.Session, 0, len(ids))
	for id := range ids {
		if rec, ok := r.byID[id]; ok {
			out = append(out, rec.session)
		}
	}
	return out
}

// GetActiveSessions returns copies of all active sessions, most recently
// active first.
func (r *Registry) GetActiveSessions() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Session, 0, len(r.byID))
	for e := r.recency.Back(); e != nil; e = e.Prev() {
		rec := r.byID[e.Value.(string)]
		if rec.session.IsActive {
			out = append(out, rec.session)
		}
	}
	return out
}

// GetSessionStats aggregates the registry without mutating it
func (r *Registry) GetSessionStats() models.SessionStats {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.SessionStats
	users := make(map[string]struct{})
	var total time.Duration

	for _, rec := range r.byID {
		s := rec.session
		if !s.IsActive {
			continue
		}
		stats.ActiveSessions++
		users[s.UserID] = struct{}{}

		idle := now.Sub(s.LastActivity)
		if idle <= 5*time.Minute {
			stats.ActiveLast5Minutes++
		}
		if idle <= time.Hour {
			stats.ActiveLastHour++
		}
		total += now.Sub(s.LoginTime)
	}

	stats.DistinctUsers = len(users)
	if stats.ActiveSessions > 0 {
		stats.AverageDuration = total / time.Duration(stats.ActiveSessions)
	}
	return stats
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
