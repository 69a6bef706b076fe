package threat

import (
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// SuspiciousIPSet is the standing ban list. Membership blocks every request
// from the address regardless of counter state.
type SuspiciousIPSet struct {
	mu  sync.RWMutex
	ips map[string]models.SuspiciousIP
	now func() time.Time
}

// NewSuspiciousIPSet creates an empty set. A nil clock defaults to time.Now.
func NewSuspiciousIPSet(clock func() time.Time) *SuspiciousIPSet {
	if clock == nil {
		clock = time.Now
	}
	return &SuspiciousIPSet{
		ips: make(map[string]models.SuspiciousIP),
		now: clock,
	}
}

// Add flags ip. It reports false if ip was already flagged, in which case
// the original record is kept.
func (s *SuspiciousIPSet) Add(ip, reason, userAgent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ips[ip]; ok {
		return false
	}
	s.ips[ip] = models.SuspiciousIP{
		IPAddress:  ip,
		Reason:     reason,
		UserAgent:  userAgent,
		DetectedAt: s.now(),
	}
	return true
}

// Contains reports whether ip is flagged
func (s *SuspiciousIPSet) Contains(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ips[ip]
	return ok
}

// Remove lifts the ban on ip
func (s *SuspiciousIPSet) Remove(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ips[ip]
	delete(s.ips, ip)
	return ok
}

// List returns every flagged address, newest first
func (s *SuspiciousIPSet) List() []models.SuspiciousIP {
	s.mu.RLock()
	out := make([]models.SuspiciousIP, 0, len(s.ips))
	for _, v := range s.ips {
		out = append(out, v)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	return out
}

// Len returns the number of flagged addresses
func (s *SuspiciousIPSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ips)
}
