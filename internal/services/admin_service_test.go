package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecurity struct {
	attempts     []models.LoginAttempt
	blocked      []models.BlockedAccount
	suspicious   []models.SuspiciousIP
	suspected    []models.SuspectedIP
	unlockable   map[string]bool
	liveSessions map[string]bool
	lastLimit    int
}

func (f *fakeSecurity) ListLoginAttempts(limit int) []models.LoginAttempt {
	f.lastLimit = limit
	if limit < len(f.attempts) {
		return f.attempts[:limit]
	}
	return f.attempts
}
func (f *fakeSecurity) ListBlockedAccounts() []models.BlockedAccount { return f.blocked }
func (f *fakeSecurity) UnlockAccount(email string) bool              { return f.unlockable[email] }
func (f *fakeSecurity) ListSuspiciousIPs() []models.SuspiciousIP     { return f.suspicious }
func (f *fakeSecurity) ClearSuspiciousIP(ip string) bool {
	for _, s := range f.suspicious {
		if s.IPAddress == ip {
			return true
		}
	}
	return false
}
func (f *fakeSecurity) SuspectedIPs() []models.SuspectedIP { return f.suspected }
func (f *fakeSecurity) Logout(sessionID string) bool       { return f.liveSessions[sessionID] }
func (f *fakeSecurity) LogoutAll(userID string) int        { return 2 }

type fakeSessions struct {
	stats models.SessionStats
}

func (f *fakeSessions) GetActiveSessions() []models.Session { return []models.Session{{ID: "s1"}} }
func (f *fakeSessions) GetUserSessions(userID string) []models.Session {
	return []models.Session{{ID: "s1", UserID: userID}}
}
func (f *fakeSessions) GetSessionStats() models.SessionStats { return f.stats }

func newAdminFixture() (*AdminService, *fakeSecurity) {
	sec := &fakeSecurity{
		attempts: []models.LoginAttempt{
			{Email: "a@b.com", Success: false, AttemptTime: testNow},
			{Email: "a@b.com", Success: true, AttemptTime: testNow.Add(-time.Minute)},
			{Email: "c@d.com", Success: false, AttemptTime: testNow.Add(-2 * time.Minute)},
		},
		blocked:      []models.BlockedAccount{{Email: "x@y.com", FailureCount: 5}},
		suspicious:   []models.SuspiciousIP{{IPAddress: "6.6.6.6"}},
		suspected:    []models.SuspectedIP{{IPAddress: "8.8.8.8", FailureCount: 3}},
		unlockable:   map[string]bool{"x@y.com": true},
		liveSessions: map[string]bool{"s1": true},
	}
	svc := NewAdminService(sec, &fakeSessions{stats: models.SessionStats{ActiveSessions: 4}}, testLogger(), testAuditLogger())
	return svc, sec
}

func TestAdminService_Overview(t *testing.T) {
	svc, _ := newAdminFixture()

	o := svc.Overview(context.Background())
	assert.Equal(t, 4, o.Sessions.ActiveSessions)
	assert.Equal(t, 1, o.BlockedAccounts)
	assert.Equal(t, 1, o.SuspiciousIPs)
	assert.Equal(t, 1, o.SuspectedIPs)
	assert.Equal(t, 2, o.RecentFailures)
}

func TestAdminService_LoginAttemptsClampsLimit(t *testing.T) {
	svc, sec := newAdminFixture()
	ctx := context.Background()

	svc.LoginAttempts(ctx, 0)
	assert.Equal(t, DefaultAttemptsLimit, sec.lastLimit)

	svc.LoginAttempts(ctx, 1_000_000)
	assert.Equal(t, MaxAttemptsLimit, sec.lastLimit)

	got := svc.LoginAttempts(ctx, 2)
	assert.Len(t, got, 2)
}

func TestAdminService_UnlockAccount(t *testing.T) {
	svc, _ := newAdminFixture()
	ctx := context.Background()

	require.NoError(t, svc.UnlockAccount(ctx, "admin-1", "x@y.com"))
	assert.ErrorIs(t, svc.UnlockAccount(ctx, "admin-1", "nobody@y.com"), models.ErrNotFound)
}

func TestAdminService_ClearSuspiciousIP(t *testing.T) {
	svc, _ := newAdminFixture()
	ctx := context.Background()

	require.NoError(t, svc.ClearSuspiciousIP(ctx, "admin-1", "6.6.6.6"))
	assert.ErrorIs(t, svc.ClearSuspiciousIP(ctx, "admin-1", "1.2.3.4"), models.ErrNotFound)
}

func TestAdminService_Sessions(t *testing.T) {
	svc, _ := newAdminFixture()
	ctx := context.Background()

	require.NoError(t, svc.EndSession(ctx, "admin-1", "s1"))
	assert.ErrorIs(t, svc.EndSession(ctx, "admin-1", "gone"), models.ErrSessionNotFound)
	assert.Equal(t, 2, svc.EndUserSessions(ctx, "admin-1", "user-1"))
	assert.Len(t, svc.ActiveSessions(ctx), 1)
	assert.Equal(t, "user-9", svc.UserSessions(ctx, "user-9")[0].UserID)
	assert.Equal(t, 4, svc.SessionStats(ctx).ActiveSessions)
}
