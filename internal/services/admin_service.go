package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

const (
	DefaultAttemptsLimit = 50
	MaxAttemptsLimit     = 1000
)

// SecurityDirectory is the gate surface the admin endpoints read and act on
type SecurityDirectory interface {
	ListLoginAttempts(limit int) []models.LoginAttempt
	ListBlockedAccounts() []models.BlockedAccount
	UnlockAccount(email string) bool
	ListSuspiciousIPs() []models.SuspiciousIP
	ClearSuspiciousIP(ip string) bool
	SuspectedIPs() []models.SuspectedIP
	Logout(sessionID string) bool
	LogoutAll(userID string) int
}

// SessionDirectory exposes read access to the session registry
type SessionDirectory interface {
	GetActiveSessions() []models.Session
	GetUserSessions(userID string) []models.Session
	GetSessionStats() models.SessionStats
}

// SecurityOverview is the admin dashboard summary
type SecurityOverview struct {
	Sessions        models.SessionStats `json:"sessions"`
	BlockedAccounts int                 `json:"blocked_accounts"`
	SuspiciousIPs   int                 `json:"suspicious_ips"`
	SuspectedIPs    int                 `json:"suspected_ips"`
	RecentFailures  int                 `json:"recent_failures"`
}

// AdminService backs the admin security and session endpoints
type AdminService struct {
	security    SecurityDirectory
	sessions    SessionDirectory
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAdminService creates a new AdminService.
func NewAdminService(security SecurityDirectory, sessions SessionDirectory, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		security:    security,
		sessions:    sessions,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Overview summarizes the current security state
func (s *AdminService) Overview(ctx context.Context) *SecurityOverview {
	failures := 0
	for _, a := range s.security.ListLoginAttempts(MaxAttemptsLimit) {
		if !a.Success {
			failures++
		}
	}

	return &SecurityOverview{
		Sessions:        s.sessions.GetSessionStats(),
		BlockedAccounts: len(s.security.ListBlockedAccounts()),
		SuspiciousIPs:   len(s.security.ListSuspiciousIPs()),
		SuspectedIPs:    len(s.security.SuspectedIPs()),
		RecentFailures:  failures,
	}
}

// LoginAttempts returns the newest attempts. limit is clamped to
// [1, MaxAttemptsLimit] with DefaultAttemptsLimit for non-positive values.
func (s *AdminService) LoginAttempts(ctx context.Context, limit int) []models.LoginAttempt {
	if limit <= 0 {
		limit = DefaultAttemptsLimit
	}
	if limit > MaxAttemptsLimit {
		limit = MaxAttemptsLimit
	}
	return s.security.ListLoginAttempts(limit)
}

// BlockedAccounts lists identities currently locked out
func (s *AdminService) BlockedAccounts(ctx context.Context) []models.BlockedAccount {
	return s.security.ListBlockedAccounts()
}

// UnlockAccount lifts a lockout on behalf of actorID
func (s *AdminService) UnlockAccount(ctx context.Context, actorID, email string) error {
	if !s.security.UnlockAccount(email) {
		return fmt.Errorf("no lockout state for identity: %w", models.ErrNotFound)
	}

	s.auditLogger.LogAccountAction("account_unlocked", actorID, "", map[string]string{
		"email": pkglogger.SanitizedEmail(email),
	})
	return nil
}

// SuspiciousIPs lists the standing ban list
func (s *AdminService) SuspiciousIPs(ctx context.Context) []models.SuspiciousIP {
	return s.security.ListSuspiciousIPs()
}

// ClearSuspiciousIP lifts a standing ban on behalf of actorID
func (s *AdminService) ClearSuspiciousIP(ctx context.Context, actorID, ip string) error {
	if !s.security.ClearSuspiciousIP(ip) {
		return fmt.Errorf("ip is not banned: %w", models.ErrNotFound)
	}

	s.auditLogger.LogAccountAction("suspicious_ip_cleared", actorID, ip, nil)
	return nil
}

// SuspectedIPs lists addresses with repeated failed logins
func (s *AdminService) SuspectedIPs(ctx context.Context) []models.SuspectedIP {
	return s.security.SuspectedIPs()
}

// ActiveSessions lists every active session, most recent activity first
func (s *AdminService) ActiveSessions(ctx context.Context) []models.Session {
	return s.sessions.GetActiveSessions()
}

// UserSessions lists a user's active sessions
func (s *AdminService) UserSessions(ctx context.Context, userID string) []models.Session {
	return s.sessions.GetUserSessions(userID)
}

// SessionStats aggregates the session registry
func (s *AdminService) SessionStats(ctx context.Context) models.SessionStats {
	return s.sessions.GetSessionStats()
}

// EndSession terminates a session on behalf of actorID
func (s *AdminService) EndSession(ctx context.Context, actorID, sessionID string) error {
	if !s.security.Logout(sessionID) {
		return models.ErrSessionNotFound
	}

	s.auditLogger.LogAccountAction("session_terminated", actorID, "", map[string]string{
		"session_id": sessionID,
	})
	return nil
}

// EndUserSessions terminates all of a user's sessions on behalf of actorID
func (s *AdminService) EndUserSessions(ctx context.Context, actorID, userID string) int {
	n := s.security.LogoutAll(userID)

	s.auditLogger.LogAccountAction("user_sessions_terminated", actorID, "", map[string]string{
		"target_user_id": userID,
		"sessions_ended": fmt.Sprint(n),
	})
	return n
}
