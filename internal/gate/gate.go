// Package gate composes threat heuristics, rate limiting, account lockout and
// session tracking into the ordered admission pipeline for guarded requests.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/lockout"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/ratelimit"
	"github.com/BradenHooton/gatekeeper/internal/sessions"
	"github.com/BradenHooton/gatekeeper/internal/threat"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

const (
	// suspectedIPThreshold and suspectedIPWindow drive the reporting-only
	// per-IP failure signal
	suspectedIPThreshold = 3
	suspectedIPWindow    = time.Hour
)

// Verifier checks credentials for the identity being authenticated.
// It returns models.ErrUnauthorized (or models.ErrNotFound) for bad
// credentials; any other error is treated as internal.
type Verifier func(ctx context.Context) (*models.User, error)

// Login is the result of a successful authentication
type Login struct {
	User      *models.User
	SessionID string
}

// Components are the stores the gate orchestrates. Each is constructed once
// at startup and owned by the caller.
type Components struct {
	Limiter   *ratelimit.Limiter
	Lockout   *lockout.Tracker
	Attempts  *lockout.AttemptLog
	Sessions  *sessions.Registry
	Inspector *threat.Inspector
}

// Gate runs the admission pipeline
type Gate struct {
	limiter   *ratelimit.Limiter
	lockout   *lockout.Tracker
	attempts  *lockout.AttemptLog
	sessions  *sessions.Registry
	inspector *threat.Inspector

	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// New creates a Gate. A nil clock defaults to time.Now.
func New(c Components, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		limiter:     c.Limiter,
		lockout:     c.Lockout,
		attempts:    c.Attempts,
		sessions:    c.Sessions,
		inspector:   c.Inspector,
		logger:      logger,
		auditLogger: auditLogger,
		now:         clock,
	}
}

// Guard runs the request-level stages: suspicious-IP fast reject, the
// header/user-agent/URL/size heuristics, then each of the route's limiters.
// A route whose identity (phone, email) is absent or normalizes to nothing is
// rejected as invalid. The first failing stage ends the pipeline.
func (g *Gate) Guard(req Request, route Route) error {
	if rej := g.screen(req); rej != nil {
		return rej
	}

	// every identity resolves before any counter is touched
	identities := make([]string, len(route.Limits))
	for i, rule := range route.Limits {
		identities[i] = rule.Identity(req)
		if identities[i] == "" {
			g.logger.Warn("request missing limiter identity",
				slog.String("route", route.Name),
				slog.String("scope", string(rule.Scope)),
				slog.String("ip_address", req.ClientIP()))
			return validationRejection(fmt.Sprintf("no %s identity on route %s", rule.Scope, route.Name))
		}
	}

	for i, rule := range route.Limits {
		d, err := g.limiter.Check(rule.Scope, identities[i])
		if err != nil {
			return fmt.Errorf("failed to check rate limit: %w", err)
		}
		if !d.Allowed {
			g.logger.Warn("rate limited",
				slog.String("route", route.Name),
				slog.String("scope", string(rule.Scope)),
				slog.String("ip_address", req.ClientIP()),
				slog.Time("reset_at", d.ResetAt))
			return rateLimitedRejection(
				fmt.Sprintf("scope %s exceeded on route %s", rule.Scope, route.Name),
				d.RetryAfter(g.now()),
			)
		}
	}

	return nil
}

func (g *Gate) screen(req Request) *Rejection {
	f := g.inspector.Inspect(req)
	if f == nil {
		return nil
	}

	g.auditLogger.LogThreat(pkglogger.AuditEvent{
		EventType:     string(f.Rule),
		IPAddress:     req.ClientIP(),
		UserAgent:     req.Header("User-Agent"),
		FailureReason: f.Detail,
		Metadata: map[string]string{
			"method": req.Method(),
			"path":   req.Path(),
		},
	}, f.Escalated)

	switch f.Status {
	case http.StatusForbidden:
		return forbiddenRejection(f.Detail)
	case http.StatusRequestEntityTooLarge:
		return payloadTooLargeRejection(f.Detail)
	default:
		return validationRejection(f.Detail)
	}
}

// Authenticate runs the identity stages for a login. The lockout check runs
// before verify, so a locked identity never reaches the credential
// comparison and never records another failure.
func (g *Gate) Authenticate(ctx context.Context, req Request, email string, verify Verifier) (*Login, error) {
	email = ratelimit.NormalizeEmail(email)
	ip := req.ClientIP()
	userAgent := req.Header("User-Agent")

	if until, locked := g.lockout.LockedUntil(email); locked {
		g.recordAttempt(email, ip, userAgent, false, lockout.ReasonAccountLocked)
		g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			Email:         email,
			IPAddress:     ip,
			FailureReason: lockout.ReasonAccountLocked,
		})
		return nil, accountLockedRejection("identity is locked", until.Sub(g.now()))
	}

	user, err := verify(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrUnauthorized) && !errors.Is(err, models.ErrNotFound) {
			g.logger.Error("credential verification failed", slog.Any("error", err))
			return nil, fmt.Errorf("failed to verify credentials: %w", err)
		}
		return nil, g.fail(email, ip, userAgent)
	}

	g.lockout.RecordSuccess(email)
	g.limiter.Reset(ratelimit.ScopeAuthIP, ip)

	sessionID, err := g.sessions.CreateSession(user.ID, user.Email, ip, userAgent)
	if err != nil {
		g.logger.Error("failed to create session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	g.recordAttempt(email, ip, userAgent, true, "")
	g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	return &Login{User: user, SessionID: sessionID}, nil
}

func (g *Gate) fail(email, ip, userAgent string) error {
	locked, until := g.lockout.RecordFailure(email)
	g.recordAttempt(email, ip, userAgent, false, lockout.ReasonInvalidCredentials)
	g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		FailureReason: lockout.ReasonInvalidCredentials,
	})

	if locked {
		g.auditLogger.LogAccountAction("account_locked", "", ip, map[string]string{
			"email":        pkglogger.SanitizedEmail(email),
			"locked_until": until.UTC().Format(time.RFC3339),
		})
		return accountLockedRejection("failure threshold reached", until.Sub(g.now()))
	}
	return authenticationFailedRejection("invalid credentials")
}

func (g *Gate) recordAttempt(email, ip, userAgent string, success bool, reason string) {
	g.attempts.Record(models.LoginAttempt{
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		AttemptTime:   g.now(),
		Success:       success,
		FailureReason: reason,
	})
}

// CheckLimit counts a hit for key under scope and returns the decision
func (g *Gate) CheckLimit(scope ratelimit.Scope, key string) (ratelimit.Decision, error) {
	return g.limiter.Check(scope, key)
}

// IsLocked reports whether the identity is locked out
func (g *Gate) IsLocked(email string) bool {
	return g.lockout.IsLocked(ratelimit.NormalizeEmail(email))
}

// RecordFailure counts a failed login for the identity outside of Authenticate.
// It reports whether the identity is locked once the failure is recorded,
// whether this call caused the lock or it was already in place.
func (g *Gate) RecordFailure(email string) bool {
	locked, until := g.lockout.RecordFailure(ratelimit.NormalizeEmail(email))
	return locked || g.now().Before(until)
}

// RecordSuccess clears the identity's failure state
func (g *Gate) RecordSuccess(email string) {
	g.lockout.RecordSuccess(ratelimit.NormalizeEmail(email))
}

// Touch records activity on a session. It reports false if the session is
// gone or idle-expired.
func (g *Gate) Touch(sessionID string) bool {
	return g.sessions.UpdateActivity(sessionID)
}

// Logout ends a single session
func (g *Gate) Logout(sessionID string) bool {
	return g.sessions.EndSession(sessionID)
}

// LogoutAll ends every session of a user
func (g *Gate) LogoutAll(userID string) int {
	return g.sessions.EndAllUserSessions(userID)
}

// ListLoginAttempts returns the newest login attempts
func (g *Gate) ListLoginAttempts(limit int) []models.LoginAttempt {
	return g.attempts.Recent(limit)
}

// ListBlockedAccounts returns identities locked right now
func (g *Gate) ListBlockedAccounts() []models.BlockedAccount {
	return g.lockout.BlockedAccounts()
}

// UnlockAccount lifts a lockout immediately and resets its failure count
func (g *Gate) UnlockAccount(email string) bool {
	return g.lockout.UnlockAccount(ratelimit.NormalizeEmail(email))
}

// ListSuspiciousIPs returns the standing ban list
func (g *Gate) ListSuspiciousIPs() []models.SuspiciousIP {
	return g.inspector.Suspicious().List()
}

// ClearSuspiciousIP lifts the standing ban on ip
func (g *Gate) ClearSuspiciousIP(ip string) bool {
	return g.inspector.Suspicious().Remove(ip)
}

// SuspectedIPs reports addresses with 3+ failed logins in the last hour.
// The signal is informational; nothing enforces it.
func (g *Gate) SuspectedIPs() []models.SuspectedIP {
	return g.attempts.SuspectedIPs(suspectedIPThreshold, suspectedIPWindow)
}
