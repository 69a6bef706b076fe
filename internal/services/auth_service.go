package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// Authenticator is the part of the gate the login flow drives
type Authenticator interface {
	Authenticate(ctx context.Context, req gate.Request, email string, verify gate.Verifier) (*gate.Login, error)
	Logout(sessionID string) bool
	LogoutAll(userID string) int
}

// AuthService handles login and logout
type AuthService struct {
	repo        UserRepository
	gate        Authenticator
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. A nil timing delay disables
// failure padding.
func NewAuthService(repo UserRepository, g Authenticator, tm *auth.TokenManager, timing *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		gate:        g,
		tm:          tm,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	SessionID   string        `json:"session_id"`
	User        *UserResponse `json:"user"`
}

// Login authenticates through the gate and issues an access token bound to
// the new session
func (s *AuthService) Login(ctx context.Context, req gate.Request, email, password string) (*AuthResponse, error) {
	start := time.Now()

	login, err := s.gate.Authenticate(ctx, req, email, func(ctx context.Context) (*models.User, error) {
		return s.verify(ctx, email, password)
	})
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) && s.timing != nil {
			s.timing.WaitFrom(start, false)
		}
		return nil, err
	}

	token, expiresAt, err := s.tm.GenerateAccessToken(login.User, login.SessionID)
	if err != nil {
		// no token means no way to use the session
		s.gate.Logout(login.SessionID)
		s.logger.Error("failed to issue access token", slog.String("user_id", login.User.ID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		SessionID:   login.SessionID,
		User:        userModelToResponse(login.User),
	}, nil
}

func (s *AuthService) verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// Logout ends the session the token was issued for
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if !s.gate.Logout(claims.SessionID) {
		return models.ErrSessionNotFound
	}
	s.auditLogger.LogAccountAction("logout", claims.UserID, "", map[string]string{
		"session_id": claims.SessionID,
	})
	return nil
}

// LogoutAll ends every session of the user and returns how many were ended
func (s *AuthService) LogoutAll(ctx context.Context, userID string) int {
	n := s.gate.LogoutAll(userID)
	s.auditLogger.LogAccountAction("logout_all", userID, "", map[string]string{
		"sessions_ended": fmt.Sprint(n),
	})
	return n
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
