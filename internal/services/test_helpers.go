package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, req gate.Request, email string, verify gate.Verifier) (*gate.Login, error)
	LoggedOut        []string
	LogoutAllCount   int
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, req gate.Request, email string, verify gate.Verifier) (*gate.Login, error) {
	return m.AuthenticateFunc(ctx, req, email, verify)
}

func (m *MockAuthenticator) Logout(sessionID string) bool {
	m.LoggedOut = append(m.LoggedOut, sessionID)
	return true
}

func (m *MockAuthenticator) LogoutAll(userID string) int {
	return m.LogoutAllCount
}

// stubRequest is a minimal gate.Request
type stubRequest struct {
	ip string
}

func (r stubRequest) ClientIP() string          { return r.ip }
func (r stubRequest) Header(name string) string { return "" }
func (r stubRequest) Path() string              { return "/auth/login" }
func (r stubRequest) RawQuery() string          { return "" }
func (r stubRequest) Method() string            { return "POST" }
func (r stubRequest) ContentLength() int64      { return 0 }
func (r stubRequest) Field(name string) string  { return "" }

// recordingSink captures delivered submissions
type recordingSink struct {
	mu   sync.Mutex
	subs []Submission
	err  error
}

func (s *recordingSink) Deliver(ctx context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}
