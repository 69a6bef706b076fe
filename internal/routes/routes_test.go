package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/lockout"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/ratelimit"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/BradenHooton/gatekeeper/internal/sessions"
	"github.com/BradenHooton/gatekeeper/internal/threat"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "AdminPassword123!"
	userEmail     = "alice@example.com"
	userPassword  = "AlicePassword123!"
)

// testServer runs the full router against in-memory stores
type testServer struct {
	server *httptest.Server
	nextIP atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(nil)

	registry := sessions.NewRegistry(sessions.Config{}, nil)
	securityGate := gate.New(gate.Components{
		Limiter:   ratelimit.NewLimiter(ratelimit.NewCounter(nil), nil),
		Lockout:   lockout.NewTracker(lockout.DefaultConfig(), nil),
		Attempts:  lockout.NewAttemptLog(0, 0, nil),
		Sessions:  registry,
		Inspector: threat.NewInspector(threat.NewSuspiciousIPSet(nil), threat.DefaultSignatures(), 0, logger),
	}, logger, auditLogger, nil)

	userRepo := repositories.NewUserRepository(nil)
	userService := services.NewUserService(userRepo, bcrypt.MinCost, logger)
	ctx := context.Background()
	require.NoError(t, userService.EnsureAdmin(ctx, adminEmail, adminPassword))
	_, err := userService.CreateUser(ctx, userEmail, userPassword, "Alice", "user")
	require.NoError(t, err)

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing", 15*time.Minute, nil)
	authService := services.NewAuthService(userRepo, securityGate, tokenManager, auth.NewTimingDelay(auth.TimingConfig{}), logger, auditLogger)
	formService := services.NewFormService(services.NewLogSink(logger), logger, nil)
	adminService := services.NewAdminService(securityGate, registry, logger, auditLogger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	RegisterRoutes(r, Dependencies{
		AuthHandler:  handlers.NewAuthHandler(authService, ipConfig, logger),
		FormHandler:  handlers.NewFormHandler(formService, ipConfig, logger),
		AdminHandler: handlers.NewAdminHandler(adminService),
		Admission:    middlewareCustom.NewAdmission(securityGate, ipConfig, logger),
		TokenManager: tokenManager,
		Sessions:     securityGate,
		UserRepo:     userRepo,
		IPConfig:     ipConfig,
		Logger:       logger,
	})

	ts := &testServer{server: httptest.NewServer(r)}
	t.Cleanup(ts.server.Close)
	return ts
}

// freshIP returns a client address no earlier request has used, so per-IP
// limits do not interfere with the behavior under test
func (ts *testServer) freshIP() string {
	n := ts.nextIP.Add(1)
	return fmt.Sprintf("198.51.%d.%d", n/250, n%250+1)
}

func (ts *testServer) request(t *testing.T, method, path, ip, token string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) login(t *testing.T, email, password string) *http.Response {
	return ts.request(t, http.MethodPost, "/auth/login", ts.freshIP(), "",
		map[string]string{"email": email, "password": password}, nil)
}

func (ts *testServer) loginToken(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body services.AuthResponse
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body pkghttp.ErrorResponse
	decodeBody(t, resp, &body)
	return body.Error
}

func TestLogin_LockoutAndAdminUnlock(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 4; i++ {
		resp := ts.login(t, userEmail, "wrong-password")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	resp := ts.login(t, userEmail, "wrong-password")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "account_locked", errorCode(t, resp))

	// the correct password does not help while locked
	resp = ts.login(t, userEmail, userPassword)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	adminToken := ts.loginToken(t, adminEmail, adminPassword)

	resp = ts.request(t, http.MethodGet, "/admin/security/blocked-accounts", ts.freshIP(), adminToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var blocked []models.BlockedAccount
	decodeBody(t, resp, &blocked)
	require.Len(t, blocked, 1)
	assert.Equal(t, userEmail, blocked[0].Email)

	resp = ts.request(t, http.MethodPost, "/admin/security/unlock", ts.freshIP(), adminToken,
		map[string]string{"email": userEmail}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.loginToken(t, userEmail, userPassword)
}

func TestLogin_PerIPLimit(t *testing.T) {
	ts := newTestServer(t)
	ip := ts.freshIP()

	for i := 0; i < 5; i++ {
		resp := ts.request(t, http.MethodPost, "/auth/login", ip, "",
			map[string]string{"email": fmt.Sprintf("nobody%d@example.com", i), "password": "whatever1"}, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := ts.request(t, http.MethodPost, "/auth/login", ip, "",
		map[string]string{"email": userEmail, "password": userPassword}, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limit_exceeded", errorCode(t, resp))
}

func TestLogout_EndsSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.loginToken(t, userEmail, userPassword)

	resp := ts.request(t, http.MethodPost, "/auth/logout", ts.freshIP(), token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the token is still signed and unexpired, but its session is gone
	resp = ts.request(t, http.MethodPost, "/auth/logout", ts.freshIP(), token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	ts := newTestServer(t)
	token := ts.loginToken(t, userEmail, userPassword)

	resp := ts.request(t, http.MethodGet, "/admin/sessions", ts.freshIP(), token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/admin/sessions", ts.freshIP(), "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCourierCall_PhoneLimitAcrossFormats(t *testing.T) {
	ts := newTestServer(t)
	formats := []string{
		"+7 (900) 123-45-67",
		"79001234567",
		"+7-900-123-45-67",
		"7 900 123 45 67",
		"+7(900)1234567",
	}

	for _, phone := range formats {
		resp := ts.request(t, http.MethodPost, "/forms/courier-call", ts.freshIP(), "",
			map[string]string{"name": "Bob", "phone": phone}, nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode, phone)
	}

	resp := ts.request(t, http.MethodPost, "/forms/courier-call", ts.freshIP(), "",
		map[string]string{"name": "Bob", "phone": "+7 900 1234567"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "7200", resp.Header.Get("Retry-After"))
}

func TestScannerBan_ClearedByAdmin(t *testing.T) {
	ts := newTestServer(t)
	ip := "203.0.113.9"
	form := map[string]string{"name": "Eve", "email": "eve@example.com", "message": "hi"}

	resp := ts.request(t, http.MethodPost, "/forms/application", ip, "", form,
		map[string]string{"User-Agent": "sqlmap/1.7"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// a benign request from the banned address is still rejected
	resp = ts.request(t, http.MethodPost, "/forms/application", ip, "", form, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken := ts.loginToken(t, adminEmail, adminPassword)

	resp = ts.request(t, http.MethodGet, "/admin/security/suspicious-ips", ts.freshIP(), adminToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var suspicious []models.SuspiciousIP
	decodeBody(t, resp, &suspicious)
	require.Len(t, suspicious, 1)
	assert.Equal(t, ip, suspicious[0].IPAddress)

	resp = ts.request(t, http.MethodDelete, "/admin/security/suspicious-ips/"+ip, ts.freshIP(), adminToken, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/forms/application", ip, "", form, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestTraversalRejectedWithoutBan(t *testing.T) {
	ts := newTestServer(t)
	ip := ts.freshIP()

	resp := ts.request(t, http.MethodPost, "/forms/courier-call?file=../../etc/passwd", ip, "",
		map[string]string{"name": "Bob", "phone": "+15550001111"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/forms/courier-call", ip, "",
		map[string]string{"name": "Bob", "phone": "+15550001111"}, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestForms_IdentityLimitsIgnoreKeyCase(t *testing.T) {
	ts := newTestServer(t)

	var codes []int
	for i := 0; i < 6; i++ {
		resp := ts.request(t, http.MethodPost, "/forms/courier-call", ts.freshIP(), "",
			map[string]string{"name": "Bob", "Phone": "+1 555 000 2222"}, nil)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{202, 202, 202, 202, 202, 429}, codes)

	codes = codes[:0]
	for i := 0; i < 4; i++ {
		resp := ts.request(t, http.MethodPost, "/forms/application", ts.freshIP(), "",
			map[string]string{"name": "Eve", "EMAIL": "Victim@Example.com"}, nil)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{202, 202, 202, 429}, codes)
}

func TestCourierCall_PhoneWithoutDigitsRejected(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := ts.request(t, http.MethodPost, "/forms/courier-call", ts.freshIP(), "",
			map[string]string{"name": "Bob", "phone": "call me back"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}
