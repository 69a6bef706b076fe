package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	lastLimit    int
	lastActor    string
	unlocked     []string
	cleared      []string
	endedSession string
}

func (m *MockAdminService) Overview(ctx context.Context) *services.SecurityOverview {
	return &services.SecurityOverview{BlockedAccounts: 1}
}
func (m *MockAdminService) LoginAttempts(ctx context.Context, limit int) []models.LoginAttempt {
	m.lastLimit = limit
	return []models.LoginAttempt{{Email: "a@b.com"}}
}
func (m *MockAdminService) BlockedAccounts(ctx context.Context) []models.BlockedAccount {
	return []models.BlockedAccount{{Email: "a@b.com", FailureCount: 5}}
}
func (m *MockAdminService) UnlockAccount(ctx context.Context, actorID, email string) error {
	m.lastActor = actorID
	if email != "a@b.com" {
		return models.ErrNotFound
	}
	m.unlocked = append(m.unlocked, email)
	return nil
}
func (m *MockAdminService) SuspiciousIPs(ctx context.Context) []models.SuspiciousIP {
	return []models.SuspiciousIP{{IPAddress: "6.6.6.6"}}
}
func (m *MockAdminService) ClearSuspiciousIP(ctx context.Context, actorID, ip string) error {
	if ip != "6.6.6.6" {
		return models.ErrNotFound
	}
	m.cleared = append(m.cleared, ip)
	return nil
}
func (m *MockAdminService) SuspectedIPs(ctx context.Context) []models.SuspectedIP {
	return []models.SuspectedIP{{IPAddress: "8.8.8.8", FailureCount: 3}}
}
func (m *MockAdminService) ActiveSessions(ctx context.Context) []models.Session {
	return []models.Session{{ID: "s1"}, {ID: "s2"}}
}
func (m *MockAdminService) UserSessions(ctx context.Context, userID string) []models.Session {
	return []models.Session{{ID: "s1", UserID: userID}}
}
func (m *MockAdminService) SessionStats(ctx context.Context) models.SessionStats {
	return models.SessionStats{ActiveSessions: 2}
}
func (m *MockAdminService) EndSession(ctx context.Context, actorID, sessionID string) error {
	if sessionID != "s1" {
		return models.ErrSessionNotFound
	}
	m.endedSession = sessionID
	return nil
}
func (m *MockAdminService) EndUserSessions(ctx context.Context, actorID, userID string) int {
	return 2
}

func TestAdminHandler_GetLoginAttempts(t *testing.T) {
	mock := &MockAdminService{}
	h := NewAdminHandler(mock)

	w := httptest.NewRecorder()
	h.GetLoginAttempts(w, httptest.NewRequest(http.MethodGet, "/admin/security/login-attempts?limit=25", nil))

	var attempts []models.LoginAttempt
	AssertJSONResponse(t, w, http.StatusOK, &attempts)
	assert.Len(t, attempts, 1)
	assert.Equal(t, 25, mock.lastLimit)

	w = httptest.NewRecorder()
	h.GetLoginAttempts(w, httptest.NewRequest(http.MethodGet, "/admin/security/login-attempts?limit=abc", nil))
	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestAdminHandler_UnlockAccount(t *testing.T) {
	mock := &MockAdminService{}
	h := NewAdminHandler(mock)

	req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/admin/security/unlock", UnlockRequest{Email: "a@b.com"}), "admin-1", "s1")
	w := httptest.NewRecorder()
	h.UnlockAccount(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a@b.com"}, mock.unlocked)
	assert.Equal(t, "admin-1", mock.lastActor)

	w = httptest.NewRecorder()
	h.UnlockAccount(w, NewTestRequest(t, http.MethodPost, "/admin/security/unlock", UnlockRequest{Email: "x@y.com"}))
	AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestAdminHandler_ClearSuspiciousIP(t *testing.T) {
	mock := &MockAdminService{}
	h := NewAdminHandler(mock)

	tests := []struct {
		ip     string
		status int
	}{
		{"6.6.6.6", http.StatusNoContent},
		{"1.2.3.4", http.StatusNotFound},
		{"not-an-ip", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			req := WithChiRouteContext(httptest.NewRequest(http.MethodDelete, "/admin/security/suspicious-ips/"+tt.ip, nil), map[string]string{"ip": tt.ip})
			w := httptest.NewRecorder()
			h.ClearSuspiciousIP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, []string{"6.6.6.6"}, mock.cleared)
}

func TestAdminHandler_Lists(t *testing.T) {
	h := NewAdminHandler(&MockAdminService{})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
	}{
		{"overview", h.GetOverview, "/admin/security/overview"},
		{"blocked", h.GetBlockedAccounts, "/admin/security/blocked-accounts"},
		{"suspicious", h.GetSuspiciousIPs, "/admin/security/suspicious-ips"},
		{"suspected", h.GetSuspectedIPs, "/admin/security/suspected-ips"},
		{"sessions", h.GetSessions, "/admin/sessions"},
		{"stats", h.GetSessionStats, "/admin/sessions/stats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			AssertJSONResponse(t, w, http.StatusOK, nil)
		})
	}
}

func TestAdminHandler_GetSessionsForUser(t *testing.T) {
	h := NewAdminHandler(&MockAdminService{})

	w := httptest.NewRecorder()
	h.GetSessions(w, httptest.NewRequest(http.MethodGet, "/admin/sessions?user_id=user-7", nil))

	var sessions []models.Session
	AssertJSONResponse(t, w, http.StatusOK, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, "user-7", sessions[0].UserID)
}

func TestAdminHandler_EndSession(t *testing.T) {
	mock := &MockAdminService{}
	h := NewAdminHandler(mock)

	w := httptest.NewRecorder()
	h.EndSession(w, WithChiRouteContext(httptest.NewRequest(http.MethodDelete, "/admin/sessions/s1", nil), map[string]string{"id": "s1"}))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "s1", mock.endedSession)

	w = httptest.NewRecorder()
	h.EndSession(w, WithChiRouteContext(httptest.NewRequest(http.MethodDelete, "/admin/sessions/zz", nil), map[string]string{"id": "zz"}))
	AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestAdminHandler_EndUserSessions(t *testing.T) {
	h := NewAdminHandler(&MockAdminService{})

	w := httptest.NewRecorder()
	h.EndUserSessions(w, WithChiRouteContext(httptest.NewRequest(http.MethodDelete, "/admin/users/user-1/sessions", nil), map[string]string{"id": "user-1"}))

	var resp map[string]int
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 2, resp["sessions_ended"])
}
