package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the admin security service contract.
type AdminServiceInterface interface {
	Overview(ctx context.Context) *services.SecurityOverview
	LoginAttempts(ctx context.Context, limit int) []models.LoginAttempt
	BlockedAccounts(ctx context.Context) []models.BlockedAccount
	UnlockAccount(ctx context.Context, actorID, email string) error
	SuspiciousIPs(ctx context.Context) []models.SuspiciousIP
	ClearSuspiciousIP(ctx context.Context, actorID, ip string) error
	SuspectedIPs(ctx context.Context) []models.SuspectedIP
	ActiveSessions(ctx context.Context) []models.Session
	UserSessions(ctx context.Context, userID string) []models.Session
	SessionStats(ctx context.Context) models.SessionStats
	EndSession(ctx context.Context, actorID, sessionID string) error
	EndUserSessions(ctx context.Context, actorID, userID string) int
}

// AdminHandler handles admin security HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockRequest names the identity to unlock
type UnlockRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func actorID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return ""
}

// GetOverview handles GET /admin/security/overview
func (h *AdminHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.Overview(r.Context()))
}

// GetLoginAttempts handles GET /admin/security/login-attempts
// Accepts optional query param ?limit=N.
func (h *AdminHandler) GetLoginAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.LoginAttempts(r.Context(), limit))
}

// GetBlockedAccounts handles GET /admin/security/blocked-accounts
func (h *AdminHandler) GetBlockedAccounts(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.BlockedAccounts(r.Context()))
}

// UnlockAccount handles POST /admin/security/unlock
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.UnlockAccount(r.Context(), actorID(r), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account unlocked"})
}

// GetSuspiciousIPs handles GET /admin/security/suspicious-ips
func (h *AdminHandler) GetSuspiciousIPs(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.SuspiciousIPs(r.Context()))
}

// ClearSuspiciousIP handles DELETE /admin/security/suspicious-ips/{ip}
func (h *AdminHandler) ClearSuspiciousIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := validate.Var(ip, "required,ip"); err != nil {
		pkghttp.WriteBadRequest(w, "ip must be a valid IP address")
		return
	}

	if err := h.service.ClearSuspiciousIP(r.Context(), actorID(r), ip); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSuspectedIPs handles GET /admin/security/suspected-ips
func (h *AdminHandler) GetSuspectedIPs(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.SuspectedIPs(r.Context()))
}

// GetSessions handles GET /admin/sessions
// Accepts optional query param ?user_id=ID.
func (h *AdminHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		pkghttp.WriteJSON(w, http.StatusOK, h.service.UserSessions(r.Context(), userID))
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, h.service.ActiveSessions(r.Context()))
}

// GetSessionStats handles GET /admin/sessions/stats
func (h *AdminHandler) GetSessionStats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.SessionStats(r.Context()))
}

// EndSession handles DELETE /admin/sessions/{id}
func (h *AdminHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndSession(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndUserSessions handles DELETE /admin/users/{id}/sessions
func (h *AdminHandler) EndUserSessions(w http.ResponseWriter, r *http.Request) {
	n := h.service.EndUserSessions(r.Context(), actorID(r), chi.URLParam(r, "id"))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"sessions_ended": n})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrSessionNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
