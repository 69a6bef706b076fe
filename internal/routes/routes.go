package routes

import (
	"log/slog"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// authenticatedRequestsPerMinute throttles each signed-in user
const authenticatedRequestsPerMinute = 120

// Dependencies are the handlers and collaborators the routes are wired to
type Dependencies struct {
	AuthHandler  *handlers.AuthHandler
	FormHandler  *handlers.FormHandler
	AdminHandler *handlers.AdminHandler

	Admission    *middleware.Admission
	TokenManager *auth.TokenManager
	Sessions     auth.SessionToucher
	UserRepo     auth.UserRepository
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger
}

// RegisterRoutes registers all application routes. Every route runs the
// threat heuristics; public routes add their own limiters.
func RegisterRoutes(router chi.Router, d Dependencies) {
	// Public routes - no authentication required
	router.With(d.Admission.Guard(gate.RouteLogin)).Post("/auth/login", d.AuthHandler.Login)
	router.With(d.Admission.Guard(gate.RouteCourierCall)).Post("/forms/courier-call", d.FormHandler.CourierCall)
	router.With(d.Admission.Guard(gate.RouteApplication)).Post("/forms/application", d.FormHandler.Application)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(d.Admission.Guard(gate.RouteScreenOnly))
		r.Use(auth.AuthMiddleware(d.TokenManager, d.Sessions, d.Logger))
		r.Use(middleware.RateLimitByUserID(authenticatedRequestsPerMinute, d.IPConfig))

		r.Post("/auth/logout", d.AuthHandler.Logout)
		r.Post("/auth/logout-all", d.AuthHandler.LogoutAll)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(d.UserRepo, "admin"))

			r.Route("/security", func(r chi.Router) {
				r.Get("/overview", d.AdminHandler.GetOverview)
				r.Get("/login-attempts", d.AdminHandler.GetLoginAttempts)
				r.Get("/blocked-accounts", d.AdminHandler.GetBlockedAccounts)
				r.Post("/unlock", d.AdminHandler.UnlockAccount)
				r.Get("/suspicious-ips", d.AdminHandler.GetSuspiciousIPs)
				r.Delete("/suspicious-ips/{ip}", d.AdminHandler.ClearSuspiciousIP)
				r.Get("/suspected-ips", d.AdminHandler.GetSuspectedIPs)
			})

			r.Get("/sessions", d.AdminHandler.GetSessions)
			r.Get("/sessions/stats", d.AdminHandler.GetSessionStats)
			r.Delete("/sessions/{id}", d.AdminHandler.EndSession)
			r.Delete("/users/{id}/sessions", d.AdminHandler.EndUserSessions)
		})
	})
}
