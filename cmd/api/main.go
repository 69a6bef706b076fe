package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/background"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/lockout"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/ratelimit"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/BradenHooton/gatekeeper/internal/sessions"
	"github.com/BradenHooton/gatekeeper/internal/threat"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	signatures, err := threat.LoadSignatures(cfg.Security.ThreatSignaturesFile)
	if err != nil {
		logger.Error("failed to load threat signatures", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// In-memory security stores
	counter := ratelimit.NewCounter(nil)
	limiter := ratelimit.NewLimiter(counter, nil)
	tracker := lockout.NewTracker(lockout.Config{
		MaxAttempts:        cfg.Security.MaxLoginAttempts,
		LockoutDuration:    cfg.Security.LockoutDuration(),
		Multiplier:         cfg.Security.LockoutMultiplier,
		MaxLockoutDuration: cfg.Security.LockoutMaxDuration,
	}, nil)
	attempts := lockout.NewAttemptLog(lockout.DefaultAttemptCapacity, lockout.DefaultAttemptMaxAge, nil)
	registry := sessions.NewRegistry(sessions.Config{}, nil)
	suspicious := threat.NewSuspiciousIPSet(nil)
	inspector := threat.NewInspector(suspicious, signatures, threat.MaxBodyBytes, logger)

	securityGate := gate.New(gate.Components{
		Limiter:   limiter,
		Lockout:   tracker,
		Attempts:  attempts,
		Sessions:  registry,
		Inspector: inspector,
	}, logger, auditLogger, nil)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(logger, cfg.Security.CleanupInterval)
	cleanupManager.Register("rate_limits", background.SweepFunc(counter.SweepAll))
	cleanupManager.Register("lockouts", tracker)
	cleanupManager.Register("login_attempts", background.SweepFunc(attempts.Prune))
	cleanupManager.Register("sessions", background.SweepFunc(registry.SweepIdle))

	// Initialize services
	userRepo := repositories.NewUserRepository(nil)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, nil)
	timingDelay := auth.NewTimingDelay(auth.DefaultTimingConfig())

	userService := services.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)
	authService := services.NewAuthService(userRepo, securityGate, tokenManager, timingDelay, logger, auditLogger)
	formService := services.NewFormService(services.NewLogSink(logger), logger, nil)
	adminService := services.NewAdminService(securityGate, registry, logger, auditLogger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Security.GlobalRequestsPerMinute,
		IPConfig:          ipConfig,
	}))

	routes.RegisterRoutes(router, routes.Dependencies{
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

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
			"status":          "healthy",
			"active_sessions": registry.Len(),
		})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	if err := cleanupManager.Start(); err != nil {
		logger.Error("failed to start cleanup manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
