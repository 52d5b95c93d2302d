package routes

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/donorguard/internal/config"
	"github.com/BradenHooton/donorguard/internal/handlers"
	"github.com/BradenHooton/donorguard/internal/middleware"
	"github.com/BradenHooton/donorguard/internal/services"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	donorHandler *handlers.DonorHandler,
	adminHandler *handlers.AdminSecurityHandler,
	alerts middleware.AlertDispatcher,
	blacklist middleware.IPBlacklistChecker,
	clock services.Clock,
	rateLimits config.RateLimitConfig,
	adminKeys map[string]string,
	logger *slog.Logger,
) {
	loginLimit := middleware.DefaultAuthRateLimit()
	if rateLimits.LoginRequestsPerMinute > 0 {
		loginLimit.RequestsPerMinute = rateLimits.LoginRequestsPerMinute
	}
	searchLimit := middleware.RateLimitConfig{RequestsPerMinute: rateLimits.SearchRequestsPerMinute, Window: time.Minute}
	if searchLimit.RequestsPerMinute <= 0 {
		searchLimit.RequestsPerMinute = 60
	}

	// Public routes. Login is not behind the blacklist guard: the defense
	// pipeline must record the attempt before it denies a blacklisted IP.
	router.With(middleware.RateLimitByIP(loginLimit, alerts, clock)).Post("/auth/login", authHandler.Login)
	router.With(
		middleware.BlacklistGuard(blacklist, logger),
		middleware.RateLimitByIP(searchLimit, alerts, clock),
	).Get("/donors/search", donorHandler.Search)

	// Admin security console
	router.Route("/admin/security", func(r chi.Router) {
		r.Use(middleware.RequireAdminKey(adminKeys, logger))

		r.Get("/overview", adminHandler.Overview)

		r.Get("/alerts", adminHandler.ListAlerts)
		r.Get("/alerts/unread-count", adminHandler.UnreadCount)
		r.Post("/alerts/{id}/read", adminHandler.MarkAlertRead)

		r.Get("/lockouts", adminHandler.ListLockouts)
		r.Post("/lockouts/unlock", adminHandler.Unlock)

		r.Get("/blacklist", adminHandler.ListBlacklist)
		r.Post("/blacklist", adminHandler.AddBlacklist)
		r.Delete("/blacklist/{ip}", adminHandler.RemoveBlacklist)
	})
}
