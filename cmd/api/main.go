package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/donorguard/internal/background"
	"github.com/BradenHooton/donorguard/internal/cache"
	"github.com/BradenHooton/donorguard/internal/config"
	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/handlers"
	"github.com/BradenHooton/donorguard/internal/metrics"
	middlewareCustom "github.com/BradenHooton/donorguard/internal/middleware"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/repositories"
	"github.com/BradenHooton/donorguard/internal/routes"
	"github.com/BradenHooton/donorguard/internal/services"
	pkgauth "github.com/BradenHooton/donorguard/pkg/auth"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
	pkglogger "github.com/BradenHooton/donorguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Blacklist cache is optional; a nil interface keeps the pipeline on Postgres only
	var blacklistCache services.BlacklistCache
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	cancel()
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		blacklistCache = cache.NewRedisBlacklistCache(redisClient)
		logger.Info("blacklist cache enabled")
	}

	// Critical alert email is optional
	var notifier services.AlertNotifier
	if cfg.Alerts.EmailEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ses, err := services.NewSESAlertNotifier(ctx, cfg.Alerts.AWSRegion, cfg.Alerts.FromAddress, cfg.Alerts.Recipients, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize alert email", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = ses
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	donorRepo := repositories.NewDonorRepository(db)
	alertRepo := repositories.NewAdminAlertRepository(db)
	stores := services.DefenseStores{
		Attempts:  repositories.NewLoginAttemptRepository(db),
		Lockouts:  repositories.NewLockoutRepository(db),
		Blacklist: repositories.NewBlacklistRepository(db),
	}

	// Initialize services
	clock := services.SystemClock{}
	auditLogger := pkglogger.NewAuditLogger(logger)

	defense := services.NewLoginDefenseService(stores, blacklistCache, clock, appMetrics, services.LoginDefenseConfig{
		LookbackWindow:       cfg.Defense.LookbackWindow,
		MaxAttempts:          cfg.Defense.MaxAttempts,
		AdminMaxAttempts:     cfg.Defense.AdminMaxAttempts,
		CaptchaThreshold:     cfg.Defense.CaptchaThreshold,
		IPBlacklistThreshold: cfg.Defense.IPBlacklistThreshold,
	}, logger, auditLogger)
	alerts := services.NewAlertService(alertRepo, notifier, clock, appMetrics, services.AlertServiceConfig{
		DispatchTimeout: cfg.Defense.AlertDispatchTimeout,
	}, logger)
	authService := services.NewAuthService(userRepo, defense, alerts, clock, logger, auditLogger)
	donorService := services.NewDonorSearchService(donorRepo, appMetrics, logger)
	adminService := services.NewAdminService(defense, alerts, clock, logger)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(defense, cfg.Defense.AttemptRetention, logger, cfg.Defense.CleanupInterval)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	donorHandler := handlers.NewDonorHandler(donorService)
	adminHandler := handlers.NewAdminSecurityHandler(adminService)

	// Bootstrap first admin user if configured
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(ipConfig))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, donorHandler, adminHandler, alerts, defense, clock, cfg.RateLimit, cfg.Admin.APIKeys, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

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

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Let in-flight alert writes finish before the pool closes
	alerts.Wait()

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
