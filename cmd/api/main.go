package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/background"
	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/config"
	"github.com/BradenHooton/cadmium/internal/database"
	"github.com/BradenHooton/cadmium/internal/handlers"
	middlewareCustom "github.com/BradenHooton/cadmium/internal/middleware"
	"github.com/BradenHooton/cadmium/internal/repositories"
	"github.com/BradenHooton/cadmium/internal/routes"
	"github.com/BradenHooton/cadmium/internal/services"
	pkglogger "github.com/BradenHooton/cadmium/pkg/logger"
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.String("guard_failure_detection", cfg.Guard.FailureDetection),
	)

	// Initialize database
	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := database.Migrate(ctx, cfg.Database.DSN(), logger)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Ephemeral state: sessions and guard counters
	store, closeStore, err := newStore(cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to initialize cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	attendanceRepo := repositories.NewAttendanceRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)
	inventoryRepo := repositories.NewInventoryRepository(db)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditRepo, logger)

	ipConfig := cfg.Server.IPConfig()

	guardService := services.NewAdminGuardService(store, services.AdminGuardConfig{
		MaxLoginAttempts:  cfg.Guard.MaxLoginAttempts,
		LockoutDuration:   cfg.Guard.LockoutDuration,
		RateLimitRequests: cfg.Guard.RateLimitRequests,
		RateLimitWindow:   cfg.Guard.RateLimitWindow,
		StoreTimeout:      cfg.Guard.StoreTimeout,
		FailClosed:        cfg.Guard.FailClosed,
	}, logger, auditLogger, auditService)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	sessionManager := auth.NewSessionManager(store, auth.NewTokenManager(cfg.Auth.SessionSecret), accountRepo, auth.SessionConfig{
		TTL:                   cfg.Auth.SessionTTL,
		ManagementIdleTimeout: cfg.Auth.ManagementIdleTimeout,
	}, logger)
	cookieConfig := auth.CookieConfig{Secure: cfg.Auth.CookieSecure, SameSite: "lax"}

	// Initialize services
	authService := services.NewAuthService(accountRepo, services.AuthConfig{
		DefaultPassword: cfg.Auth.DefaultAccountPassword,
	}, timingDelay, auditService, logger, auditLogger)
	accountService := services.NewAccountService(accountRepo, cfg.Auth.DefaultAccountPassword, auditService, logger, auditLogger)
	attendanceService := services.NewAttendanceService(attendanceRepo, accountRepo, auditService, logger)
	adminService := services.NewAdminService(accountRepo, attendanceRepo, auditRepo, logger)
	inventoryService := services.NewInventoryService(inventoryRepo, logger)

	// Failed privileged logins reach the guard either as handler events or from the response
	detectFromResponse := cfg.Guard.FailureDetection == "response"
	var failureObserver services.LoginFailureObserver
	if !detectFromResponse {
		failureObserver = guardService
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth: handlers.NewAuthHandler(authService, sessionManager, failureObserver, auditService, handlers.AuthHandlerConfig{
			Cookies:        cookieConfig,
			IPConfig:       ipConfig,
			RevealDisabled: cfg.Auth.RevealDisabledAccounts,
		}, logger),
		Accounts:        handlers.NewAccountHandler(accountService, authService),
		Attendance:      handlers.NewAttendanceHandler(attendanceService),
		AttendanceAdmin: handlers.NewAttendanceAdminHandler(attendanceService),
		Inventory:       handlers.NewInventoryHandler(inventoryService),
		Admin:           handlers.NewAdminHandler(adminService, guardService, logger),
		Audit:           handlers.NewAuditHandler(auditService),
	}

	// Bootstrap the superuser if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ensureSuperuser(ctx, accountService, cfg.Server.Env, logger)
	cancel()

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(auditService, cfg.Auth.AuditRetentionDays, logger, cfg.Auth.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	// The guard answers blocked clients before any session or account lookup
	router.Use(middlewareCustom.AdminGuardMiddleware(guardService, middlewareCustom.AdminGuardConfig{
		PathPrefix:         cfg.Guard.PathPrefix,
		IPConfig:           ipConfig,
		RetryAfter:         cfg.Guard.RateLimitWindow,
		DetectFromResponse: detectFromResponse,
		Session:            auth.SessionResolver(sessionManager),
	}, logger))
	router.Use(auth.LoadSession(sessionManager, cookieConfig, logger))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.CSRFProtection(logger))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, routes.Config{
		AdminPrefix: cfg.Guard.PathPrefix,
		LoginRateLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Auth.LoginRateLimitPerMinute,
			IPConfig:          ipConfig,
		},
	})

	// Health check with database and cache
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up", "cache": "up"}
		code := http.StatusOK
		if err := db.HealthCheck(ctx); err != nil {
			status["database"] = "down"
			status["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		if err := store.Ping(ctx); err != nil {
			status["cache"] = "down"
			status["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
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
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newStore builds the configured ephemeral store and returns its release function
func newStore(cfg config.CacheConfig, logger *slog.Logger) (cache.Store, func(), error) {
	if cfg.Backend != "redis" {
		logger.Info("using in-process cache; sessions and lockouts are not shared between instances")
		return cache.NewMemoryStore(), func() {}, nil
	}

	client := cache.NewRedisClient(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := cache.NewRedisStore(client, cfg.KeyPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info("redis cache connected", slog.String("addr", cfg.RedisAddr))
	return store, func() { _ = client.Close() }, nil
}

// ensureSuperuser creates the bootstrap superuser if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureSuperuser(ctx context.Context, accounts *services.AccountService, env string, logger *slog.Logger) {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")

	if username == "" || password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping superuser creation")
		return
	}

	created, err := accounts.EnsureSuperuser(ctx, username, password)
	if err != nil {
		logger.Error("failed to ensure superuser", slog.Any("error", err))
		return
	}
	if created {
		logger.Info("superuser created", pkglogger.RedactedAttr("username", username, env))
		return
	}
	logger.Info("superuser already exists", pkglogger.RedactedAttr("username", username, env))
}
