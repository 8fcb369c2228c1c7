package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/background"
	"github.com/tbarroso/cerbero/internal/challenge"
	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/database"
	"github.com/tbarroso/cerbero/internal/handlers"
	middlewareCustom "github.com/tbarroso/cerbero/internal/middleware"
	"github.com/tbarroso/cerbero/internal/repositories"
	"github.com/tbarroso/cerbero/internal/routes"
	"github.com/tbarroso/cerbero/internal/services"
	pkgauth "github.com/tbarroso/cerbero/pkg/auth"
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

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("lockout_enabled", cfg.Security.LockoutEnabled),
		slog.Bool("two_factor_enabled", cfg.Security.TwoFactorEnabled),
		slog.Bool("captcha_enabled", cfg.Security.CaptchaEnabled))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Redis holds challenge session state
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	pingCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.PendingTokenExpiry,
	)

	// Audit dispatcher, closed last so shutdown flushes its buffer
	auditService := services.NewAuditService(eventRepo, logger)
	defer auditService.Close()

	// Second-factor delivery channel
	localMailer := services.NewLocalEmailService(logger)
	var mailer services.EmailSender = localMailer
	if cfg.Email.Provider == "ses" {
		sesMailer, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	}

	// Initialize services
	attemptService := services.NewLoginAttemptService(attemptRepo, cfg.Auth.AttemptRetention, logger)
	lockoutService := services.NewLockoutService(userRepo, cfg.Security, auditService, logger)
	twoFactorService := services.NewTwoFactorService(userRepo, mailer, localMailer, tokenManager, cfg.Security, auditService, logger)

	challengeStore := challenge.NewRedisStore(redisClient, cfg.Security.CaptchaTTL)
	captchaService := services.NewCaptchaService(userRepo, challengeStore, challenge.NewCodeGenerator(), auditService, logger)

	authService := services.NewAuthService(
		userRepo,
		pkgauth.BcryptVerifier{},
		lockoutService,
		twoFactorService,
		captchaService,
		attemptService,
		tokenManager,
		auditService,
		cfg.Security,
		logger,
	)
	userService := services.NewUserService(userRepo, auditService, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	captchaHandler := handlers.NewCaptchaHandler(captchaService, logger)
	userHandler := handlers.NewUserHandler(userService, attemptService, userRepo, logger)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(attemptService, logger, cfg.Auth.CleanupInterval)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	router.Route("/api", func(r chi.Router) {
		routes.RegisterRoutes(r, authHandler, captchaHandler, userHandler, tokenManager)
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
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
