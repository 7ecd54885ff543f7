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
	"github.com/vin-sipoi/jengahacks-api/internal/background"
	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/handlers"
	middlewareCustom "github.com/vin-sipoi/jengahacks-api/internal/middleware"
	"github.com/vin-sipoi/jengahacks-api/internal/repositories"
	"github.com/vin-sipoi/jengahacks-api/internal/routes"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	registrationRepo := repositories.NewRegistrationRepository(db)
	blockRepo := repositories.NewBlockRepository(db)
	violationRepo := repositories.NewViolationRepository(db)
	alertRepo := repositories.NewAlertRepository(db)
	patternRepo := repositories.NewPatternRepository(db)

	// Rate-limit counters live in Redis when configured, Postgres otherwise
	var counterStore services.CounterStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		pingCancel()

		window := cfg.RateLimit.EmailWindow
		if cfg.RateLimit.IPWindow > window {
			window = cfg.RateLimit.IPWindow
		}
		counterStore = repositories.NewRedisCounterStore(rdb, 2*window)
		logger.Info("rate-limit counters backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		counterStore = repositories.NewRateLimitRepository(db)
		logger.Info("rate-limit counters backed by postgres")
	}

	// Initialize services
	rateLimitService := services.NewRateLimitService(counterStore, cfg.RateLimit, logger)
	blockService := services.NewBlockService(blockRepo, cfg.Abuse, logger)
	violationService := services.NewViolationService(violationRepo, alertRepo, cfg.Abuse.AlertThreshold, logger)
	patternService := services.NewPatternService(violationRepo, patternRepo, logger)
	escalationService := services.NewEscalationService(violationRepo, blockService, cfg.Abuse.EscalationBlockTTL, logger)
	captchaService := services.NewCaptchaService(cfg.Captcha, logger)
	registrationService := services.NewRegistrationService(
		registrationRepo,
		blockService,
		rateLimitService,
		violationService,
		cfg.Event.Capacity,
		cfg.Abuse.RateFailMode,
		logger,
	)
	adminService := services.NewAdminService(registrationRepo, rateLimitService, blockService, violationService, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	registrationHandler := handlers.NewRegistrationHandler(
		registrationService, captchaService, cfg.Captcha.Required, ipConfig, logger)
	captchaHandler := handlers.NewCaptchaHandler(captchaService, ipConfig, logger)
	adminHandler := handlers.NewAdminHandler(
		adminService, blockService, violationService, patternService, escalationService,
		handlers.AdminConfig{
			EscalationThreshold: cfg.Abuse.EscalationThreshold,
			EscalationLookback:  cfg.Abuse.EscalationLookback,
		},
		logger,
	)

	// Background maintenance
	maintenanceManager := background.NewMaintenanceManager(
		rateLimitService, violationService, blockRepo, escalationService, cfg.Abuse, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, registrationHandler, captchaHandler, adminHandler)
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
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start maintenance loop
	maintenanceCtx, maintenanceCancel := context.WithCancel(context.Background())
	defer maintenanceCancel()

	go maintenanceManager.Start(maintenanceCtx)

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

	maintenanceCancel()
	maintenanceManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
