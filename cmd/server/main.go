package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/config"
	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/handler"
	"github.com/liwanag/screening-server/internal/jobs"
	"github.com/liwanag/screening-server/internal/middleware"
	"github.com/liwanag/screening-server/internal/redis"
	"github.com/liwanag/screening-server/internal/repository"
	"github.com/liwanag/screening-server/internal/service"
)

func main() {
	godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	loginSessionRepo := repository.NewLoginSessionRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	measurementRepo := repository.NewMeasurementRepository(db.DB)
	apiKeyRepo := repository.NewAPIKeyRepository(db.DB)

	accountService := service.NewAccountService(
		userRepo, loginSessionRepo, cfg.SessionSecret, cfg.SessionTTL(), cfg.RememberTTL(),
	)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo)
	screeningService := service.NewScreeningService(db, sessionRepo, measurementRepo)
	measurementService := service.NewMeasurementService(sessionRepo, measurementRepo)
	ingestService := service.NewIngestService(db, userRepo, sessionRepo, measurementRepo)
	chartService := service.NewChartService(sessionRepo, measurementRepo)
	exportService := service.NewExportService(sessionRepo, measurementRepo)

	if err := apiKeyService.Bootstrap(context.Background(), cfg.DeviceAPIKey); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap device api key")
	}

	sessionMiddleware := middleware.NewSessionMiddleware(accountService)
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(apiKeyService)
	deviceRateLimitMiddleware := middleware.NewDeviceRateLimitMiddleware(
		redisClient.Client, cfg.DeviceRateLimitPerMin,
	)
	loginLimiter := middleware.NewLoginRateLimiter()
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	authHandler := handler.NewAuthHandler(
		accountService, sessionMiddleware, loginLimiter,
		cfg.SessionTTL(), cfg.RememberTTL(), isProduction,
	)
	deviceHandler := handler.NewDeviceHandler(ingestService)
	sessionHandler := handler.NewSessionHandler(screeningService, measurementService, exportService)
	dashboardHandler := handler.NewDashboardHandler(chartService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Device ingestion, authenticated by API key.
		r.Group(func(r chi.Router) {
			r.Use(deviceAuthMiddleware.Handler)
			r.Use(deviceRateLimitMiddleware.Handler)
			deviceHandler.Register(r)
		})

		// Dashboard, authenticated by login session cookie.
		r.Group(func(r chi.Router) {
			r.Use(securityHeadersMiddleware.Handler)
			r.Use(csrfMiddleware.Handler)
			r.Use(sessionMiddleware.Handler)
			dashboardHandler.Register(r)
			r.Mount("/sessions", sessionHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(securityHeadersMiddleware.Handler)
			r.Use(csrfMiddleware.Handler)
			r.Mount("/auth", authHandler.Routes())
		})
	})

	cleanupJob := jobs.NewCleanupJob(
		loginSessionRepo, sessionRepo, config.CleanupJobInterval, config.StaleSessionAfter,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
