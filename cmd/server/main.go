package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/cache"
	"studytrail/internal/config"
	"studytrail/internal/database"
	"studytrail/internal/handlers"
	"studytrail/internal/logger"
	"studytrail/internal/repository"
	"studytrail/internal/scheduler"
	"studytrail/internal/security"
	"studytrail/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("STUDYTRAIL_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireServerSecrets(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.Open(cfg.Server.Database)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	zapLogger.Info("database connection established", zap.String("type", cfg.Server.Database.Type))

	applied, err := db.RunMigrations(ctx, database.SchemaServer)
	if err != nil {
		zapLogger.Fatal("failed to run migrations", zap.Error(err))
	}
	zapLogger.Info("migrations completed", zap.Strings("applied", applied))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	wordRepo := repository.NewBlockedWordRepository(db)

	// Seed blocked word filter
	filter := service.NewWordFilter(wordRepo, zapLogger)
	if cfg.Server.BlockedWordsURL != "" {
		if err := filter.Seed(ctx, cfg.Server.BlockedWordsURL); err != nil {
			zapLogger.Warn("failed to seed blocked word filter", zap.Error(err))
		}
	}

	// Optional read cache; the interface stays nil when disabled
	var progressCache service.ProgressCache
	if cfg.Server.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Server.Redis)
		if err != nil {
			zapLogger.Warn("redis unavailable, serving progress without a cache", zap.Error(err))
		} else {
			defer client.Close()
			progressCache = cache.NewProgressCache(client, cfg.Server.Redis.TTL)
		}
	}

	// Initialize services
	tokens := security.NewTokenIssuer(cfg.Server.TokenSecret, cfg.Server.TokenTTL)
	claimService := service.NewClaimService(userRepo, filter, tokens, zapLogger)
	progressService := service.NewProgressService(progressRepo, userRepo, progressCache, zapLogger)

	// Rate limit claims per client, dropping idle entries in the background
	claimLimits := security.NewRateLimiter(cfg.Server.ClaimRateLimit, cfg.Server.ClaimRateWindow)
	jobs := scheduler.New(zapLogger)
	if err := jobs.AddCleanup("claim-rate-limit", cfg.Server.CleanupInterval, claimLimits); err != nil {
		zapLogger.Fatal("failed to schedule cleanup", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	// Setup routes
	mux := http.NewServeMux()
	middleware := handlers.NewMiddleware(claimService, claimLimits, zapLogger)
	handlers.NewAPIHandler(claimService, progressService, zapLogger).Routes(mux, middleware)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.Recover(zapLogger, handlers.Logging(zapLogger, mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zapLogger.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
