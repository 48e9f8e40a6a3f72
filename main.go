package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/medcompare-api/auth"
	"github.com/giygas/medcompare-api/config"
	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/data"
	"github.com/giygas/medcompare-api/handlers"
	"github.com/giygas/medcompare-api/health"
	"github.com/giygas/medcompare-api/logging"
	"github.com/giygas/medcompare-api/recommendation"
	"github.com/giygas/medcompare-api/scheduler"
	"github.com/giygas/medcompare-api/server"
	"github.com/giygas/medcompare-api/trust"
	"github.com/giygas/medcompare-api/upstream"
	"github.com/giygas/medcompare-api/validation"
	"github.com/giygas/medcompare-api/votes"
	"github.com/joho/godotenv"
)

func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}
	// If failed, try loading from executable directory
	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.Chdir(filepath.Dir(ex)); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	return nil
}

func main() {
	// Console-only logger until the configuration is known
	logging.InitLogger("")

	if err := loadEnv(); err != nil {
		logging.Error("Failed to load environment", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            "logs",
		Level:          logging.ParseLevel(cfg.LogLevel),
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"search_api", cfg.SearchAPIURL,
		"vote_api", cfg.VoteAPIURL,
		"auth_enabled", cfg.JWTSecret != "")

	// The store and the vote service always key entities by identity; DEDUPE_KEY
	// only changes how the curator collapses alternatives in comparison views.
	store := data.NewDataContainer(curation.IdentityKey)
	store.SetServerStartTime(time.Now())

	search := upstream.NewSearchClient(upstream.SearchOptions{
		BaseURL:   cfg.SearchAPIURL,
		Timeout:   cfg.UpstreamTimeout,
		CacheSize: cfg.LookupCacheSize,
		CacheTTL:  cfg.LookupCacheTTL,
		Breaker:   upstream.DefaultBreakerSettings(),
	})
	voteClient := upstream.NewVoteClient(upstream.VoteOptions{
		BaseURL: cfg.VoteAPIURL,
		Timeout: cfg.VoteTimeout,
		Breaker: upstream.DefaultBreakerSettings(),
	})

	handler := handlers.NewHTTPHandler(handlers.Deps{
		DataStore:  store,
		Search:     search,
		Votes:      votes.NewService(voteClient, store, curation.IdentityKey, cfg.VoteTimeout),
		Validator:  validation.NewValidator(),
		Health:     health.NewHealthChecker(store, search.Breaker(), voteClient.Breaker()),
		Curator:    curation.NewCurator(cfg.Curation),
		Calculator: trust.NewCalculator(cfg.Trust),
		Classifier: recommendation.NewClassifier(cfg.Thresholds),
	})

	sched := scheduler.NewScheduler(store, cfg.StoreTTL, cfg.EvictionInterval)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start store eviction", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, handler, auth.NewAuthenticator(cfg.JWTSecret))

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed to start", "error", err)
			sched.Stop()
			_ = logging.Close()
			os.Exit(1)
		}
		return
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Graceful shutdown failed", "error", err)
	}
}
