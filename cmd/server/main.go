// Package main starts the procedure classification API server.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/api"
	"github.com/neuroonc-procedure-classifier/internal/cache"
	"github.com/neuroonc-procedure-classifier/internal/classifier"
	"github.com/neuroonc-procedure-classifier/internal/config"
	"github.com/neuroonc-procedure-classifier/internal/database"
	"github.com/neuroonc-procedure-classifier/internal/reference"
	"github.com/neuroonc-procedure-classifier/internal/repository"
	"github.com/neuroonc-procedure-classifier/internal/review"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Load the reference artifact; a malformed artifact is fatal at startup.
	refs, err := reference.NewStore(cfg.Reference.RulesPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load reference tables")
	}

	engine := classifier.New(refs, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := api.Options{}

	// Optional warehouse sink for result re-materialization.
	if cfg.Database.Enabled {
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		runner, err := database.NewMigrationRunner(&cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		if err := runner.Up(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		runner.Close()

		opts.Results = repository.NewResultRepository(db.Pool, logger)
	}

	// Review store: sqlite file by default, shared postgres when configured.
	switch cfg.Review.Backend {
	case "postgres":
		pgDB, err := sql.Open("postgres", database.URL(&cfg.Database))
		if err != nil {
			logger.WithError(err).Fatal("Failed to open review database")
		}
		store, err := review.NewPostgresStore(pgDB)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create postgres review store")
		}
		defer store.Close()
		opts.Reviews = store
	default:
		store, err := review.NewSQLiteStore(cfg.Review.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create sqlite review store")
		}
		defer store.Close()
		opts.Reviews = store
	}

	// Optional result cache with a shared Redis tier.
	if cfg.Cache.Enabled {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid Redis URL")
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		resultCache, err := cache.New(&cfg.Cache, redisClient, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create result cache")
		}
		opts.Cache = resultCache
	}

	server := api.NewServer(configManager, engine, refs, opts, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		logger.SetLevel(parsed)
	}

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
