package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/api"
	"github.com/pgx-risk-server/internal/config"
	"github.com/pgx-risk-server/internal/database"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/explain"
	"github.com/pgx-risk-server/internal/localstore"
	"github.com/pgx-risk-server/internal/registry"
	"github.com/pgx-risk-server/internal/repository"
	"github.com/pgx-risk-server/internal/service"
	"github.com/pgx-risk-server/pkg/caller"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize result store")
	}
	defer store.Close()

	genotypeCaller := newCaller(cfg, logger)

	pipeline := service.NewPipeline(logger, genotypeCaller, store, registry.NewInMemoryRegistry())
	explainer := explain.NewTemplateExplainer(logger)

	server := api.NewServer(configManager, logger, pipeline, store, explainer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"store_mode": cfg.Store.Mode,
	}).Info("Starting pharmacogenomic risk server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newStore selects the persistence backend. Postgres mode also applies
// pending migrations before serving.
func newStore(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.ResultStore, error) {
	if cfg.Store.Mode == "local" {
		return localstore.NewSQLiteStore(cfg.Store.LocalPath)
	}

	if err := database.Migrate(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return repository.NewPostgresStore(db.Pool, logger), nil
}

// newCaller wires the external genotype caller, or a stub when no caller
// endpoint is configured. The stub reports every gene as Unknown, which the
// pipeline degrades gracefully.
func newCaller(cfg *domain.Config, logger *logrus.Logger) domain.GenotypeCaller {
	if cfg.Caller.BaseURL == "" {
		logger.Warn("No genotype caller configured, gene calls will be Unknown")
		return caller.NewStubCaller()
	}

	var cache *caller.Cache
	if cfg.Cache.Enabled {
		var err error
		cache, err = caller.NewCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis cache unavailable, continuing without it")
			cache = nil
		}
	}

	httpCaller, err := caller.NewHTTPCaller(cfg.Caller, cfg.Cache.LocalSize, cache, logger)
	if err != nil {
		logger.WithError(err).Warn("Genotype caller setup failed, gene calls will be Unknown")
		return caller.NewStubCaller()
	}

	return httpCaller
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
