package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KevinKickass/OpenLadderCore/internal/config"
	"github.com/KevinKickass/OpenLadderCore/internal/storage"
	"github.com/KevinKickass/OpenLadderCore/internal/system"
)

func main() {
	configPath := "configs/config.yaml"
	if v := os.Getenv("OLC_CONFIG"); v != "" {
		configPath = v
	}

	// Config laden
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logger initialisieren
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully", zap.String("path", configPath))

	// Blob Store oeffnen
	store, err := storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	// Lifecycle Manager
	lifecycle, err := system.NewLifecycleManager(store, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build runtime", zap.Error(err))
	}

	// System starten
	if err := lifecycle.Start(); err != nil {
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("OpenLadderCore started successfully")

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := lifecycle.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("OpenLadderCore stopped successfully")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
