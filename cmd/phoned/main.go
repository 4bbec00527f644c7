package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"phoned/internal/api"
	"phoned/internal/clock"
	"phoned/internal/config"
	"phoned/internal/host"
	"phoned/pkg/event"
	"phoned/pkg/plugin"

	// Plugins register themselves with the global registry
	_ "phoned/internal/plugins/console"
	_ "phoned/internal/plugins/modemtemplate"
	_ "phoned/internal/plugins/n900"
	_ "phoned/internal/plugins/phonetemplate"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envConfigDir = "PHONED_CONFIG"
	envLogLevel  = "LOG_LEVEL"
)

func main() {
	// Load environment variables before building the logger so LOG_LEVEL
	// can come from .env
	envErr := godotenv.Load()

	logger, err := newLogger(os.Getenv(envLogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	configDir := os.Getenv(envConfigDir)
	if configDir == "" {
		configDir = "."
	}

	loader := config.NewLoader(configDir, logger)
	if err := loader.Load(os.Getenv); err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	cfg := loader.GetConfig()

	logger.Info("Starting phoned",
		zap.String("config_dir", configDir),
		zap.Strings("registered", plugin.Names()))

	h := host.New(plugin.Global(), host.Config{
		Options:   cfg.Plugins,
		ConfigDir: configDir,
	}, logger, clock.NewRealClock(), afero.NewOsFs())

	if err := h.Load(cfg.Enabled...); err != nil {
		logger.Fatal("Failed to load plugins", zap.Error(err))
	}
	defer h.Unload()

	ctx := context.Background()
	dispatch(ctx, h, logger, event.Starting)

	var server *api.Server
	if cfg.APIPort > 0 {
		server = api.NewServer(h, logger, cfg.APIPort)
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start API server", zap.Error(err))
		}
	}

	dispatch(ctx, h, logger, event.Started)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("phoned running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop API server", zap.Error(err))
		}
	}

	dispatch(ctx, h, logger, event.Stopping)
	dispatch(ctx, h, logger, event.Stopped)
}

func dispatch(ctx context.Context, h *host.Host, logger *zap.Logger, t event.Type) {
	if err := h.Dispatch(ctx, event.New(t)); err != nil {
		logger.Error("Event delivery failed", zap.Stringer("event", t), zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envLogLevel, level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
