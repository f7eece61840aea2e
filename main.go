package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"practicekit/core"
	"practicekit/factories"
	"practicekit/metrics"
)

func main() {
	logger := core.NewLoggerFromEnv()
	core.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	if err := godotenv.Load(".env.local"); err != nil {
		logger.Warn("No .env.local file found or failed to load", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutting down...")
}

func run(ctx context.Context, logger *core.Logger) error {
	logger = logger.With(map[string]interface{}{"component": "worker"})

	settings, _, err := factories.LoadSettings(os.Getenv)
	if err != nil {
		return err
	}

	collectors, err := metrics.NewCollectors(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	provider, err := settings.Transport.BuildLiveKitProvider(settings.LogDir, prometheus.DefaultGatherer, logger)
	if err != nil {
		return err
	}

	timeoutSeconds := getEnvAsInt("WORKER_TIMEOUT_SECONDS", 3000)
	pipeline := factories.NewPipeline(settings, factories.PipelineConfig{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, collectors, logger)

	return pipeline.Serve(ctx, provider)
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
