// Command forecast-api serves station risk forecasts over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/cache"
	"github.com/couchcryptid/station-risk-forecast/internal/adapter/feedsource"
	httpadapter "github.com/couchcryptid/station-risk-forecast/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/station-risk-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/station-risk-forecast/internal/config"
	"github.com/couchcryptid/station-risk-forecast/internal/observability"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, closeFeed, err := feedsource.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open feeds", "driver", cfg.FeedDriver, "error", err)
		os.Exit(1)
	}
	defer closeFeed()

	var opts []pipeline.Option
	if cfg.CacheSize > 0 {
		opts = append(opts, pipeline.WithCache(cache.New(cfg.CacheSize, cfg.CacheTTL)))
		logger.Info("result cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	} else {
		logger.Info("result cache disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithLoader(writer))
		logger.Info("forecast publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(feed, logger, metrics, opts...)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:            cfg.HTTPAddr,
		CORSOrigins:     cfg.CORSOrigins,
		ForecastTimeout: cfg.ForecastTimeout,
		MaxConcurrent:   cfg.ForecastMaxConcurrent,
	}, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load feeds ahead of the first request; /readyz reports 503 until then.
	go func() {
		if err := p.Warm(ctx); err != nil {
			logger.Warn("initial feed load failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
