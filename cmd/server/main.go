package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberwatch/fire-danger-service/internal/adapter/claude"
	"github.com/emberwatch/fire-danger-service/internal/adapter/httpapi"
	kafkaadapter "github.com/emberwatch/fire-danger-service/internal/adapter/kafka"
	"github.com/emberwatch/fire-danger-service/internal/adapter/postgres"
	"github.com/emberwatch/fire-danger-service/internal/cache"
	"github.com/emberwatch/fire-danger-service/internal/classify"
	"github.com/emberwatch/fire-danger-service/internal/config"
	"github.com/emberwatch/fire-danger-service/internal/coordinator"
	"github.com/emberwatch/fire-danger-service/internal/ingest"
	"github.com/emberwatch/fire-danger-service/internal/nfdrs"
	"github.com/emberwatch/fire-danger-service/internal/observability"
	"github.com/emberwatch/fire-danger-service/internal/plan"
	"github.com/emberwatch/fire-danger-service/internal/store"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// alwaysReady reports readiness when no ingest loop gates it.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	classifier, err := buildClassifier(cfg, logger)
	if err != nil {
		logger.Error("failed to load classifier rules", "error", err)
		os.Exit(1)
	}

	engine := nfdrs.New()
	decomposer := plan.New()
	resultCache := cache.New(nil)
	latest := store.NewLatestStore(nil)
	forecaster := store.NewPersistenceForecaster(latest)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Incident history store (feature-flagged via POSTGRES_DSN).
	var history *postgres.HistoryStore
	if cfg.PostgresDSN != "" {
		history, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("failed to connect to history database", "error", err)
			os.Exit(1)
		}
		defer history.Close()
		logger.Info("incident history store enabled")
	} else {
		logger.Info("incident history store disabled")
	}

	// Claude delegate (feature-flagged via ANTHROPIC_API_KEY).
	var delegate coordinator.Delegate
	if cfg.AnthropicAPIKey != "" {
		var querier claude.HistoryQuerier
		if history != nil {
			querier = history
		}
		d, err := claude.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, querier, logger)
		if err != nil {
			logger.Error("failed to create delegate", "error", err)
			os.Exit(1)
		}
		delegate = d
		logger.Info("query delegate enabled", "model", cfg.AnthropicModel)
	} else {
		logger.Info("query delegate disabled")
	}

	opts := coordinator.DefaultOptions()
	opts.DirectTimeout = cfg.DirectTimeout
	opts.QueryTimeout = cfg.QueryTimeout
	opts.CollaboratorTimeout = cfg.CollaboratorTimeout

	co := coordinator.New(engine, classifier, decomposer, resultCache,
		latest, forecaster, delegate, logger, metrics, opts)

	// Periodic cache sweep keeps the entry gauge honest between lookups.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() {
		if removed := resultCache.Sweep(); removed > 0 {
			metrics.CacheInvalidations.WithLabelValues("sweep").Add(float64(removed))
			logger.Debug("cache sweep removed expired entries", "removed", removed)
		}
		metrics.CacheEntries.Set(float64(resultCache.Len()))
	}); err != nil {
		logger.Error("invalid cache sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Observation ingest (feature-flagged via KAFKA_BROKERS).
	var ready httpapi.ReadinessChecker = alwaysReady{}
	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		loop := ingest.New(reader, latest, resultCache, logger, metrics, cfg.IngestBatchSize)
		ready = loop
		go func() {
			if err := loop.Run(ctx); err != nil {
				logger.Error("ingest loop error", "error", err)
			}
		}()
		logger.Info("observation ingest enabled",
			"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSourceTopic)
	} else {
		logger.Info("observation ingest disabled")
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, co, engine, resultCache, ready, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func buildClassifier(cfg *config.Config, logger *slog.Logger) (*classify.Classifier, error) {
	if cfg.RulesPath == "" {
		return classify.New(logger), nil
	}
	specs, err := classify.LoadRulesFile(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	return classify.NewFromSpecs(specs, logger)
}
