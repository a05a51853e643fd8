// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Classifier rules file; empty means the built-in table.
	RulesPath string

	// Cache sweep cron schedule.
	SweepSchedule string

	// Query execution timeouts.
	DirectTimeout       time.Duration
	QueryTimeout        time.Duration
	CollaboratorTimeout time.Duration

	// Kafka observation ingest. Disabled when no brokers are configured.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaGroupID     string
	IngestBatchSize  int

	// Postgres fire history store. Disabled when no DSN is configured.
	PostgresDSN string

	// Anthropic delegate. Disabled when no API key is configured.
	AnthropicAPIKey string
	AnthropicModel  string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	directTimeout, err := parseDuration("DIRECT_TIMEOUT", "1s")
	if err != nil {
		return nil, err
	}
	queryTimeout, err := parseDuration("QUERY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	collaboratorTimeout, err := parseDuration("COLLABORATOR_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	batchSize, err := parsePositiveInt("INGEST_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RulesPath:     os.Getenv("CLASSIFIER_RULES_PATH"),
		SweepSchedule: envOrDefault("CACHE_SWEEP_SCHEDULE", "@every 5m"),

		DirectTimeout:       directTimeout,
		QueryTimeout:        queryTimeout,
		CollaboratorTimeout: collaboratorTimeout,

		KafkaEnabled:     len(brokers) > 0,
		KafkaBrokers:     brokers,
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "station-observations"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "fire-danger-service"),
		IngestBatchSize:  batchSize,

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
	}

	if cfg.KafkaEnabled && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.DirectTimeout > cfg.QueryTimeout {
		return nil, errors.New("DIRECT_TIMEOUT must not exceed QUERY_TIMEOUT")
	}
	if cfg.CollaboratorTimeout > cfg.QueryTimeout {
		return nil, errors.New("COLLABORATOR_TIMEOUT must not exceed QUERY_TIMEOUT")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
