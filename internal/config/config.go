package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the alert rule engine.
type Config struct {
	// HTTPAddr is the ops/ingest listen address
	HTTPAddr string

	// LogLevel for the global zerolog logger
	LogLevel string

	// RulesPath is the declarative rule file (YAML), loaded once at startup.
	// Changing rules requires a full restart.
	RulesPath string

	// Shards is the number of evaluation shards; events are partitioned by
	// device ID so burst state needs no cross-shard coordination
	Shards int

	// ShardQueueSize is the per-shard event buffer
	ShardQueueSize int

	// AlertQueueSize bounds the in-memory alert delivery queue that decouples
	// evaluation from the sink
	AlertQueueSize int

	Kafka KafkaConfig
	Redis RedisConfig
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	AlertsTopic   string
	ConsumerGroup string
	Producer      ProducerConfig
}

// ProducerConfig holds Kafka producer tuning.
type ProducerConfig struct {
	PoolSize     int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	Compression  string
	MaxRetries   int
	RetryBackoff time.Duration
}

// RedisConfig holds the optional latest-alert cache settings. An empty Addr
// disables the cache entirely.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		RulesPath:      "configs/rules.yaml",
		Shards:         4,
		ShardQueueSize: 256,
		AlertQueueSize: 1000,
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			EventsTopic:   "telemetry.scored",
			AlertsTopic:   "telemetry.alerts",
			ConsumerGroup: "itap-alert-engine",
			Producer: ProducerConfig{
				PoolSize:     4,
				BatchSize:    100,
				BatchTimeout: 100 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
				Compression:  "snappy",
				MaxRetries:   3,
				RetryBackoff: 250 * time.Millisecond,
			},
		},
		Redis: RedisConfig{
			Addr: "",
			TTL:  30 * time.Minute,
		},
	}
}

// FromEnv returns the default config with environment overrides applied.
func FromEnv() *Config {
	cfg := Default()

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.RulesPath = getEnv("RULES_PATH", cfg.RulesPath)
	cfg.Shards = getEnvInt("EVAL_SHARDS", cfg.Shards)
	cfg.ShardQueueSize = getEnvInt("SHARD_QUEUE_SIZE", cfg.ShardQueueSize)
	cfg.AlertQueueSize = getEnvInt("ALERT_QUEUE_SIZE", cfg.AlertQueueSize)

	if brokers := splitCSV(getEnv("KAFKA_BROKERS", "")); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.AlertsTopic = getEnv("KAFKA_ALERTS_TOPIC", cfg.Kafka.AlertsTopic)
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Kafka.Producer.PoolSize = getEnvInt("PRODUCER_POOL_SIZE", cfg.Kafka.Producer.PoolSize)
	cfg.Kafka.Producer.MaxRetries = getEnvInt("PRODUCER_MAX_RETRIES", cfg.Kafka.Producer.MaxRetries)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	if mins := getEnvInt("CACHE_TTL_MINUTES", 0); mins > 0 {
		cfg.Redis.TTL = time.Duration(mins) * time.Minute
	}

	return cfg
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
