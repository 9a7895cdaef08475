package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnv             = "development"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultRedisAddr       = "localhost:6379"
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 30

	defaultFeedURL       = "wss://stream.data.alpaca.markets/v2/iex"
	defaultQueueCapacity = 5000
	defaultWorkers       = 4

	defaultDetectionWindow = 5 * time.Minute
	defaultSizeThreshold   = 1000

	defaultFactorLookback = 84
	defaultSMTPPort       = 587
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env       string
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Feed      FeedConfig
	Pipeline  PipelineConfig
	Detection DetectionConfig
	Factors   FactorsConfig
	SMTP      SMTPConfig
	AMQP      AMQPConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// FeedConfig stores upstream market data feed credentials and
// subscriptions.
type FeedConfig struct {
	URL          string
	Key          string
	Secret       string
	TradeSymbols []string
	QuoteSymbols []string
	BarSymbols   []string
}

// PipelineConfig sizes the in-process frame queue and worker pool.
type PipelineConfig struct {
	QueueCapacity int
	Workers       int
}

// DetectionConfig tunes the trade impact detector.
type DetectionConfig struct {
	Window        time.Duration
	SizeThreshold float64
}

// FactorsConfig tunes factor signal computation.
type FactorsConfig struct {
	Lookback int
	Basket   []string
}

// SMTPConfig stores outbound email settings. Host empty disables email
// notifications.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// AMQPConfig stores the optional alert fanout broker. URL empty
// disables publishing.
type AMQPConfig struct {
	URL            string
	AlertsExchange string
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	queueCapacity, err := getInt("FEED_QUEUE_CAPACITY", defaultQueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("parse FEED_QUEUE_CAPACITY: %w", err)
	}

	workers, err := getInt("FEED_WORKERS", defaultWorkers)
	if err != nil {
		return nil, fmt.Errorf("parse FEED_WORKERS: %w", err)
	}

	window, err := getDuration("DETECTION_WINDOW", defaultDetectionWindow)
	if err != nil {
		return nil, fmt.Errorf("parse DETECTION_WINDOW: %w", err)
	}

	sizeThreshold, err := getFloat("DETECTION_SIZE_THRESHOLD", defaultSizeThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse DETECTION_SIZE_THRESHOLD: %w", err)
	}

	lookback, err := getInt("FACTOR_LOOKBACK", defaultFactorLookback)
	if err != nil {
		return nil, fmt.Errorf("parse FACTOR_LOOKBACK: %w", err)
	}

	smtpPort, err := getInt("SMTP_PORT", defaultSMTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse SMTP_PORT: %w", err)
	}

	return &Config{
		Env:  getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		Feed: FeedConfig{
			URL:          getString("FEED_URL", defaultFeedURL),
			Key:          os.Getenv("FEED_KEY"),
			Secret:       os.Getenv("FEED_SECRET"),
			TradeSymbols: getList("FEED_TRADE_SYMBOLS"),
			QuoteSymbols: getList("FEED_QUOTE_SYMBOLS"),
			BarSymbols:   getList("FEED_BAR_SYMBOLS"),
		},
		Pipeline: PipelineConfig{
			QueueCapacity: queueCapacity,
			Workers:       workers,
		},
		Detection: DetectionConfig{
			Window:        window,
			SizeThreshold: sizeThreshold,
		},
		Factors: FactorsConfig{
			Lookback: lookback,
			Basket:   getList("FACTOR_BASKET"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		AMQP: AMQPConfig{
			URL:            os.Getenv("AMQP_URL"),
			AlertsExchange: getString("AMQP_ALERTS_EXCHANGE", "moby.alerts"),
		},
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to float: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

// getList splits a comma separated variable, trimming whitespace and
// dropping empty entries.
func getList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
