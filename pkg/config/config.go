package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"slotify/pkg/client"
	kafka_config "slotify/pkg/kafka/config"
	"slotify/pkg/logger"

	"github.com/joho/godotenv"
)

var (
	mongoURIRegex        = regexp.MustCompile(`^mongodb(\+srv)?://`)
	mongoCredentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	pgCredentialRegex    = regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
)

type Config struct {
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaEnabled            bool
	KafkaSlotEventsTopic    string
	KafkaSlotEventsDLQTopic string
	Kafka                   *kafka_config.Config

	Port string

	JWTSecret string

	OperatingTimezone  string
	Location           *time.Location
	BookingLeadTime    time.Duration
	CancelLeadTime     time.Duration
	MaxSlotIntervalMin int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	OtelEnabled       bool
	OtelEndpoint      string
	OtelSamplingRatio float64

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the environment, validates the
// result and exits the process when it is unusable.
func Load(serviceName string) *Config {
	envErr := godotenv.Load()

	cfg := &Config{
		StoreDriver: strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN: getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		KafkaEnabled:            getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaSlotEventsTopic:    getEnvStr(EnvKafkaSlotEventsTopic, DefaultKafkaSlotEventsTopic),
		KafkaSlotEventsDLQTopic: getEnvStr(EnvKafkaSlotEventsDLQTopic, DefaultKafkaSlotEventsDLQTopic),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),

		OperatingTimezone:  getEnvStr(EnvOperatingTimezone, DefaultOperatingTimezone),
		BookingLeadTime:    getEnvDuration(EnvBookingLeadTime, DefaultBookingLeadTime),
		CancelLeadTime:     getEnvDuration(EnvCancelLeadTime, DefaultCancelLeadTime),
		MaxSlotIntervalMin: getEnvNum(EnvMaxSlotIntervalMin, DefaultMaxSlotIntervalMin),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		OtelEnabled:       getEnvBool(EnvOtelEnabled, DefaultOtelEnabled),
		OtelEndpoint:      getEnvStr(EnvOtelEndpoint, DefaultOtelEndpoint),
		OtelSamplingRatio: getEnvFloat(EnvOtelSamplingRatio, DefaultOtelSamplingRatio),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envErr)
	}

	if cfg.KafkaEnabled {
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		cfg.Kafka = kafkaCfg
	}

	if loc, err := time.LoadLocation(cfg.OperatingTimezone); err == nil {
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
}

// SetRedis connects only when REDIS_ADDR is set; without it the HTTP layer
// keeps its in-process stores.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// SetStore connects the backend selected by STORE_DRIVER.
func (cfg *Config) SetStore() {
	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.SetMongo()
	case StorePostgres:
		cfg.SetPostgres()
	case StoreMemory:
		cfg.Log.Warn("Using in-memory slot store, data is lost on restart")
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			errors = append(errors, "PostgresDSN cannot be empty")
		}
	case StoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [mongo, postgres, memory], got: %s", cfg.StoreDriver))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	if cfg.KafkaEnabled && cfg.KafkaSlotEventsTopic == "" {
		errors = append(errors, "KafkaSlotEventsTopic cannot be empty when Kafka is enabled")
	}

	if len(cfg.JWTSecret) < 32 {
		errors = append(errors, "JWTSecret must be at least 32 characters")
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("OperatingTimezone must be a valid IANA zone, got: %s", cfg.OperatingTimezone))
	}
	if cfg.BookingLeadTime <= 0 {
		errors = append(errors, fmt.Sprintf("BookingLeadTime must be positive, got: %s", cfg.BookingLeadTime))
	}
	if cfg.CancelLeadTime <= 0 {
		errors = append(errors, fmt.Sprintf("CancelLeadTime must be positive, got: %s", cfg.CancelLeadTime))
	}
	if cfg.MaxSlotIntervalMin <= 0 || cfg.MaxSlotIntervalMin > 24*60 {
		errors = append(errors, fmt.Sprintf("MaxSlotIntervalMin must be between 1 and 1440, got: %d", cfg.MaxSlotIntervalMin))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.OtelEnabled && cfg.OtelEndpoint == "" {
		errors = append(errors, "OtelEndpoint cannot be empty when tracing is enabled")
	}
	if cfg.OtelSamplingRatio < 0 || cfg.OtelSamplingRatio > 1 {
		errors = append(errors, fmt.Sprintf("OtelSamplingRatio must be between 0 and 1, got: %g", cfg.OtelSamplingRatio))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn", redactPostgresDSN(cfg.PostgresDSN),
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_slot_events_topic", cfg.KafkaSlotEventsTopic,
		"kafka_slot_events_dlq_topic", cfg.KafkaSlotEventsDLQTopic,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"operating_timezone", cfg.OperatingTimezone,
		"booking_lead_time", cfg.BookingLeadTime,
		"cancel_lead_time", cfg.CancelLeadTime,
		"max_slot_interval_min", cfg.MaxSlotIntervalMin,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"otel_enabled", cfg.OtelEnabled,
		"otel_endpoint", cfg.OtelEndpoint,
		"otel_sampling_ratio", cfg.OtelSamplingRatio,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

func redactMongoURI(uri string) string {
	return mongoCredentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactPostgresDSN(dsn string) string {
	return pgCredentialRegex.ReplaceAllString(dsn, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
