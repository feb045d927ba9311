package config

const (
	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN = "POSTGRES_DSN"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled            = "KAFKA_ENABLED"
	EnvKafkaSlotEventsTopic    = "KAFKA_SLOT_EVENTS_TOPIC"
	EnvKafkaSlotEventsDLQTopic = "KAFKA_SLOT_EVENTS_DLQ_TOPIC"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret = "JWT_SECRET"

	EnvOperatingTimezone  = "OPERATING_TIMEZONE"
	EnvBookingLeadTime    = "BOOKING_LEAD_TIME"
	EnvCancelLeadTime     = "CANCEL_LEAD_TIME"
	EnvMaxSlotIntervalMin = "MAX_SLOT_INTERVAL_MIN"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvOtelEnabled       = "OTEL_ENABLED"
	EnvOtelEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtelSamplingRatio = "OTEL_SAMPLING_RATIO"
)
