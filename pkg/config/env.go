package config

import "time"

// Environment variable names.
const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvReadTimeout       = "READ_TIMEOUT"
	EnvWriteTimeout      = "WRITE_TIMEOUT"
	EnvShutdownTimeout   = "SHUTDOWN_TIMEOUT"

	EnvKafkaBrokers     = "KAFKA_BROKERS"
	EnvKafkaEventsTopic = "KAFKA_EVENTS_TOPIC"
	EnvEventsEnabled    = "EVENTS_ENABLED"

	EnvLogLevel = "LOG_LEVEL"

	EnvTimezone = "DISPLAY_TIMEZONE"

	EnvDefaultSlotMinutes       = "DEFAULT_SLOT_MINUTES"
	EnvDefaultCancelBeforeHours = "DEFAULT_CANCEL_BEFORE_HOURS"
	EnvDefaultChangeBeforeHours = "DEFAULT_CHANGE_BEFORE_HOURS"
	EnvDefaultNoShowAfterMin    = "DEFAULT_NO_SHOW_AFTER_MIN"

	EnvReminderBeforeHours    = "REMINDER_BEFORE_HOURS"
	EnvReminderInterval       = "REMINDER_INTERVAL"
	EnvAutoCompleteAfterMin   = "AUTO_COMPLETE_AFTER_MIN"
	EnvAutoCompleteInterval   = "AUTO_COMPLETE_INTERVAL"
	EnvOrderExpireInterval    = "ORDER_EXPIRE_INTERVAL"
	EnvStaleRequestAfterHours = "STALE_REQUEST_AFTER_HOURS"
	EnvStaleCleanupAt         = "STALE_CLEANUP_AT"
	EnvJobLockTTL             = "JOB_LOCK_TTL"
)

// Defaults.
const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "studiobook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second

	DefaultKafkaBrokers     = "localhost:9092"
	DefaultKafkaEventsTopic = "studiobook.events"
	DefaultEventsEnabled    = false

	DefaultLogLevel = "info"

	DefaultTimezone = "Asia/Seoul"

	DefaultDefaultSlotMinutes       = 60
	DefaultDefaultCancelBeforeHours = 24
	DefaultDefaultChangeBeforeHours = 24
	DefaultDefaultNoShowAfterMin    = 15

	DefaultReminderBeforeHours    = 24
	DefaultReminderInterval       = 5 * time.Minute
	DefaultAutoCompleteAfterMin   = 15
	DefaultAutoCompleteInterval   = 15 * time.Minute
	DefaultOrderExpireInterval    = 10 * time.Minute
	DefaultStaleRequestAfterHours = 48
	DefaultStaleCleanupAt         = "03:30"
	DefaultJobLockTTL             = 50 * time.Minute
)
