package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"studiobook/pkg/logger"
	"studiobook/pkg/timeutil"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration

	KafkaBrokers     []string
	KafkaEventsTopic string
	EventsEnabled    bool

	Timezone string

	DefaultSlotMinutes       int
	DefaultCancelBeforeHours int
	DefaultChangeBeforeHours int
	DefaultNoShowAfterMin    int

	ReminderBeforeHours    int
	ReminderInterval       time.Duration
	AutoCompleteAfterMin   int
	AutoCompleteInterval   time.Duration
	OrderExpireInterval    time.Duration
	StaleRequestAfterHours int
	StaleCleanupAt         string
	JobLockTTL             time.Duration

	Log  *logger.Logger
	Zone *timeutil.Zone
}

func Load(serviceName string) *Config {
	brokers := strings.Split(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers), ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		ReadTimeout:       getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:      getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		ShutdownTimeout:   getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		KafkaBrokers:     brokers,
		KafkaEventsTopic: getEnvStr(EnvKafkaEventsTopic, DefaultKafkaEventsTopic),
		EventsEnabled:    getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),

		Timezone: getEnvStr(EnvTimezone, DefaultTimezone),

		DefaultSlotMinutes:       getEnvNum(EnvDefaultSlotMinutes, DefaultDefaultSlotMinutes),
		DefaultCancelBeforeHours: getEnvNum(EnvDefaultCancelBeforeHours, DefaultDefaultCancelBeforeHours),
		DefaultChangeBeforeHours: getEnvNum(EnvDefaultChangeBeforeHours, DefaultDefaultChangeBeforeHours),
		DefaultNoShowAfterMin:    getEnvNum(EnvDefaultNoShowAfterMin, DefaultDefaultNoShowAfterMin),

		ReminderBeforeHours:    getEnvNum(EnvReminderBeforeHours, DefaultReminderBeforeHours),
		ReminderInterval:       getEnvDuration(EnvReminderInterval, DefaultReminderInterval),
		AutoCompleteAfterMin:   getEnvNum(EnvAutoCompleteAfterMin, DefaultAutoCompleteAfterMin),
		AutoCompleteInterval:   getEnvDuration(EnvAutoCompleteInterval, DefaultAutoCompleteInterval),
		OrderExpireInterval:    getEnvDuration(EnvOrderExpireInterval, DefaultOrderExpireInterval),
		StaleRequestAfterHours: getEnvNum(EnvStaleRequestAfterHours, DefaultStaleRequestAfterHours),
		StaleCleanupAt:         getEnvStr(EnvStaleCleanupAt, DefaultStaleCleanupAt),
		JobLockTTL:             getEnvDuration(EnvJobLockTTL, DefaultJobLockTTL),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}

	zone, err := timeutil.NewZone(cfg.Timezone)
	if err != nil {
		cfg.Log.Fatal("Invalid display timezone", "timezone", cfg.Timezone, "error", err)
	}
	cfg.Zone = zone

	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) Validate() error {
	var errs []string

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.EventsEnabled && len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, "KafkaBrokers cannot be empty when events are enabled")
	}
	if cfg.EventsEnabled && cfg.KafkaEventsTopic == "" {
		errs = append(errs, "KafkaEventsTopic cannot be empty when events are enabled")
	}

	if cfg.DefaultSlotMinutes < 15 || cfg.DefaultSlotMinutes%15 != 0 {
		errs = append(errs, fmt.Sprintf("DefaultSlotMinutes must be >=15 and a multiple of 15, got: %d", cfg.DefaultSlotMinutes))
	}
	if cfg.DefaultCancelBeforeHours < 0 {
		errs = append(errs, fmt.Sprintf("DefaultCancelBeforeHours cannot be negative, got: %d", cfg.DefaultCancelBeforeHours))
	}
	if cfg.DefaultChangeBeforeHours < 0 {
		errs = append(errs, fmt.Sprintf("DefaultChangeBeforeHours cannot be negative, got: %d", cfg.DefaultChangeBeforeHours))
	}
	if cfg.DefaultNoShowAfterMin < 0 {
		errs = append(errs, fmt.Sprintf("DefaultNoShowAfterMin cannot be negative, got: %d", cfg.DefaultNoShowAfterMin))
	}

	if cfg.ReminderBeforeHours <= 0 {
		errs = append(errs, fmt.Sprintf("ReminderBeforeHours must be positive, got: %d", cfg.ReminderBeforeHours))
	}
	if cfg.ReminderInterval <= 0 {
		errs = append(errs, fmt.Sprintf("ReminderInterval must be positive, got: %s", cfg.ReminderInterval))
	}
	if cfg.AutoCompleteAfterMin < 0 {
		errs = append(errs, fmt.Sprintf("AutoCompleteAfterMin cannot be negative, got: %d", cfg.AutoCompleteAfterMin))
	}
	if cfg.AutoCompleteInterval <= 0 {
		errs = append(errs, fmt.Sprintf("AutoCompleteInterval must be positive, got: %s", cfg.AutoCompleteInterval))
	}
	if cfg.OrderExpireInterval <= 0 {
		errs = append(errs, fmt.Sprintf("OrderExpireInterval must be positive, got: %s", cfg.OrderExpireInterval))
	}
	if cfg.StaleRequestAfterHours <= 0 {
		errs = append(errs, fmt.Sprintf("StaleRequestAfterHours must be positive, got: %d", cfg.StaleRequestAfterHours))
	}
	timeRegex := regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	if !timeRegex.MatchString(cfg.StaleCleanupAt) {
		errs = append(errs, fmt.Sprintf("StaleCleanupAt must be in HH:MM format, got: %s", cfg.StaleCleanupAt))
	}
	if cfg.JobLockTTL <= 0 {
		errs = append(errs, fmt.Sprintf("JobLockTTL must be positive, got: %s", cfg.JobLockTTL))
	}

	if len(errs) > 0 {
		msg := "Configuration validation failed:\n"
		for i, e := range errs {
			msg += fmt.Sprintf("  %d. %s\n", i+1, e)
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"kafka_brokers", strings.Join(cfg.KafkaBrokers, ","),
		"kafka_events_topic", cfg.KafkaEventsTopic,
		"events_enabled", cfg.EventsEnabled,
		"display_timezone", cfg.Timezone,
		"default_slot_minutes", cfg.DefaultSlotMinutes,
		"default_cancel_before_hours", cfg.DefaultCancelBeforeHours,
		"default_change_before_hours", cfg.DefaultChangeBeforeHours,
		"default_no_show_after_min", cfg.DefaultNoShowAfterMin,
		"reminder_before_hours", cfg.ReminderBeforeHours,
		"reminder_interval", cfg.ReminderInterval,
		"auto_complete_after_min", cfg.AutoCompleteAfterMin,
		"auto_complete_interval", cfg.AutoCompleteInterval,
		"order_expire_interval", cfg.OrderExpireInterval,
		"stale_request_after_hours", cfg.StaleRequestAfterHours,
		"stale_cleanup_at", cfg.StaleCleanupAt,
		"job_lock_ttl", cfg.JobLockTTL,
	)
}

// DefaultPolicy builds the policy snapshot applied when a catalog entry
// carries no explicit policy.
func (cfg *Config) DefaultPolicy() (cancelHours, changeHours, noShowMin int) {
	return cfg.DefaultCancelBeforeHours, cfg.DefaultChangeBeforeHours, cfg.DefaultNoShowAfterMin
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
