package config

import (
	"fmt"
	"net/url"
	"strings"

	"ktrace/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the sections every binary depends on.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if err := validateStorage(cfg.Storage, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validatePlugins(cfg.Plugins); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// ValidateTracker checks the tracker section. Only the SDK CLI requires it.
func ValidateTracker(cfg TrackerConfig) error {
	if cfg.AppID == "" {
		return &ValidationError{Field: "tracker.app_id", Message: "app id is required"}
	}

	if cfg.ServerURL == "" {
		return &ValidationError{Field: "tracker.server_url", Message: "server url is required"}
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{
			Field:   "tracker.server_url",
			Message: fmt.Sprintf("server url must be absolute, got %q", cfg.ServerURL),
		}
	}

	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return &ValidationError{
			Field:   "tracker.sample_rate",
			Message: fmt.Sprintf("sample rate must be within [0, 1], got %v", cfg.SampleRate),
		}
	}

	if cfg.MaxBatchSize < 1 {
		return &ValidationError{Field: "tracker.max_batch_size", Message: "max batch size must be at least 1"}
	}

	if cfg.FlushInterval <= 0 {
		return &ValidationError{Field: "tracker.flush_interval", Message: "flush interval must be positive"}
	}

	if cfg.RetryTimes < 0 {
		return &ValidationError{Field: "tracker.retry_times", Message: "retry times must be non-negative"}
	}

	if cfg.RetryBaseDelay < 0 {
		return &ValidationError{Field: "tracker.retry_base_delay", Message: "retry base delay must be non-negative"}
	}

	return nil
}

// ValidateCollector checks the collector section and the backends it selects.
func ValidateCollector(cfg *Config) error {
	if err := validateServer(cfg.Collector.Server); err != nil {
		return err
	}

	switch cfg.Collector.Sink.Type {
	case constants.SinkTypeFile:
		if cfg.Collector.Sink.Path == "" {
			return &ValidationError{Field: "collector.sink.path", Message: "file sink requires a path"}
		}
	case constants.SinkTypeRedis:
		if cfg.Database.Redis.Host == "" {
			return &ValidationError{Field: "database.redis.host", Message: "redis sink requires database.redis"}
		}
	case constants.SinkTypePostgres:
		if cfg.Database.Postgres.Host == "" {
			return &ValidationError{Field: "database.postgres.host", Message: "postgres sink requires database.postgres"}
		}
	case constants.SinkTypeMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{Field: "database.mongodb.uri", Message: "mongodb sink requires database.mongodb"}
		}
	default:
		return &ValidationError{
			Field: "collector.sink.type",
			Message: fmt.Sprintf("unknown sink type: %s (supported: %s, %s, %s, %s)", cfg.Collector.Sink.Type,
				constants.SinkTypeFile, constants.SinkTypeRedis, constants.SinkTypePostgres, constants.SinkTypeMongoDB),
		}
	}

	if cfg.Collector.RateLimit.Enabled {
		if cfg.Collector.RateLimit.RPS <= 0 {
			return &ValidationError{Field: "collector.rate_limit.rps", Message: "rps must be positive"}
		}
		if cfg.Collector.RateLimit.Burst < 1 {
			return &ValidationError{Field: "collector.rate_limit.burst", Message: "burst must be at least 1"}
		}
	}

	if cfg.Collector.Forward.Enabled {
		return validateKafka(cfg.Broker.Kafka)
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", cfg.Level),
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json", "console":
	default:
		return &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: json, console)", cfg.Format),
		}
	}

	return nil
}

func validateStorage(cfg StorageConfig, db DatabaseConfig) error {
	switch cfg.Type {
	case constants.StorageTypeMemory:
		return nil
	case constants.StorageTypeFile, constants.StorageTypeSQLite:
		if cfg.Path == "" {
			return &ValidationError{
				Field:   "storage.path",
				Message: fmt.Sprintf("%s storage requires a path", cfg.Type),
			}
		}
		return nil
	case constants.StorageTypeRedis:
		if db.Redis.Host == "" {
			return &ValidationError{Field: "database.redis.host", Message: "redis storage requires database.redis"}
		}
		return nil
	default:
		return &ValidationError{
			Field: "storage.type",
			Message: fmt.Sprintf("unknown storage type: %s (supported: %s, %s, %s, %s)", cfg.Type,
				constants.StorageTypeMemory, constants.StorageTypeFile, constants.StorageTypeRedis, constants.StorageTypeSQLite),
		}
	}
}

func validatePlugins(cfg PluginsConfig) error {
	for i, f := range cfg.Filters {
		if strings.TrimSpace(f.Expression) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("plugins.filters[%d].expression", i),
				Message: "filter expression cannot be empty",
			}
		}
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "collector.server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "collector.server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "collector.server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "broker.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "database.redis.db",
			Message: "db index must be non-negative",
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}
