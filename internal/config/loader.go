package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ktrace/internal/constants"
)

// LoadConfig reads configFile (optional for the SDK CLI), applies defaults
// and environment overrides, and validates the shared sections.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("tracker.enable_auto_track", true)
	viper.SetDefault("tracker.max_batch_size", constants.DefaultMaxBatchSize)
	viper.SetDefault("tracker.flush_interval", constants.DefaultFlushInterval)
	viper.SetDefault("tracker.sample_rate", constants.DefaultSampleRate)
	viper.SetDefault("tracker.retry_times", constants.DefaultRetryTimes)
	viper.SetDefault("tracker.retry_base_delay", constants.DefaultRetryBaseDelay)
	viper.SetDefault("tracker.request_timeout", constants.DefaultRequestTimeout)
	viper.SetDefault("tracker.use_beacon", true)
	viper.SetDefault("tracker.storage_key", constants.DefaultStorageKey)

	viper.SetDefault("storage.type", constants.StorageTypeFile)
	viper.SetDefault("storage.path", ".ktrace")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("collector.server.port", constants.DefaultCollectorPort)
	viper.SetDefault("collector.server.read_timeout", "10s")
	viper.SetDefault("collector.server.write_timeout", "10s")
	viper.SetDefault("collector.sink.type", constants.SinkTypeFile)
	viper.SetDefault("collector.sink.path", constants.DefaultCollectorFile)
	viper.SetDefault("collector.rate_limit.rps", 100)
	viper.SetDefault("collector.rate_limit.burst", 200)

	viper.SetDefault("database.redis.port", 6379)
	viper.SetDefault("database.redis.list_key", constants.DefaultRedisListKey)
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	viper.SetDefault("database.mongodb.collection", constants.DefaultMongoCollection)

	viper.SetDefault("broker.kafka.topic", "ktrace.events")

	viper.SetDefault("tracing.service_name", "ktrace")
	viper.SetDefault("tracing.sampler.type", "always_on")
}

func bindEnvVariables() {
	viper.BindEnv("tracker.app_id", "KTRACE_APP_ID")
	viper.BindEnv("tracker.server_url", "KTRACE_SERVER_URL")
	viper.BindEnv("tracker.sample_rate", "KTRACE_SAMPLE_RATE")
	viper.BindEnv("tracker.debug", "KTRACE_DEBUG")

	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.path", "STORAGE_PATH")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("collector.server.port", "COLLECTOR_SERVER_PORT")
	viper.BindEnv("collector.sink.type", "COLLECTOR_SINK_TYPE")
	viper.BindEnv("collector.sink.path", "COLLECTOR_SINK_PATH")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
