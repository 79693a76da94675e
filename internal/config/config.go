package config

import (
	"time"
)

type Config struct {
	Tracker        TrackerConfig        `mapstructure:"tracker"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Plugins        PluginsConfig        `mapstructure:"plugins"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Collector      CollectorConfig      `mapstructure:"collector"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type TrackerConfig struct {
	AppID           string            `mapstructure:"app_id"`
	ServerURL       string            `mapstructure:"server_url"`
	AppVersion      string            `mapstructure:"app_version"`
	EnableAutoTrack bool              `mapstructure:"enable_auto_track"`
	Debug           bool              `mapstructure:"debug"`
	MaxBatchSize    int               `mapstructure:"max_batch_size"`
	FlushInterval   time.Duration     `mapstructure:"flush_interval"`
	SampleRate      float64           `mapstructure:"sample_rate"`
	RetryTimes      int               `mapstructure:"retry_times"`
	RetryBaseDelay  time.Duration     `mapstructure:"retry_base_delay"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	UseBeacon       bool              `mapstructure:"use_beacon"`
	Headers         map[string]string `mapstructure:"headers"`
	StorageKey      string            `mapstructure:"storage_key"`
}

// StorageConfig selects the persistent slot backing the durable queue.
// The redis backend reuses database.redis for its connection.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Path      string `mapstructure:"path"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PluginsConfig struct {
	Filters []FilterConfig `mapstructure:"filters"`
}

// FilterConfig is a CEL expression; events for which it evaluates to false are vetoed.
type FilterConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CollectorConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sink      SinkConfig      `mapstructure:"sink"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Forward   ForwardConfig   `mapstructure:"forward"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SinkConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

// ForwardConfig enables publishing every accepted batch to broker.kafka.
type ForwardConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	ListKey  string `mapstructure:"list_key"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
