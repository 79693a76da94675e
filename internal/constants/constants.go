package constants

import "time"

const (
	DefaultMaxBatchSize   = 10
	DefaultFlushInterval  = 5 * time.Second
	DefaultSampleRate     = 1.0
	DefaultRetryTimes     = 3
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	BeaconTimeout         = 2 * time.Second
)

const (
	DefaultStorageKey = "ktrace_events"
	CollectPath       = "collect"
)

const (
	EventUserIdentify = "user_identify"
	EventPageLoad     = "page_load"
	EventPageLeave    = "page_leave"
	EventError        = "error"
)

const (
	StrategyBeacon = "beacon"
	StrategyRetry  = "retry"
)

const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

const (
	SinkTypeFile     = "file"
	SinkTypeRedis    = "redis"
	SinkTypePostgres = "postgres"
	SinkTypeMongoDB  = "mongodb"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
	StorageTimeout  = 3 * time.Second
)

const (
	DefaultCollectorPort   = 3000
	DefaultCollectorFile   = "data/tracking_data.json"
	DefaultRedisListKey    = "ktrace:collected"
	DefaultMongoDBName     = "ktrace"
	DefaultMongoCollection = "events"
	MaxRequestBodyBytes    = 10 << 20
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
