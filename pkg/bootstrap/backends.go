package bootstrap

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"ktrace/internal/collector"
	"ktrace/internal/config"
	"ktrace/internal/constants"
	"ktrace/pkg/circuitbreaker"
	"ktrace/pkg/health"
	"ktrace/pkg/storage"
)

// BreakerConfig maps the circuit_breaker section. It returns nil when the
// breaker is disabled.
func BreakerConfig(cfg config.CircuitBreakerConfig, name string) *circuitbreaker.Config {
	if !cfg.Enabled {
		return nil
	}

	cb := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cb.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cb.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cb.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 || cfg.MinRequests > 0 {
		ratio, minRequests := cfg.FailureRatio, cfg.MinRequests
		if ratio <= 0 {
			ratio = 0.5
		}
		if minRequests == 0 {
			minRequests = 3
		}
		cb.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		}
	}
	return &cb
}

// InitStorage opens the persistent slot described by the storage section.
func (dc *DatabaseConnector) InitStorage(ctx context.Context) (storage.Store, error) {
	opts := storage.Options{
		Type:      dc.Config.Storage.Type,
		Path:      dc.Config.Storage.Path,
		KeyPrefix: dc.Config.Storage.KeyPrefix,
		Breaker:   BreakerConfig(dc.Config.CircuitBreaker, "storage-"+dc.Config.Storage.Type),
	}

	if opts.Type == constants.StorageTypeRedis {
		client, err := dc.InitRedis(ctx)
		if err != nil {
			return nil, err
		}
		opts.Redis = client
	}

	store, err := storage.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", opts.Type, err)
	}
	dc.Logger.Debugw("Storage opened", "type", store.Name(), "path", opts.Path)
	return store, nil
}

// InitSink opens the collector sink and returns the health check guarding it.
func (dc *DatabaseConnector) InitSink(ctx context.Context) (collector.Sink, health.Checker, error) {
	sc := dc.Config.Collector.Sink

	switch sc.Type {
	case "", constants.SinkTypeFile:
		path := sc.Path
		if path == "" {
			path = constants.DefaultCollectorFile
		}
		sink, err := collector.NewFileSink(path)
		if err != nil {
			return nil, nil, err
		}
		return sink, health.NewFileChecker(path), nil

	case constants.SinkTypeRedis:
		client, err := dc.InitRedis(ctx)
		if err != nil {
			return nil, nil, err
		}
		return collector.NewRedisSink(client, dc.Config.Database.Redis.ListKey), health.NewRedisChecker(client), nil

	case constants.SinkTypePostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return nil, nil, err
		}
		return collector.NewPostgresSink(db), health.NewPostgreSQLChecker(db), nil

	case constants.SinkTypeMongoDB:
		db, err := dc.InitMongoDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return collector.NewMongoSink(db, dc.Config.Database.MongoDB.Collection), health.NewMongoDBChecker(dc.mongo), nil

	default:
		return nil, nil, fmt.Errorf("unknown sink type: %s", sc.Type)
	}
}
