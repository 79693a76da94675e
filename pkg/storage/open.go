package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"ktrace/internal/constants"
	"ktrace/pkg/circuitbreaker"
)

type Options struct {
	Type      string
	Path      string
	KeyPrefix string
	// Redis is required for the redis backend.
	Redis *redis.Client
	// Breaker wraps the backend in a circuit breaker when non-nil.
	Breaker *circuitbreaker.Config
}

func Open(opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch opts.Type {
	case "", constants.StorageTypeMemory:
		store = NewMemoryStore()
	case constants.StorageTypeFile:
		store, err = NewFileStore(opts.Path)
	case constants.StorageTypeSQLite:
		store, err = NewSQLiteStore(opts.Path)
	case constants.StorageTypeRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis storage requires a client")
		}
		store = NewRedisStore(opts.Redis, opts.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", opts.Type)
	}
	if err != nil {
		return nil, err
	}

	if opts.Breaker != nil {
		return NewBreakerStore(store, *opts.Breaker), nil
	}
	return store, nil
}
