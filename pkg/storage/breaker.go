package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"ktrace/pkg/circuitbreaker"
	apperrors "ktrace/pkg/errors"
)

// BreakerStore fails fast with ErrStorageUnavailable while the breaker
// guarding the wrapped backend is open. ErrNotFound counts as success.
type BreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewBreakerStore(store Store, cfg circuitbreaker.Config) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "storage-" + store.Name()
	}
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound)
	}
	return &BreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(cfg),
	}
}

func (b *BreakerStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := circuitbreaker.Do(ctx, b.cb, func() ([]byte, error) {
		return b.store.Load(ctx, key)
	})
	return data, b.wrap(err)
}

func (b *BreakerStore) Save(ctx context.Context, key string, data []byte) error {
	return b.wrap(b.cb.Run(ctx, func() error {
		return b.store.Save(ctx, key, data)
	}))
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	return b.wrap(b.cb.Run(ctx, func() error {
		return b.store.Delete(ctx, key)
	}))
}

func (b *BreakerStore) Name() string {
	return b.store.Name()
}

func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Close() error {
	return b.store.Close()
}

func (b *BreakerStore) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.ErrStorageUnavailable.WithCause(fmt.Errorf("circuit breaker is open for %s: %w", b.cb.Name(), err))
	}
	return err
}
