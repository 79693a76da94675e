// Package storage provides the persistent key-value slot that mirrors the
// durable event queue.
package storage

import (
	"context"
	"errors"
)

// Store is a byte-oriented key-value slot. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns ErrNotFound when the key was never saved.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save overwrites the value stored under key.
	Save(ctx context.Context, key string, data []byte) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	Name() string
	Close() error
}

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: store closed")
)

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
