//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktrace/internal/testinfra"
)

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)

	store := NewRedisStore(client, "ktrace:test:")

	_, err := store.Load(ctx, "ktrace_events")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "ktrace_events", []byte(`[{"id":"a"}]`)))
	data, err := store.Load(ctx, "ktrace_events")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(data))

	raw, err := client.Get(ctx, "ktrace:test:ktrace_events").Result()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, raw)

	require.NoError(t, store.Delete(ctx, "ktrace_events"))
	_, err = store.Load(ctx, "ktrace_events")
	assert.ErrorIs(t, err, ErrNotFound)
}
