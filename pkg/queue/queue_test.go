package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktrace/pkg/models"
	"ktrace/pkg/storage"
)

const testKey = "ktrace_events"

func event(name string) models.Event {
	return models.NewEventBuilder().WithID("id-" + name).WithName(name).Build()
}

func ids(events []models.Event) []string {
	return models.EventIDs(events)
}

func persistedIDs(t *testing.T, store storage.Store) []string {
	t.Helper()
	events, err := Load(context.Background(), store, testKey)
	require.NoError(t, err)
	return ids(events)
}

type flakyStore struct {
	*storage.MemoryStore
	mu   sync.Mutex
	fail bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *flakyStore) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failing() {
		return nil, errors.New("storage offline")
	}
	return f.MemoryStore.Load(ctx, key)
}

func (f *flakyStore) Save(ctx context.Context, key string, data []byte) error {
	if f.failing() {
		return errors.New("storage offline")
	}
	return f.MemoryStore.Save(ctx, key, data)
}

func TestQueue_PushPreservesOrderAndPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(context.Background(), store, testKey, nil)

	assert.Equal(t, 1, q.Push(event("a")))
	assert.Equal(t, 2, q.Push(event("b")))
	assert.Equal(t, 3, q.Push(event("c")))

	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, ids(q.Pending()))
	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, persistedIDs(t, store))
}

func TestQueue_RoundTripThroughReload(t *testing.T) {
	store := storage.NewMemoryStore()
	first := New(context.Background(), store, testKey, nil)
	for _, name := range []string{"a", "b", "c"} {
		first.Push(event(name))
	}

	reloaded := New(context.Background(), store, testKey, nil)
	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, ids(reloaded.Pending()))
	assert.False(t, reloaded.Degraded())
}

func TestQueue_InFlightBatchSurvivesReload(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(context.Background(), store, testKey, nil)
	q.Push(event("a"))
	q.Push(event("b"))

	batch := q.Drain()
	require.Len(t, batch, 2)
	q.Push(event("c"))

	assert.Equal(t, 1, q.Len())
	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, persistedIDs(t, store))

	reloaded := New(context.Background(), store, testKey, nil)
	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, ids(reloaded.Pending()))
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := New(context.Background(), storage.NewMemoryStore(), testKey, nil)
	assert.Nil(t, q.Drain())
}

func TestQueue_RequeueInsertsAtHead(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(context.Background(), store, testKey, nil)
	q.Push(event("a"))
	q.Push(event("b"))

	batch := q.Drain()
	q.Push(event("c"))
	q.Requeue(batch)

	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, ids(q.Pending()))
	assert.Empty(t, q.InFlight())
	assert.Equal(t, []string{"id-a", "id-b", "id-c"}, persistedIDs(t, store))
}

func TestQueue_RequeueOverlappingFlightsKeepsArrivalOrder(t *testing.T) {
	tests := []struct {
		name       string
		olderFirst bool
	}{
		{"older flight fails first", true},
		{"newer flight fails first", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			q := New(context.Background(), store, testKey, nil)
			q.Push(event("a"))
			older := q.Drain()
			q.Push(event("b"))
			newer := q.Drain()
			q.Push(event("c"))

			if tt.olderFirst {
				q.Requeue(older)
				q.Requeue(newer)
			} else {
				q.Requeue(newer)
				q.Requeue(older)
			}

			assert.Equal(t, []string{"id-a", "id-b", "id-c"}, ids(q.Pending()))
			assert.Equal(t, []string{"id-a", "id-b", "id-c"}, persistedIDs(t, store))
		})
	}
}

func TestQueue_ReconcileIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(context.Background(), store, testKey, nil)
	q.Push(event("a"))
	q.Push(event("b"))

	batch := q.Drain()
	q.Push(event("c"))

	assert.Equal(t, 2, q.Reconcile(ids(batch)))
	assert.Equal(t, []string{"id-c"}, persistedIDs(t, store))

	assert.Equal(t, 0, q.Reconcile(ids(batch)))
	assert.Equal(t, []string{"id-c"}, ids(q.Pending()))
	assert.Equal(t, []string{"id-c"}, persistedIDs(t, store))
}

func TestQueue_ReconcileEverythingPersistsEmptyArray(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(context.Background(), store, testKey, nil)
	q.Push(event("a"))
	q.Push(event("b"))

	q.Reconcile(ids(q.Drain()))

	raw, err := store.Load(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestQueue_RequeueAfterClearIsNoop(t *testing.T) {
	q := New(context.Background(), storage.NewMemoryStore(), testKey, nil)
	q.Push(event("a"))
	batch := q.Drain()

	q.Clear()
	q.Requeue(batch)

	assert.Empty(t, q.Snapshot())
}

func TestQueue_CorruptSnapshotStartsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), testKey, []byte("{not json")))

	q := New(context.Background(), store, testKey, nil)
	assert.Empty(t, q.Pending())
	assert.False(t, q.Degraded())

	q.Push(event("a"))
	assert.Equal(t, []string{"id-a"}, persistedIDs(t, store))
}

func TestQueue_DegradesAndRecovers(t *testing.T) {
	store := newFlakyStore()
	q := New(context.Background(), store, testKey, nil)

	store.setFail(true)
	q.Push(event("a"))
	assert.True(t, q.Degraded())
	assert.Equal(t, []string{"id-a"}, ids(q.Pending()))

	store.setFail(false)
	q.Push(event("b"))
	assert.False(t, q.Degraded())
	assert.Equal(t, []string{"id-a", "id-b"}, persistedIDs(t, store))
}

func TestQueue_UnreadableStorageMergesOnRecovery(t *testing.T) {
	store := newFlakyStore()
	previous, err := json.Marshal([]models.Event{event("old")})
	require.NoError(t, err)
	require.NoError(t, store.MemoryStore.Save(context.Background(), testKey, previous))

	store.setFail(true)
	q := New(context.Background(), store, testKey, nil)
	assert.True(t, q.Degraded())
	q.Push(event("new"))

	store.setFail(false)
	q.Push(event("newer"))

	assert.Equal(t, []string{"id-old", "id-new", "id-newer"}, ids(q.Pending()))
	assert.Equal(t, []string{"id-old", "id-new", "id-newer"}, persistedIDs(t, store))
}

func TestQueue_NilStoreIsMemoryOnly(t *testing.T) {
	q := New(context.Background(), nil, "", nil)
	q.Push(event("a"))

	assert.True(t, q.Degraded())
	assert.Equal(t, "ktrace_events", q.Key())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New(context.Background(), storage.NewMemoryStore(), testKey, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(models.NewEventBuilder().WithName("concurrent").Build())
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, q.Len())
}
