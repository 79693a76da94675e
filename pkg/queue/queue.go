// Package queue holds undelivered events in order and mirrors them into a
// storage slot after every membership change.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ktrace/internal/constants"
	"ktrace/internal/logger"
	"ktrace/pkg/metrics"
	"ktrace/pkg/models"
	"ktrace/pkg/storage"
)

// Queue is a FIFO of pending events plus the batch currently being
// delivered. The persisted mirror is in-flight followed by pending, so a
// batch lost mid-delivery is recovered on the next load.
type Queue struct {
	mu       sync.Mutex
	store    storage.Store
	key      string
	log      logger.Logger
	pending  []models.Event
	inflight []models.Event
	// pos orders every queued event by arrival; pending is kept sorted by it.
	pos      map[string]int64
	next     int64
	first    int64
	degraded bool
	// unloaded is set while the snapshot from a previous run could not be
	// read; it is merged in before the first successful write.
	unloaded bool
}

// New loads the snapshot stored under key. A nil store runs the queue in
// memory only. Storage failures never fail construction.
func New(ctx context.Context, store storage.Store, key string, log logger.Logger) *Queue {
	if log == nil {
		log = logger.NopLogger()
	}
	if key == "" {
		key = constants.DefaultStorageKey
	}

	q := &Queue{
		store: store,
		key:   key,
		log:   log,
		pos:   make(map[string]int64),
	}

	if store == nil {
		q.degraded = true
		return q
	}

	restored, err := Load(ctx, store, key)
	switch {
	case err == nil:
		for _, e := range restored {
			q.pos[e.ID] = q.next
			q.next++
		}
		q.pending = append(restored, q.pending...)
		if len(restored) > 0 {
			q.log.Infow("Restored persisted events", "key", key, "count", len(restored))
		}
	case errors.Is(err, errCorruptSnapshot):
		q.log.Warnw("Discarding unreadable queue snapshot", "key", key, "error", err)
	default:
		q.degraded = true
		q.unloaded = true
		metrics.IncStorageError(store.Name(), "load")
		q.log.Warnw("Storage unavailable, queue running in memory only", "key", key, "error", err)
	}

	metrics.SetQueueSize(q.key, len(q.pending))
	return q
}

var errCorruptSnapshot = errors.New("corrupt queue snapshot")

// Load reads the events persisted under key. A missing key is an empty queue.
func Load(ctx context.Context, store storage.Store, key string) ([]models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	data, err := store.Load(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []models.Event{}, nil
	}

	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSnapshot, err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Push appends e and returns the number of pending events.
func (q *Queue) Push(e models.Event) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pos[e.ID] = q.next
	q.next++
	q.pending = append(q.pending, e)
	q.persistLocked()
	return len(q.pending)
}

// Drain moves every pending event into the in-flight batch and returns it.
// It returns nil when nothing is pending.
func (q *Queue) Drain() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	batch := q.pending
	q.pending = nil
	q.inflight = append(q.inflight, batch...)
	q.persistLocked()

	out := make([]models.Event, len(batch))
	copy(out, batch)
	return out
}

// Requeue puts a failed batch back at the head, ahead of anything pushed
// while it was in flight. When two flights overlap, each event returns to
// its arrival position, so the result does not depend on which flight fails
// first. Events no longer tracked as in flight (reconciled or cleared
// meanwhile) are not reinserted.
func (q *Queue) Requeue(batch []models.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tracked := make(map[string]struct{}, len(q.inflight))
	for _, e := range q.inflight {
		tracked[e.ID] = struct{}{}
	}

	head := make([]models.Event, 0, len(batch))
	returned := make(map[string]struct{}, len(batch))
	for _, e := range batch {
		if _, ok := tracked[e.ID]; !ok {
			continue
		}
		head = append(head, e)
		returned[e.ID] = struct{}{}
	}

	q.inflight = without(q.inflight, returned)
	q.pending = q.mergeLocked(head, q.pending)
	q.persistLocked()
}

// Reconcile removes the given ids from the queue. Ids already gone are
// ignored, so reconciling the same batch twice is a no-op.
func (q *Queue) Reconcile(ids []string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	before := len(q.inflight) + len(q.pending)
	q.inflight = without(q.inflight, drop)
	q.pending = without(q.pending, drop)
	for id := range drop {
		delete(q.pos, id)
	}
	removed := before - len(q.inflight) - len(q.pending)

	if removed > 0 {
		metrics.AddEventsDelivered(removed)
	}
	q.persistLocked()
	return removed
}

// Clear drops every pending and in-flight event.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.inflight = nil
	q.pos = make(map[string]int64)
	q.persistLocked()
}

// Len is the number of pending events, excluding the in-flight batch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Pending() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Event, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *Queue) InFlight() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Event, len(q.inflight))
	copy(out, q.inflight)
	return out
}

// Snapshot returns the mirror content: in-flight events followed by pending ones.
func (q *Queue) Snapshot() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) Key() string {
	return q.key
}

// Degraded reports whether the last storage access failed.
func (q *Queue) Degraded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.degraded
}

func (q *Queue) snapshotLocked() []models.Event {
	out := make([]models.Event, 0, len(q.inflight)+len(q.pending))
	out = append(out, q.inflight...)
	out = append(out, q.pending...)
	return out
}

func (q *Queue) persistLocked() {
	if q.store != nil && q.unloaded {
		q.restoreLocked()
	}

	size := len(q.inflight) + len(q.pending)
	metrics.SetQueueSize(q.key, size)

	if q.store == nil {
		return
	}

	data, err := json.Marshal(q.snapshotLocked())
	if err != nil {
		q.log.Errorw("Failed to encode queue snapshot", "key", q.key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()

	if err := q.store.Save(ctx, q.key, data); err != nil {
		metrics.IncStorageError(q.store.Name(), "save")
		if !q.degraded {
			q.log.Warnw("Storage write failed, queue running in memory only", "key", q.key, "backend", q.store.Name(), "error", err)
		}
		q.degraded = true
		return
	}

	if q.degraded {
		q.log.Infow("Storage recovered, queue persisted again", "key", q.key, "size", size)
	}
	q.degraded = false
}

func (q *Queue) restoreLocked() {
	restored, err := Load(context.Background(), q.store, q.key)
	if err != nil && !errors.Is(err, errCorruptSnapshot) {
		return
	}
	q.unloaded = false

	known := make(map[string]struct{}, len(q.inflight)+len(q.pending))
	for _, e := range q.snapshotLocked() {
		known[e.ID] = struct{}{}
	}
	head := make([]models.Event, 0, len(restored))
	for _, e := range restored {
		if _, ok := known[e.ID]; !ok {
			head = append(head, e)
		}
	}
	for i := len(head) - 1; i >= 0; i-- {
		q.first--
		q.pos[head[i].ID] = q.first
	}
	if len(head) > 0 {
		q.pending = append(head, q.pending...)
		q.log.Infow("Restored persisted events after storage recovery", "key", q.key, "count", len(head))
	}
}

// mergeLocked interleaves two position-sorted slices.
func (q *Queue) mergeLocked(a, b []models.Event) []models.Event {
	out := make([]models.Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if q.pos[a[i].ID] <= q.pos[b[j].ID] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func without(events []models.Event, drop map[string]struct{}) []models.Event {
	if len(drop) == 0 || len(events) == 0 {
		return events
	}
	kept := events[:0:0]
	for _, e := range events {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	return kept
}
