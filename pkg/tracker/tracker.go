// Package tracker is the public entry point of the SDK: it builds events,
// applies sampling and plugin hooks, and hands them to the transport.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"ktrace/internal/constants"
	"ktrace/internal/logger"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/logging"
	"ktrace/pkg/metrics"
	"ktrace/pkg/models"
	"ktrace/pkg/queue"
	"ktrace/pkg/storage"
	"ktrace/pkg/transport"
)

// Version is reported with auto-tracked lifecycle events.
const Version = "1.0.0"

type Tracker struct {
	cfg           Config
	log           logger.Logger
	store         storage.Store
	ownsStore     bool
	transportOpts []transport.Option
	transport     *transport.Transport
	random        func() float64
	now           func() time.Time
	device        *models.DeviceInfo
	sessionID     string
	loadedAt      time.Time

	mu      sync.RWMutex
	userID  string
	plugins []Plugin
	closed  bool
}

// New validates cfg, restores the persisted queue and starts the periodic
// flush. Storage problems degrade durability but never fail construction.
func New(cfg Config, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		cfg:       cfg,
		random:    rand.Float64,
		now:       time.Now,
		sessionID: uuid.NewString(),
	}
	for _, o := range opts {
		o(t)
	}

	if t.log == nil {
		t.log = defaultLogger(cfg.Debug)
	}
	if s, ok := t.log.(*logger.SugaredLogger); ok && cfg.AppID != "" {
		s.SetAppID(cfg.AppID)
	}
	if t.device == nil {
		t.device = models.RuntimeDeviceInfo()
	}
	if t.store == nil {
		t.store = defaultStore(t.log)
		t.ownsStore = t.store != nil
	}

	ctx := logging.WithSessionID(context.Background(), t.sessionID)

	q := queue.New(ctx, t.store, cfg.StorageKey, t.log)
	t.transport = transport.New(q, cfg.transportOptions(), append([]transport.Option{transport.WithLogger(t.log)}, t.transportOpts...)...)
	t.transport.Start()

	if len(cfg.Plugins) > 0 {
		if err := t.Register(cfg.Plugins...); err != nil {
			t.log.WarnwCtx(ctx, "Plugin initialization failed", "error", err)
		}
	}

	if cfg.EnableAutoTrack {
		t.loadedAt = t.now()
		t.TrackPageView(constants.EventPageLoad, map[string]interface{}{
			"appId":      cfg.AppID,
			"appVersion": cfg.AppVersion,
			"sdkVersion": Version,
		})
	}

	if cfg.Debug {
		t.log.InfowCtx(ctx, "Tracker initialized",
			"server_url", cfg.ServerURL,
			"max_batch_size", cfg.MaxBatchSize,
			"flush_interval", cfg.FlushInterval,
			"sample_rate", cfg.SampleRate,
			"restored", q.Len(),
		)
	}

	return t, nil
}

func defaultLogger(debug bool) logger.Logger {
	if !debug {
		return logger.NopLogger()
	}
	l, err := logger.New("debug", "console")
	if err != nil {
		return logger.NopLogger()
	}
	return l
}

func defaultStore(log logger.Logger) storage.Store {
	dir, err := os.UserCacheDir()
	if err != nil {
		log.Warnw("No cache directory, queue running in memory only", "error", err)
		return nil
	}
	store, err := storage.NewFileStore(filepath.Join(dir, "ktrace"))
	if err != nil {
		log.Warnw("Storage unavailable, queue running in memory only", "error", err)
		return nil
	}
	return store
}

// Track records a custom event.
func (t *Tracker) Track(name string, properties map[string]interface{}) {
	t.track(models.EventTypeCustom, name, properties)
}

func (t *Tracker) TrackPageView(pageName string, properties map[string]interface{}) {
	t.track(models.EventTypePageView, pageName, properties)
}

// TrackEvent records an event of an explicit type. Unknown types are dropped.
func (t *Tracker) TrackEvent(eventType models.EventType, name string, properties map[string]interface{}) {
	if !eventType.Valid() {
		t.log.Warnw("Dropping event with unknown type", "type", eventType, "name", name)
		return
	}
	t.track(eventType, name, properties)
}

// TrackError records err as an error event. Fields of a models.ErrorInfo are
// carried over; extra entries are merged into the properties.
func (t *Tracker) TrackError(err error, extra map[string]interface{}) {
	if err == nil {
		return
	}

	props := map[string]interface{}{
		"name":    fmt.Sprintf("%T", err),
		"message": err.Error(),
	}

	var info models.ErrorInfo
	var infoPtr *models.ErrorInfo
	switch {
	case errors.As(err, &info):
	case errors.As(err, &infoPtr):
		info = *infoPtr
	}
	if info.Message != "" || info.Name != "" {
		props["name"] = info.Name
		props["message"] = info.Message
		if info.Stack != "" {
			props["stack"] = info.Stack
		}
		if info.Category != "" {
			props["category"] = info.Category
		}
		for k, v := range info.Context {
			props[k] = v
		}
	}

	if stack := apperrors.StackTrace(err); stack != "" {
		props["stack"] = stack
	}
	for k, v := range extra {
		props[k] = v
	}

	t.track(models.EventTypeError, constants.EventError, props)
}

// Identify sets the user id stamped on subsequent events and records a
// user_identify event.
func (t *Tracker) Identify(userID string, properties map[string]interface{}) {
	t.mu.Lock()
	t.userID = userID
	t.mu.Unlock()

	props := make(map[string]interface{}, len(properties)+1)
	props["userId"] = userID
	for k, v := range properties {
		props[k] = v
	}
	t.Track(constants.EventUserIdentify, props)

	if t.cfg.Debug {
		t.log.Debugw("User identified", "user_id", userID)
	}
}

// Register appends plugins to the hook chain and runs their Init hooks.
// A plugin whose Init fails is not registered.
func (t *Tracker) Register(plugins ...Plugin) error {
	var errs []error
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if in, ok := p.(Initializer); ok {
			if err := in.Init(t); err != nil {
				errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
				continue
			}
		}

		t.mu.Lock()
		t.plugins = append(t.plugins, p)
		t.mu.Unlock()

		if t.cfg.Debug {
			t.log.Debugw("Plugin registered", "plugin", p.Name())
		}
	}
	return errors.Join(errs...)
}

// Flush starts a delivery of everything pending. force selects the beacon
// strategy. It reports whether a flight was started.
func (t *Tracker) Flush(force bool) bool {
	return t.transport.Flush(force)
}

// Close is the teardown path: it records page_leave when auto-tracking,
// forces a final beacon flush, waits for in-flight delivery until ctx is
// done and destroys plugins. Events tracked after Close are dropped.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.transport.BeginClose()
	if t.cfg.EnableAutoTrack {
		t.Track(constants.EventPageLeave, map[string]interface{}{
			"appId":    t.cfg.AppID,
			"duration": t.now().Sub(t.loadedAt).Milliseconds(),
		})
	}

	t.mu.Lock()
	t.closed = true
	plugins := append([]Plugin(nil), t.plugins...)
	t.mu.Unlock()

	err := t.transport.Close(ctx)

	for _, p := range plugins {
		if d, ok := p.(Destroyer); ok {
			d.Destroy()
		}
	}

	if t.ownsStore {
		if cerr := t.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	_ = t.log.Sync()
	return err
}

func (t *Tracker) SessionID() string {
	return t.sessionID
}

func (t *Tracker) UserID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userID
}

// Pending returns the events not yet handed to a delivery flight.
func (t *Tracker) Pending() []models.Event {
	return t.transport.Queue().Pending()
}

// Snapshot returns every undelivered event, in-flight ones first.
func (t *Tracker) Snapshot() []models.Event {
	return t.transport.Queue().Snapshot()
}

// Wait blocks until the current delivery flight, if any, completes.
func (t *Tracker) Wait() {
	t.transport.Wait()
}

func (t *Tracker) track(eventType models.EventType, name string, properties map[string]interface{}) {
	t.mu.RLock()
	userID := t.userID
	plugins := t.plugins
	closed := t.closed
	t.mu.RUnlock()

	if closed {
		metrics.IncEventsTracked("closed")
		t.log.Debugw("Tracker closed, event dropped", "name", name)
		return
	}

	if t.random() >= t.cfg.SampleRate {
		metrics.IncEventsTracked("sampled_out")
		return
	}

	event := models.NewEventBuilder().
		WithType(eventType).
		WithName(name).
		WithTimestamp(t.now()).
		WithProperties(properties).
		WithUserID(userID).
		WithSessionID(t.sessionID).
		WithDeviceInfo(t.device).
		Build()

	for _, p := range plugins {
		bt, ok := p.(BeforeTracker)
		if !ok {
			continue
		}
		next, keep := bt.BeforeTrack(event.Clone())
		if !keep {
			metrics.IncEventsTracked("vetoed")
			if t.cfg.Debug {
				t.log.Debugw("Event vetoed", "name", name, "plugin", p.Name())
			}
			return
		}
		event = next
	}

	t.transport.Send(event)
	metrics.IncEventsTracked("accepted")

	for _, p := range plugins {
		if at, ok := p.(AfterTracker); ok {
			at.AfterTrack(event.Clone())
		}
	}

	if t.cfg.Debug {
		ctx := logging.WithEventID(logging.WithSessionID(context.Background(), t.sessionID), event.ID)
		t.log.DebugwCtx(ctx, "Event tracked", "name", event.Name, "type", event.Type)
	}
}
