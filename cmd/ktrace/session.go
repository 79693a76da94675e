package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ktrace/internal/config"
	"ktrace/internal/logger"
	"ktrace/pkg/bootstrap"
	"ktrace/pkg/errormonitor"
	"ktrace/pkg/logging"
	"ktrace/pkg/metrics"
	"ktrace/pkg/plugins/celfilter"
	"ktrace/pkg/storage"
	"ktrace/pkg/tracing"
	"ktrace/pkg/tracker"
)

// session is one CLI invocation: a tracker over the configured storage.
type session struct {
	cfg     *config.Config
	log     logger.Logger
	db      *bootstrap.DatabaseConnector
	store   storage.Store
	tracker *tracker.Tracker
	monitor *errormonitor.Monitor
	tracing *tracing.Provider
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	return config.Load(configFile)
}

func openSession(ctx context.Context) (*session, error) {
	earlyLog := logging.NewEarlyLog()

	cfg, err := loadConfig()
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	if err := config.ValidateTracker(cfg.Tracker); err != nil {
		earlyLog.Error("Invalid tracker config: %v", err)
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, err
	}

	s := &session{cfg: cfg, log: log, db: bootstrap.NewDatabaseConnector(cfg, log)}

	s.tracing, err = tracing.Init(cfg, tracing.ComponentCLI)
	if err != nil {
		log.Errorw("Failed to initialize tracing", "error", err)
		return nil, err
	}

	s.store, err = s.db.InitStorage(ctx)
	if err != nil {
		log.Warnw("Storage unavailable, events will not survive this process", "error", err)
		s.store = nil
	}

	plugins, err := celfilter.FromConfig(cfg.Plugins, log)
	if err != nil {
		s.shutdownBackends(ctx)
		return nil, err
	}

	trackerCfg := tracker.FromConfig(cfg.Tracker)
	trackerCfg.Plugins = plugins

	metrics.RegisterTrackerMetrics()

	opts := []tracker.Option{tracker.WithLogger(log)}
	if s.store != nil {
		opts = append(opts, tracker.WithStore(s.store))
	} else {
		opts = append(opts, tracker.WithStore(storage.NewMemoryStore()))
	}

	s.tracker, err = tracker.New(trackerCfg, opts...)
	if err != nil {
		s.shutdownBackends(ctx)
		return nil, err
	}

	s.monitor, err = errormonitor.New(s.tracker, errormonitor.DefaultConfig(), errormonitor.WithLogger(log))
	if err != nil {
		s.tracker.Close(ctx)
		s.shutdownBackends(ctx)
		return nil, err
	}
	return s, nil
}

// close flushes the tracker and releases storage. Events that could not be
// delivered within the timeout stay persisted for the next invocation.
func (s *session) close() error {
	timeout, err := time.ParseDuration(closeTimeout)
	if err != nil {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.tracker.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracker close: %w", err))
	}
	if err := s.shutdownBackends(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = s.log.Sync()
	return errors.Join(errs...)
}

func (s *session) shutdownBackends(ctx context.Context) error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if err := s.db.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// parseProperties turns key=value pairs into event properties. Values that
// parse as JSON (numbers, booleans, objects) keep their type.
func parseProperties(pairs []string) (map[string]interface{}, error) {
	props := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", pair)
		}

		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		props[key] = value
	}
	return props, nil
}
