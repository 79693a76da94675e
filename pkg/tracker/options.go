package tracker

import (
	"time"

	"ktrace/internal/logger"
	"ktrace/pkg/models"
	"ktrace/pkg/storage"
	"ktrace/pkg/transport"
)

type Option func(*Tracker)

func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithStore sets the persistent slot. The caller keeps ownership.
func WithStore(s storage.Store) Option {
	return func(t *Tracker) { t.store = s }
}

func WithSender(s transport.Sender) Option {
	return func(t *Tracker) { t.transportOpts = append(t.transportOpts, transport.WithSender(s)) }
}

func WithBeacon(b transport.Beacon) Option {
	return func(t *Tracker) { t.transportOpts = append(t.transportOpts, transport.WithBeacon(b)) }
}

func WithEnvironment(e transport.Environment) Option {
	return func(t *Tracker) { t.transportOpts = append(t.transportOpts, transport.WithEnvironment(e)) }
}

// WithRandom replaces the sampling source. It must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(t *Tracker) { t.random = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(t *Tracker) { t.now = fn }
}

func WithDeviceInfo(info *models.DeviceInfo) Option {
	return func(t *Tracker) {
		if info != nil {
			d := *info
			t.device = &d
		}
	}
}
