package tracker

import (
	"fmt"
	"net/url"
	"time"

	"ktrace/internal/config"
	"ktrace/internal/constants"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/transport"
)

// Config is the tracker configuration. Start from DefaultConfig: several
// zero values (SampleRate, EnableAutoTrack, UseBeacon) are meaningful.
type Config struct {
	AppID           string
	ServerURL       string
	AppVersion      string
	EnableAutoTrack bool
	Debug           bool
	MaxBatchSize    int
	FlushInterval   time.Duration
	SampleRate      float64
	RetryTimes      int
	RetryBaseDelay  time.Duration
	RequestTimeout  time.Duration
	UseBeacon       bool
	Headers         map[string]string
	StorageKey      string
	Plugins         []Plugin
}

func DefaultConfig() Config {
	return Config{
		EnableAutoTrack: true,
		MaxBatchSize:    constants.DefaultMaxBatchSize,
		FlushInterval:   constants.DefaultFlushInterval,
		SampleRate:      constants.DefaultSampleRate,
		RetryTimes:      constants.DefaultRetryTimes,
		RetryBaseDelay:  constants.DefaultRetryBaseDelay,
		RequestTimeout:  constants.DefaultRequestTimeout,
		UseBeacon:       true,
		StorageKey:      constants.DefaultStorageKey,
	}
}

// FromConfig maps the file-based tracker section onto Config.
func FromConfig(c config.TrackerConfig) Config {
	cfg := DefaultConfig()
	cfg.AppID = c.AppID
	cfg.ServerURL = c.ServerURL
	cfg.AppVersion = c.AppVersion
	cfg.EnableAutoTrack = c.EnableAutoTrack
	cfg.Debug = c.Debug
	cfg.MaxBatchSize = c.MaxBatchSize
	cfg.FlushInterval = c.FlushInterval
	cfg.SampleRate = c.SampleRate
	cfg.RetryTimes = c.RetryTimes
	cfg.RetryBaseDelay = c.RetryBaseDelay
	cfg.RequestTimeout = c.RequestTimeout
	cfg.UseBeacon = c.UseBeacon
	cfg.Headers = c.Headers
	if c.StorageKey != "" {
		cfg.StorageKey = c.StorageKey
	}
	return cfg
}

func (c Config) Validate() error {
	if c.ServerURL == "" {
		return invalid("ServerURL", "server url is required")
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("ServerURL", fmt.Sprintf("server url must be absolute, got %q", c.ServerURL))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return invalid("SampleRate", fmt.Sprintf("sample rate must be within [0, 1], got %v", c.SampleRate))
	}
	if c.MaxBatchSize < 1 {
		return invalid("MaxBatchSize", "max batch size must be at least 1")
	}
	if c.FlushInterval <= 0 {
		return invalid("FlushInterval", "flush interval must be positive")
	}
	if c.RetryTimes < 0 {
		return invalid("RetryTimes", "retry times must be non-negative")
	}
	return nil
}

func (c Config) transportOptions() transport.Options {
	return transport.Options{
		ServerURL:      c.ServerURL,
		MaxBatchSize:   c.MaxBatchSize,
		FlushInterval:  c.FlushInterval,
		RetryTimes:     c.RetryTimes,
		RetryBaseDelay: c.RetryBaseDelay,
		RequestTimeout: c.RequestTimeout,
		Headers:        c.Headers,
		UseBeacon:      c.UseBeacon,
	}
}

func invalid(field, message string) error {
	return apperrors.ErrValidation.
		WithDetail("field", field).
		WithDetail("message", message)
}
