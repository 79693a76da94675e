// Package errormonitor captures failures from application code and reports
// them as error events.
package errormonitor

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"ktrace/internal/logger"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/metrics"
	"ktrace/pkg/models"
)

// Reporter is the only tracker capability the monitor needs.
type Reporter interface {
	TrackError(err error, extra map[string]interface{})
}

type Config struct {
	// IgnoreErrors are regular expressions matched against the error message.
	IgnoreErrors []string
	// CaptureHTTP enables reporting from the RoundTripper returned by Transport.
	CaptureHTTP bool
	// CapturePanics enables reporting from Recover and Go.
	CapturePanics bool
}

func DefaultConfig() Config {
	return Config{CaptureHTTP: true, CapturePanics: true}
}

type Monitor struct {
	reporter Reporter
	cfg      Config
	ignore   []*regexp.Regexp
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Monitor)

func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

func WithClock(fn func() time.Time) Option {
	return func(m *Monitor) { m.now = fn }
}

func New(reporter Reporter, cfg Config, opts ...Option) (*Monitor, error) {
	if reporter == nil {
		return nil, apperrors.ErrValidation.WithDetail("message", "reporter is required")
	}

	ignore := make([]*regexp.Regexp, 0, len(cfg.IgnoreErrors))
	for _, pattern := range cfg.IgnoreErrors {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ignore = append(ignore, re)
	}

	m := &Monitor{
		reporter: reporter,
		cfg:      cfg,
		ignore:   ignore,
		log:      logger.NopLogger(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *Monitor) shouldIgnore(message string) bool {
	if message == "" {
		return false
	}
	for _, re := range m.ignore {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// ReportError reports info unless its message matches an ignore pattern.
// It returns whether the error was reported.
func (m *Monitor) ReportError(info models.ErrorInfo) bool {
	if info.Category == "" {
		info.Category = models.ErrorCategoryManual
	}
	if m.shouldIgnore(info.Message) {
		metrics.IncErrorCaptured(info.Category, "ignored")
		return false
	}

	m.reporter.TrackError(info, nil)
	metrics.IncErrorCaptured(info.Category, "reported")
	m.log.Debugw("Error reported", "category", info.Category, "name", info.Name)
	return true
}

// CaptureError reports a plain error with extra as its context.
func (m *Monitor) CaptureError(err error, extra map[string]interface{}) bool {
	if err == nil {
		return false
	}

	var info models.ErrorInfo
	if apperrors.As(err, &info) {
		return m.ReportError(info)
	}

	return m.ReportError(models.ErrorInfo{
		Name:     fmt.Sprintf("%T", err),
		Message:  err.Error(),
		Stack:    apperrors.StackTrace(err),
		Context:  extra,
		Category: models.ErrorCategoryManual,
	})
}

// Recover reports a panic in the calling goroutine and swallows it. It must
// be deferred directly:
//
//	defer monitor.Recover()
func (m *Monitor) Recover() {
	r := recover()
	if r == nil {
		return
	}
	m.reportPanic(r)
}

// Go runs fn in a new goroutine whose panics are reported instead of
// crashing the process.
func (m *Monitor) Go(fn func()) {
	go func() {
		defer m.Recover()
		fn()
	}()
}

func (m *Monitor) reportPanic(r interface{}) {
	if !m.cfg.CapturePanics {
		panic(r)
	}

	err := apperrors.RecoverPanic(r)
	m.log.Errorw("Recovered panic", "panic", fmt.Sprint(r))
	m.ReportError(models.ErrorInfo{
		Name:     "Panic",
		Message:  fmt.Sprint(r),
		Stack:    apperrors.StackTrace(err),
		Category: models.ErrorCategoryPanic,
	})
}

// Transport wraps base so failed requests are reported. A nil base uses
// http.DefaultTransport.
func (m *Monitor) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !m.cfg.CaptureHTTP {
		return base
	}
	return &roundTripper{base: base, monitor: m}
}

// Client returns an *http.Client using Transport(nil).
func (m *Monitor) Client(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: m.Transport(nil)}
}

type roundTripper struct {
	base    http.RoundTripper
	monitor *Monitor
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := rt.monitor.now()
	resp, err := rt.base.RoundTrip(req)
	duration := rt.monitor.now().Sub(start).Milliseconds()

	url := req.URL.String()
	if err != nil {
		rt.monitor.ReportError(models.ErrorInfo{
			Name:     "HttpRequestError",
			Message:  fmt.Sprintf("request failed %s", url),
			Category: models.ErrorCategoryHTTPRequest,
			Context: map[string]interface{}{
				"url":      url,
				"method":   req.Method,
				"duration": duration,
				"error":    err.Error(),
			},
		})
		return resp, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		rt.monitor.ReportError(models.ErrorInfo{
			Name:     "HttpError",
			Message:  fmt.Sprintf("HTTP error %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Category: models.ErrorCategoryHTTP,
			Context: map[string]interface{}{
				"url":      url,
				"method":   req.Method,
				"status":   resp.StatusCode,
				"duration": duration,
			},
		})
	}
	return resp, nil
}
