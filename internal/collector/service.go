package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"ktrace/internal/logger"
	"ktrace/pkg/circuitbreaker"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/metrics"
	"ktrace/pkg/models"
)

type Service struct {
	sink      Sink
	forwarder Forwarder
	breaker   *circuitbreaker.Wrapper
	log       logger.Logger
	now       func() time.Time
}

type ServiceOption func(*Service)

// WithForwarder publishes every accepted batch after it has been stored.
// Forwarding failures are logged and do not fail the request.
func WithForwarder(f Forwarder) ServiceOption {
	return func(s *Service) { s.forwarder = f }
}

// WithBreaker guards sink writes; while open, ingest fails fast with 503.
func WithBreaker(w *circuitbreaker.Wrapper) ServiceOption {
	return func(s *Service) { s.breaker = w }
}

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) { s.now = fn }
}

func NewService(sink Sink, opts ...ServiceOption) *Service {
	s := &Service{
		sink: sink,
		log:  logger.NopLogger(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) SinkName() string {
	return s.sink.Name()
}

// Ingest validates a batch, stamps it with the receive time and stores it.
func (s *Service) Ingest(ctx context.Context, events []models.Event) ([]Record, error) {
	if err := models.ValidateBatch(events); err != nil {
		metrics.AddCollectorEvents(s.sink.Name(), "rejected", len(events))
		return nil, apperrors.ErrValidation.WithCause(err).WithDetail("message", err.Error())
	}

	receivedAt := s.now().UTC()
	records := make([]Record, len(events))
	for i, e := range events {
		records[i] = Record{Event: e, ReceivedAt: receivedAt}
	}

	start := time.Now()
	err := s.append(ctx, records)
	metrics.ObserveSinkWrite(s.sink.Name(), time.Since(start))
	if err != nil {
		metrics.AddCollectorEvents(s.sink.Name(), "error", len(records))
		return nil, err
	}

	metrics.AddCollectorEvents(s.sink.Name(), "stored", len(records))
	metrics.ObserveCollectorBatch(len(records))

	s.log.InfowCtx(ctx, "Received tracking data",
		"count", len(records),
		"first_event", records[0].Name,
		"session_id", records[0].SessionID,
	)

	if s.forwarder != nil {
		if err := s.forwarder.Forward(ctx, records); err != nil {
			s.log.WarnwCtx(ctx, "Failed to forward records", "error", err, "count", len(records))
		}
	}

	return records, nil
}

func (s *Service) append(ctx context.Context, records []Record) error {
	if s.breaker == nil {
		return s.sink.Append(ctx, records)
	}

	err := s.breaker.Run(ctx, func() error {
		return s.sink.Append(ctx, records)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.ErrServiceUnavailable.
			WithCause(err).
			WithDetail("message", fmt.Sprintf("%s sink unavailable", s.sink.Name()))
	}
	return err
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	records, err := s.sink.List(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *Service) Clear(ctx context.Context) error {
	if err := s.sink.Clear(ctx); err != nil {
		return err
	}
	s.log.InfowCtx(ctx, "Cleared collected data", "sink", s.sink.Name())
	return nil
}

// Close releases the forwarder and the sink.
func (s *Service) Close() error {
	var errs []error
	if s.forwarder != nil {
		if err := s.forwarder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("forwarder close error: %w", err))
		}
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sink close error: %w", err))
	}
	return errors.Join(errs...)
}
