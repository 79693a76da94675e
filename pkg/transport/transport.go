// Package transport batches queued events and delivers them to the
// collector, one flight at a time.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ktrace/internal/constants"
	"ktrace/internal/logger"
	"ktrace/pkg/metrics"
	"ktrace/pkg/models"
	"ktrace/pkg/queue"
	"ktrace/pkg/retry"
	"ktrace/pkg/tracing"
)

type Option func(*Transport)

func WithSender(s Sender) Option {
	return func(t *Transport) { t.sender = s }
}

func WithBeacon(b Beacon) Option {
	return func(t *Transport) { t.beacon = b }
}

func WithEnvironment(e Environment) Option {
	return func(t *Transport) { t.env = e }
}

func WithLogger(l logger.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// Transport owns a queue exclusively. Flushes are single-flight across both
// delivery strategies; pushes continue while a flight is in progress. The one
// exception is the forced beacon at teardown, which may run beside a retry
// flight that started earlier.
type Transport struct {
	opts     Options
	endpoint string
	queue    *queue.Queue
	sender   Sender
	beacon   Beacon
	env      Environment
	log      logger.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	flights int
	// idle is closed when flights drops back to zero; nil while idle.
	idle    chan struct{}
	started bool
	closing bool
	closed  bool
	drained bool
	stop    chan struct{}
	ticker  sync.WaitGroup
}

func New(q *queue.Queue, opts Options, options ...Option) *Transport {
	opts = opts.withDefaults()
	opts.ServerURL = NormalizeURL(opts.ServerURL)

	t := &Transport{
		opts:     opts,
		endpoint: Endpoint(opts.ServerURL),
		queue:    q,
		env:      AlwaysOnline,
		log:      logger.NopLogger(),
		tracer:   tracing.GetTracer("ktrace-transport"),
		stop:     make(chan struct{}),
	}
	for _, o := range options {
		o(t)
	}
	if t.sender == nil {
		t.sender = NewHTTPSender(nil)
	}
	if t.beacon == nil {
		t.beacon = NewHTTPBeacon(nil)
	}
	return t
}

// Start launches the periodic flush. Calling it twice is a no-op.
func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.closed {
		return
	}
	t.started = true

	t.ticker.Add(1)
	go t.run()
}

func (t *Transport) run() {
	defer t.ticker.Done()

	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.Flush(false)
		}
	}
}

// Send enqueues e and flushes once the pending count reaches MaxBatchSize.
// Once closing, the size trigger is off and pending events wait for the
// final forced flush.
func (t *Transport) Send(e models.Event) {
	n := t.queue.Push(e)

	t.mu.Lock()
	closing := t.closing
	t.mu.Unlock()

	if !closing && n >= t.opts.MaxBatchSize {
		t.Flush(false)
	}
}

// BeginClose switches the transport into closing mode: size-triggered
// flushes stop so the events recorded during teardown leave in the forced
// beacon batch. Close implies it.
func (t *Transport) BeginClose() {
	t.mu.Lock()
	t.closing = true
	t.mu.Unlock()
}

// Flush hands every pending event to a new delivery flight. It returns false
// when the queue is empty or a flight is already running. force selects the
// beacon strategy. In closing mode only forced flushes run, and they do not
// wait for a running flight.
func (t *Transport) Flush(force bool) bool {
	t.mu.Lock()
	busy := t.flights > 0 && !(force && t.closing)
	if t.drained || busy || (t.closing && !force) {
		t.mu.Unlock()
		return false
	}
	batch := t.queue.Drain()
	if len(batch) == 0 {
		t.mu.Unlock()
		return false
	}
	if t.flights == 0 {
		t.idle = make(chan struct{})
	}
	t.flights++
	t.mu.Unlock()

	go t.deliver(batch, force)
	return true
}

// Sending reports whether a flight is in progress.
func (t *Transport) Sending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flights > 0
}

// Wait blocks until the flights running at the time of the call have
// finished. It is safe to call concurrently with Flush.
func (t *Transport) Wait() {
	<-t.idleChan()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (t *Transport) idleChan() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idle == nil {
		return closedChan
	}
	return t.idle
}

func (t *Transport) Queue() *queue.Queue {
	return t.queue
}

func (t *Transport) Endpoint() string {
	return t.endpoint
}

// Close stops the scheduler, forces a final beacon flush of everything
// pending and waits for outstanding flights until ctx is done. In-flight
// retries are not cancelled.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.closing = true
	close(t.stop)
	t.mu.Unlock()

	t.ticker.Wait()
	t.Flush(true)

	t.mu.Lock()
	t.drained = true
	t.mu.Unlock()

	select {
	case <-t.idleChan():
		return nil
	case <-ctx.Done():
		t.log.Warnw("Transport closed with delivery still in flight", "pending", len(t.queue.Snapshot()))
		return ctx.Err()
	}
}

func (t *Transport) strategy(force bool) string {
	useBeacon := force || (t.opts.UseBeacon && !t.env.Online())
	if useBeacon && t.env.SupportsBeacon() {
		return constants.StrategyBeacon
	}
	return constants.StrategyRetry
}

func (t *Transport) deliver(batch []models.Event, force bool) {
	defer t.finish()

	strategy := t.strategy(force)

	ctx, span := t.tracer.Start(context.Background(), "ktrace.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ktrace.strategy", strategy),
			attribute.Int("ktrace.batch_size", len(batch)),
		))
	defer span.End()

	body, err := json.Marshal(batch)
	if err == nil {
		switch strategy {
		case constants.StrategyBeacon:
			err = t.sendBeacon(ctx, body)
		default:
			err = t.sendWithRetry(ctx, body)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.queue.Requeue(batch)
		metrics.IncFlush(strategy, "failure")
		t.log.Warnw("Delivery failed, batch returned to queue",
			"strategy", strategy,
			"batch_size", len(batch),
			"error", err,
		)
		return
	}

	removed := t.queue.Reconcile(models.EventIDs(batch))
	metrics.IncFlush(strategy, "success")
	t.log.Debugw("Batch delivered", "strategy", strategy, "batch_size", len(batch), "reconciled", removed)
}

func (t *Transport) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flights--
	if t.flights == 0 {
		close(t.idle)
		t.idle = nil
	}
}

func (t *Transport) sendBeacon(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, constants.BeaconTimeout)
	defer cancel()

	start := time.Now()
	err := t.beacon.Beacon(ctx, t.endpoint, body, t.opts.Headers)
	metrics.ObserveDelivery(constants.StrategyBeacon, status(err), time.Since(start))
	return err
}

func (t *Transport) sendWithRetry(ctx context.Context, body []byte) error {
	policy := retry.Policy{
		MaxRetries: t.opts.RetryTimes,
		BaseDelay:  t.opts.RetryBaseDelay,
	}

	_, err := retry.RetryWithCallback(ctx, policy,
		func(attempt int) error {
			attemptCtx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
			defer cancel()

			start := time.Now()
			err := t.sender.Send(attemptCtx, t.endpoint, body, t.opts.Headers)
			metrics.ObserveDelivery(constants.StrategyRetry, status(err), time.Since(start))
			return err
		},
		func(attempt int, err error, next time.Duration) {
			t.log.Debugw("Delivery attempt failed, retrying",
				"attempt", attempt,
				"next_delay", next,
				"error", err,
			)
		},
	)
	return err
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
