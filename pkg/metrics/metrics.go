package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTrackedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktrace_events_tracked_total",
			Help: "Total number of events offered to the tracker (count)",
		},
		[]string{"status"},
	)

	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ktrace_queue_size",
			Help: "Current number of undelivered events, pending plus in-flight (count)",
		},
		[]string{"key"},
	)

	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktrace_flushes_total",
			Help: "Total number of flush cycles by delivery strategy and outcome (count)",
		},
		[]string{"strategy", "result"},
	)

	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktrace_delivery_attempts_total",
			Help: "Total number of HTTP delivery attempts (count)",
		},
		[]string{"strategy", "status"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ktrace_delivery_duration_ms",
			Help:    "Duration of a single delivery attempt in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"strategy"},
	)

	EventsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ktrace_events_delivered_total",
			Help: "Total number of events reconciled after a successful delivery (count)",
		},
	)

	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktrace_storage_errors_total",
			Help: "Total number of persistent storage failures (count)",
		},
		[]string{"backend", "operation"},
	)

	ErrorsCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktrace_errors_captured_total",
			Help: "Total number of errors captured by the error monitor (count)",
		},
		[]string{"category", "status"},
	)

	CollectorEventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_events_received_total",
			Help: "Total number of events accepted by the collector (count)",
		},
		[]string{"sink", "status"},
	)

	CollectorBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_batch_size",
			Help:    "Number of events per collected batch (count)",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
		},
	)

	SinkWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_sink_write_duration_ms",
			Help:    "Duration of sink writes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"sink"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic", "status"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

// RegisterTrackerMetrics is called by binaries that embed a tracker. Library
// users that never register still get working (unexported) collectors.
func RegisterTrackerMetrics() {
	prometheus.MustRegister(EventsTrackedTotal)
	prometheus.MustRegister(QueueSize)
	prometheus.MustRegister(FlushesTotal)
	prometheus.MustRegister(DeliveryAttemptsTotal)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(EventsDeliveredTotal)
	prometheus.MustRegister(StorageErrorsTotal)
	prometheus.MustRegister(ErrorsCapturedTotal)
}

func RegisterCollectorMetrics() {
	prometheus.MustRegister(CollectorEventsReceivedTotal)
	prometheus.MustRegister(CollectorBatchSize)
	prometheus.MustRegister(SinkWriteDuration)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncEventsTracked(status string) {
	EventsTrackedTotal.WithLabelValues(status).Inc()
}

func SetQueueSize(key string, size int) {
	QueueSize.WithLabelValues(key).Set(float64(size))
}

func IncFlush(strategy, result string) {
	FlushesTotal.WithLabelValues(strategy, result).Inc()
}

func ObserveDelivery(strategy, status string, duration time.Duration) {
	DeliveryAttemptsTotal.WithLabelValues(strategy, status).Inc()
	DeliveryDuration.WithLabelValues(strategy).Observe(float64(duration.Milliseconds()))
}

func AddEventsDelivered(n int) {
	EventsDeliveredTotal.Add(float64(n))
}

func IncStorageError(backend, operation string) {
	StorageErrorsTotal.WithLabelValues(backend, operation).Inc()
}

func IncErrorCaptured(category, status string) {
	ErrorsCapturedTotal.WithLabelValues(category, status).Inc()
}

func AddCollectorEvents(sink, status string, n int) {
	CollectorEventsReceivedTotal.WithLabelValues(sink, status).Add(float64(n))
}

func ObserveCollectorBatch(n int) {
	CollectorBatchSize.Observe(float64(n))
}

func ObserveSinkWrite(sink string, duration time.Duration) {
	SinkWriteDuration.WithLabelValues(sink).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesWritten(topic, status string, n int) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic, status).Add(float64(n))
}

func ObserveKafkaWriteDuration(topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}
