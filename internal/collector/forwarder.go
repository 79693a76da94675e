package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/codes"

	"ktrace/internal/config"
	"ktrace/internal/constants"
	"ktrace/internal/logger"
	"ktrace/pkg/metrics"
	"ktrace/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder publishes each record as one message keyed by event id.
type KafkaForwarder struct {
	writer messageWriter
	topic  string
	log    logger.Logger
}

func NewKafkaForwarder(cfg config.KafkaConfig, log logger.Logger) *KafkaForwarder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaForwarder(w, cfg.Topic, log)
}

func newKafkaForwarder(w messageWriter, topic string, log logger.Logger) *KafkaForwarder {
	if log == nil {
		log = logger.NopLogger()
	}
	return &KafkaForwarder{writer: w, topic: topic, log: log}
}

func (f *KafkaForwarder) Forward(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, span := tracing.StartProducerSpan(ctx, f.topic)
	defer span.End()

	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Topic:   f.topic,
			Key:     []byte(r.ID),
			Value:   body,
			Headers: tracing.InjectTraceContext(ctx, nil),
			Time:    r.ReceivedAt,
		})
	}

	start := time.Now()
	err := f.writer.WriteMessages(ctx, msgs...)
	metrics.ObserveKafkaWriteDuration(f.topic, time.Since(start))

	if err != nil {
		metrics.IncKafkaMessagesWritten(f.topic, "error", len(msgs))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}

	metrics.IncKafkaMessagesWritten(f.topic, "success", len(msgs))
	f.log.DebugwCtx(ctx, "Forwarded records", "topic", f.topic, "count", len(msgs))
	return nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
