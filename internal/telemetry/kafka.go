package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes events as JSON messages keyed by request id.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
}

const kafkaBatchTimeout = 10 * time.Millisecond

// NewKafkaWriter returns an async writer for the telemetry topic. WriteMessages
// only enqueues; delivery errors surface in the Completion callback.
func NewKafkaWriter(brokers []string, topic string, timeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           timeout,
		BatchSize:              1,
		BatchTimeout:           kafkaBatchTimeout,
		Async:                  true,
		Completion:             logDeliveryErrors,
	}
}

func logDeliveryErrors(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		log.Printf("WARN: [telemetry] kafka delivery failed request_id=%s: %v", m.Key, err)
	}
}

func NewKafkaSink(writer messageWriter, timeout time.Duration) *KafkaSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &KafkaSink{writer: writer, timeout: timeout}
}

// Emit detaches from the request context so a client disconnect does not drop the event.
func (s *KafkaSink) Emit(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: [telemetry] marshal event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: body,
		Time:  time.Now().UTC(),
	}); err != nil {
		log.Printf("WARN: [telemetry] kafka publish failed request_id=%s: %v", ev.RequestID, err)
	}
}
