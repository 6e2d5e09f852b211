package trace

import (
	"context"
	"encoding/json"
	"log/slog"

	kafka "github.com/segmentio/kafka-go"
)

// kafkaWriter is the slice of *kafka.Writer this package actually
// uses, narrowed to a fake-able interface for tests.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink posts each Record to a Kafka topic, keyed by event_id so
// consumers can reconstruct causal order. Section 1 places the Kafka
// export itself out of core scope; this is the swappable adapter
// behind the Sink contract, and delivery is best-effort — Send never
// returns an error; marshal, write and delivery failures are logged.
type KafkaSink struct {
	writer kafkaWriter
	log    *slog.Logger
}

// NewKafkaSink does not dial up front — kafka-go's Writer connects
// lazily on first write — so an unreachable broker only ever surfaces
// as a logged delivery failure, never a startup error. The Writer is
// asynchronous, so delivery failures reach the log through its
// Completion callback rather than through WriteMessages.
func NewKafkaSink(server, topic string) *KafkaSink {
	log := slog.With("component", "trace.kafka")
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(server),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(_ []kafka.Message, err error) {
				if err != nil {
					log.Warn("kafka trace export failed", "err", err)
				}
			},
		},
		log: log,
	}
}

func (k *KafkaSink) Send(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		k.log.Warn("marshal trace record for kafka", "err", err)
		return nil
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Header.EventID.String()),
		Value: body,
	}); err != nil {
		k.log.Warn("kafka trace export failed", "err", err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
