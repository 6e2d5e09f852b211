package trace

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	kafka "github.com/segmentio/kafka-go"
)

type fakeKafkaWriter struct {
	sent    []kafka.Message
	sendErr error
	closed  bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_SendKeysByEventID(t *testing.T) {
	fake := &fakeKafkaWriter{}
	sink := &KafkaSink{writer: fake, log: slog.Default()}

	rec := Record{Header: Header{EventID: EventID{1, 2}}, Body: "x"}
	if err := sink.Send(context.Background(), rec); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("got %d messages, want 1", len(fake.sent))
	}
	if string(fake.sent[0].Key) != "1.2" {
		t.Fatalf("message key = %q, want 1.2", fake.sent[0].Key)
	}
}

func TestKafkaSink_SendSwallowsWriteErrors(t *testing.T) {
	fake := &fakeKafkaWriter{sendErr: errors.New("broker unreachable")}
	sink := &KafkaSink{writer: fake, log: slog.Default()}

	rec := Record{Header: Header{EventID: EventID{1}}}
	if err := sink.Send(context.Background(), rec); err != nil {
		t.Fatalf("Send should never return an error, got %v", err)
	}
}

func TestKafkaSink_CloseDelegatesToWriter(t *testing.T) {
	fake := &fakeKafkaWriter{}
	sink := &KafkaSink{writer: fake, log: slog.Default()}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Fatal("Close did not delegate to the underlying writer")
	}
}
