package trace

import "context"

// Sink receives a copy of every Record written to the trace file, for
// export to a secondary system. Send failures must be logged and
// swallowed by implementations — Section 7 places this export in the
// best-effort IO class, never fatal to the simulation it observes.
type Sink interface {
	Send(ctx context.Context, rec Record) error
	Close() error
}

// NopSink discards every record; used when no kafka_server is configured.
type NopSink struct{}

func (NopSink) Send(context.Context, Record) error { return nil }
func (NopSink) Close() error                        { return nil }
