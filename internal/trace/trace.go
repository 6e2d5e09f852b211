package trace

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options collects the trace subsystem's construction inputs, derived
// from config.Config's output_dir_name/output_file_name/kafka_server/
// kafka_topic/trace_options keys.
type Options struct {
	OutputDir   string
	OutputFile  string
	KafkaServer string
	KafkaTopic  string
	NTPPool     string
}

// System bundles every live dependency Emit needs. Close flushes and
// releases the trace file handle and, if configured, the Kafka writer.
type System struct {
	Tracer   *Tracer
	Provider *sdktrace.TracerProvider
}

// New opens the trace file, wires up the configured Sink (Kafka if
// kafka_server/kafka_topic are both set, otherwise a no-op), and
// calibrates the process-wide starting epoch against NTP — logging,
// never failing, if the NTP query itself fails.
func New(opts Options) (*System, error) {
	w, err := NewWriter(opts.OutputDir, opts.OutputFile)
	if err != nil {
		return nil, err
	}

	var sink Sink = NopSink{}
	if opts.KafkaServer != "" && opts.KafkaTopic != "" {
		sink = NewKafkaSink(opts.KafkaServer, opts.KafkaTopic)
	}

	exporter := NewExporter(w, sink)
	provider := NewProvider(exporter)
	tracer := NewTracer(provider.Tracer(Repo))

	epoch, err := CalibrateEpoch(opts.NTPPool)
	if err != nil {
		slog.Warn("ntp calibration failed, using local clock", "err", err)
	}
	Init(epoch)

	return &System{Tracer: tracer, Provider: provider}, nil
}

// Close shuts down the TracerProvider, which in turn shuts down the
// Exporter (closing the Sink and the trace file).
func (s *System) Close(ctx context.Context) error {
	return s.Provider.Shutdown(ctx)
}
