package trace

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	headerAttrKey = attribute.Key("fabricmesh.header")
	bodyAttrKey   = attribute.Key("fabricmesh.body")
)

// Tracer emits one finished OTel span per traced event. The span's
// attributes carry the Section 6 header and body verbatim (as JSON),
// so the paired Exporter can reconstruct an NDJSON Record without
// needing to invert the event_id's derived SpanID back into a vector
// clock.
type Tracer struct {
	otel oteltrace.Tracer
}

// NewTracer wraps an OTel Tracer obtained from a TracerProvider.
func NewTracer(otel oteltrace.Tracer) *Tracer {
	return &Tracer{otel: otel}
}

// Emit starts and immediately ends a zero-duration span carrying h and
// body, handing it to the TracerProvider's span processor.
func (t *Tracer) Emit(ctx context.Context, h Header, body any) error {
	headerJSON, err := json.Marshal(h)
	if err != nil {
		return err
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return err
	}
	name := h.Function
	if name == "" {
		name = h.Module
	}
	_, span := t.otel.Start(ctx, name, oteltrace.WithAttributes(
		attribute.String(string(headerAttrKey), string(headerJSON)),
		attribute.String(string(bodyAttrKey), string(bodyJSON)),
	))
	span.End()
	return nil
}

// Exporter implements sdktrace.SpanExporter, turning each finished span
// back into the NDJSON Record shape Section 6 specifies and forwarding
// it to a Writer and a Sink.
type Exporter struct {
	w    *Writer
	sink Sink
	log  *slog.Logger
}

// NewExporter wires w and sink together; a nil sink becomes NopSink.
func NewExporter(w *Writer, sink Sink) *Exporter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Exporter{w: w, sink: sink, log: slog.With("component", "trace.exporter")}
}

func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		rec, ok := recordFromSpan(span)
		if !ok {
			continue
		}
		if err := e.w.Write(rec); err != nil {
			e.log.Error("write trace record", "err", err)
			continue
		}
		if err := e.sink.Send(ctx, rec); err != nil {
			e.log.Warn("sink trace record", "err", err)
		}
	}
	return nil
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	if err := e.sink.Close(); err != nil {
		e.log.Warn("close trace sink", "err", err)
	}
	return e.w.Close()
}

func recordFromSpan(span sdktrace.ReadOnlySpan) (Record, bool) {
	var headerJSON, bodyJSON string
	for _, attr := range span.Attributes() {
		switch attr.Key {
		case headerAttrKey:
			headerJSON = attr.Value.AsString()
		case bodyAttrKey:
			bodyJSON = attr.Value.AsString()
		}
	}
	if headerJSON == "" {
		return Record{}, false
	}
	var h Header
	if err := json.Unmarshal([]byte(headerJSON), &h); err != nil {
		return Record{}, false
	}
	var body any
	if bodyJSON != "" {
		_ = json.Unmarshal([]byte(bodyJSON), &body)
	}
	return Record{Header: h, Body: body}, true
}

// NewProvider builds a TracerProvider wired to exporter via a
// synchronous span processor, so every Emit call is durably written
// before Emit returns — appropriate for a trace file a NOC operator
// may be tailing live.
func NewProvider(exporter *Exporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
}
