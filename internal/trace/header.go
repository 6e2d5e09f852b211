// Package trace implements the Section 6 trace facility: a per-record
// header carrying a vector-clock event_id, an NDJSON file writer, a
// best-effort Kafka sink, and a custom OpenTelemetry SpanExporter that
// turns finished spans into NDJSON records.
package trace

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strings"

	otel "go.opentelemetry.io/otel/trace"
)

// TraceType distinguishes a routine record from a debug-only one.
type TraceType string

const (
	TypeTrace TraceType = "Trace"
	TypeDebug TraceType = "Debug"
)

// SchemaVersion is the NDJSON record schema this package writes.
const SchemaVersion = 1

// Repo is the module name stamped into every header.
const Repo = "fabricmesh"

// EventID is a vector clock: Fork appends a new ancestor component,
// Update increments the last component in place. Two events share a
// causal ancestor exactly when one's EventID is a prefix of the
// other's.
type EventID []uint32

func (id EventID) String() string {
	parts := make([]string, len(id))
	for i, v := range id {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ".")
}

func (id EventID) fork() EventID {
	next := make(EventID, len(id)+1)
	copy(next, id)
	return next
}

func (id EventID) update() EventID {
	if len(id) == 0 {
		return EventID{0}
	}
	next := make(EventID, len(id))
	copy(next, id)
	next[len(next)-1]++
	return next
}

// spanID derives an 8-byte OTel SpanID from the vector clock so every
// distinct EventID maps to a distinct span handle without this
// package having to track span identity separately.
func (id EventID) spanID() otel.SpanID {
	h := sha1.New()
	for _, v := range id {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		h.Write(b[:])
	}
	sum := h.Sum(nil)
	var sid otel.SpanID
	copy(sid[:], sum[:8])
	return sid
}

// Header is the per-record header the trace file and Kafka export
// both carry, matching the Section 6 NDJSON schema.
type Header struct {
	StartingEpoch    int64     `json:"starting_epoch"`
	Epoch            int64     `json:"epoch"`
	SpawningThreadID int       `json:"spawning_thread_id"`
	ThreadID         int       `json:"thread_id"`
	EventID          EventID   `json:"event_id"`
	TraceType        TraceType `json:"trace_type"`
	Module           string    `json:"module"`
	LineNo           int       `json:"line_no"`
	Function         string    `json:"function"`
	Format           string    `json:"format"`
	Repo             string    `json:"repo"`
	SchemaVersion    int       `json:"schema_version"`
}

// SpanContext derives an OTel SpanContext from h's event_id, carried
// under the process-wide traceID every header shares.
func (h Header) SpanContext(traceID otel.TraceID) otel.SpanContext {
	return otel.NewSpanContext(otel.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     h.EventID.spanID(),
		TraceFlags: otel.FlagsSampled,
	})
}

type ctxKey struct{}

// Fork derives a child header for a newly spawned goroutine, appending
// a vector-clock component to the parent's event_id and recording the
// parent's thread as spawning_thread_id. Call this at every goroutine
// spawn point.
func Fork(ctx context.Context, module string) context.Context {
	parent, _ := fromContext(ctx)
	child := Header{
		StartingEpoch:    startingEpochMicros(),
		Epoch:            nowMicros(),
		SpawningThreadID: parent.ThreadID,
		ThreadID:         currentThreadID(),
		EventID:          parent.EventID.fork(),
		TraceType:        TypeTrace,
		Module:           module,
		Repo:             Repo,
		SchemaVersion:    SchemaVersion,
	}
	return context.WithValue(ctx, ctxKey{}, &child)
}

// Update advances the header carried on ctx for entry into a traced
// function: it bumps the vector clock's last component and restamps
// epoch, function, and line number. It returns both the updated
// context and the header that was just stamped, for immediate use by
// the caller without a second lookup.
func Update(ctx context.Context, function string, line int) (context.Context, Header) {
	cur, _ := fromContext(ctx)
	next := cur
	next.Epoch = nowMicros()
	next.EventID = cur.EventID.update()
	next.Function = function
	next.LineNo = line
	return context.WithValue(ctx, ctxKey{}, &next), next
}

func fromContext(ctx context.Context) (Header, bool) {
	v, ok := ctx.Value(ctxKey{}).(*Header)
	if !ok || v == nil {
		return Header{Repo: Repo, SchemaVersion: SchemaVersion, TraceType: TypeTrace}, false
	}
	return *v, true
}

// FromContext returns the header carried on ctx, or, if ctx has never
// been forked, a root header with only Repo, SchemaVersion and
// TraceType set (its EventID is empty).
func FromContext(ctx context.Context) Header {
	h, _ := fromContext(ctx)
	return h
}
