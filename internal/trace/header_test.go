package trace

import (
	"context"
	"testing"

	otel "go.opentelemetry.io/otel/trace"
)

func TestFork_AppendsVectorClockComponent(t *testing.T) {
	ctx := context.Background()
	ctx = Fork(ctx, "root")
	root := FromContext(ctx)
	if len(root.EventID) != 1 {
		t.Fatalf("root EventID = %v, want length 1", root.EventID)
	}

	child := Fork(ctx, "child")
	childHeader := FromContext(child)
	if len(childHeader.EventID) != 2 {
		t.Fatalf("child EventID = %v, want length 2", childHeader.EventID)
	}
	if childHeader.SpawningThreadID != root.ThreadID {
		t.Fatalf("child SpawningThreadID = %d, want %d", childHeader.SpawningThreadID, root.ThreadID)
	}
}

func TestUpdate_IncrementsLastComponent(t *testing.T) {
	ctx := Fork(context.Background(), "mod")
	ctx, h1 := Update(ctx, "fnA", 10)
	if len(h1.EventID) != 1 || h1.EventID[0] != 1 {
		t.Fatalf("first Update EventID = %v, want [1]", h1.EventID)
	}

	_, h2 := Update(ctx, "fnB", 20)
	if len(h2.EventID) != 1 || h2.EventID[0] != 2 {
		t.Fatalf("second Update EventID = %v, want [2]", h2.EventID)
	}
	if h2.Function != "fnB" || h2.LineNo != 20 {
		t.Fatalf("Update did not restamp function/line: %+v", h2)
	}
}

func TestFromContext_UnforkedReturnsRootHeader(t *testing.T) {
	h := FromContext(context.Background())
	if len(h.EventID) != 0 {
		t.Fatalf("unforked EventID = %v, want empty", h.EventID)
	}
	if h.Repo != Repo {
		t.Fatalf("Repo = %q, want %q", h.Repo, Repo)
	}
}

func TestEventID_String(t *testing.T) {
	id := EventID{1, 2, 3}
	if got, want := id.String(), "1.2.3"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestEventID_SpanIDDeterministic(t *testing.T) {
	a := EventID{1, 2}
	b := EventID{1, 2}
	c := EventID{1, 3}
	if a.spanID() != b.spanID() {
		t.Fatal("identical EventIDs produced different SpanIDs")
	}
	if a.spanID() == c.spanID() {
		t.Fatal("different EventIDs produced the same SpanID")
	}
}

func TestHeader_SpanContextCarriesDerivedSpanID(t *testing.T) {
	traceID := otel.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	h := Header{EventID: EventID{5}}
	sc := h.SpanContext(traceID)
	if sc.SpanID() != h.EventID.spanID() {
		t.Fatal("SpanContext SpanID does not match EventID.spanID()")
	}
	if sc.TraceID() != traceID {
		t.Fatal("SpanContext TraceID mismatch")
	}
}
