package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/ntp"
)

func TestSystem_EmitWritesNDJSONRecord(t *testing.T) {
	orig := ntpQuery
	defer func() { ntpQuery = orig }()
	ntpQuery = func(host string) (*ntp.Response, error) {
		return &ntp.Response{ClockOffset: 0}, nil
	}
	startingEpoch.Store(0)

	dir := t.TempDir()
	sys, err := New(Options{OutputDir: dir, OutputFile: "trace.ndjson"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := Fork(context.Background(), "pe")
	_, h := Update(ctx, "forward", 42)
	h.Format = "ait_transition"
	h.TraceType = TypeDebug

	if err := sys.Tracer.Emit(ctx, h, map[string]any{"from": "Normal", "to": "Init"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sys.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "trace.ndjson"))
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected at least one NDJSON line")
	}
	var rec Record
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Header.Function != "forward" {
		t.Fatalf("Header.Function = %q, want forward", rec.Header.Function)
	}
	if rec.Header.Format != "ait_transition" {
		t.Fatalf("Header.Format = %q, want ait_transition", rec.Header.Format)
	}
}

func TestSystem_NoKafkaConfigUsesNopSink(t *testing.T) {
	orig := ntpQuery
	defer func() { ntpQuery = orig }()
	ntpQuery = func(host string) (*ntp.Response, error) {
		return &ntp.Response{ClockOffset: 0}, nil
	}
	startingEpoch.Store(0)

	dir := t.TempDir()
	sys, err := New(Options{OutputDir: dir, OutputFile: "trace.ndjson"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sys.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
