package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
	"fabricmesh/internal/config"
	"fabricmesh/internal/noc"
	"fabricmesh/internal/rack"
)

// twoCellRack builds the same minimal two-cell, one-edge shape
// internal/rack's own tests use, since that helper is unexported and
// package-private.
func twoCellRack(t *testing.T) *rack.Rack {
	t.Helper()
	edge, err := blueprint.NewEdge(0, 1)
	if err != nil {
		t.Fatalf("NewEdge: %v", err)
	}
	bp, err := blueprint.New(blueprint.Params{
		NumCells:        2,
		NumPortsPerCell: 3,
		MinBorderCells:  1,
		BorderCellPorts: map[blueprint.CellNo][]blueprint.PortNo{0: {2}},
		Edges:           []blueprint.Edge{edge},
	})
	if err != nil {
		t.Fatalf("blueprint.New: %v", err)
	}
	r, err := rack.Build(bp, ca.QuenchSimple, false, nil)
	if err != nil {
		t.Fatalf("rack.Build: %v", err)
	}
	return r
}

func newTestNOC(r *rack.Rack) *noc.NOC {
	toNOC, fromNOC, _ := r.NOCChannels()
	return noc.New(fromNOC, toNOC)
}

func TestRun_PrintRackAndCellAndForwardingTable(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)
	geometry := []config.Geometry{{Row: 0, Col: 0}, {Row: 0, Col: 1}}

	in := strings.NewReader("d\nc\n0\np\n0\nx\n")
	var out bytes.Buffer
	c := New(r, n, geometry, in, &out)

	if code := c.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}

	got := out.String()
	for _, want := range []string{"cell", "ports", "border ports", "port", "kind", "state", "tree"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing column %q\noutput:\n%s", want, got)
		}
	}
}

func TestRun_BreakLinkDisconnectsWiredEdge(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	edge, _ := blueprint.NewEdge(0, 1)
	link, ok := r.Link(edge)
	if !ok {
		t.Fatal("expected a Link for edge (0,1)")
	}
	if !link.Connected() {
		t.Fatal("link should start connected")
	}

	in := strings.NewReader("l\n0\n1\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	if code := c.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
	if link.Connected() {
		t.Fatal("link should be broken after the l command")
	}
	if !strings.Contains(out.String(), "broke link") {
		t.Errorf("expected a confirmation message, got:\n%s", out.String())
	}
}

func TestRun_BreakLinkSelfLoopReportsError(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	in := strings.NewReader("l\n0\n0\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	c.Run(context.Background())
	if !strings.Contains(out.String(), "self-loop") {
		t.Errorf("expected a self-loop error message, got:\n%s", out.String())
	}
}

func TestRun_DeployManifestReadsFileAndSubmits(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(`{"service":"demo"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	in := strings.NewReader("m\nDemoTree\n" + path + "\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	if code := c.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "submitted manifest") {
		t.Errorf("expected a submission confirmation, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "DemoTree") {
		t.Errorf("expected the tree name in the confirmation, got:\n%s", out.String())
	}
}

func TestRun_DeployManifestMissingFileReportsError(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	in := strings.NewReader("m\nDemoTree\n/no/such/file\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	c.Run(context.Background())
	if !strings.Contains(out.String(), "read manifest") {
		t.Errorf("expected a read-manifest error, got:\n%s", out.String())
	}
}

func TestRun_UnknownCommandWarns(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	in := strings.NewReader("q\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	c.Run(context.Background())
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("expected an unknown-command warning, got:\n%s", out.String())
	}
}

func TestRun_EOFExitsCleanly(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	in := strings.NewReader("")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	if code := c.Run(context.Background()); code != 0 {
		t.Fatalf("Run() on EOF = %d, want 0", code)
	}
}

func TestRun_ContextCancelStopsTheLoop(t *testing.T) {
	r := twoCellRack(t)
	n := newTestNOC(r)

	// An input stream that blocks forever would hang the test; instead
	// cancel before the first read so the ctx.Done() case fires first.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := strings.NewReader("d\nx\n")
	var out bytes.Buffer
	c := New(r, n, nil, in, &out)

	if code := c.Run(ctx); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
}
