package rack

import (
	"context"
	"testing"
	"time"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
	"fabricmesh/internal/ferr"
)

// twoCellBlueprint builds a minimal two-cell rack: cell 0 is a border
// cell with border port 2, cell 1 is interior, joined by one edge.
// Each cell has 3 port slots (0 reserved, 1 interior, 2 as configured).
func twoCellBlueprint(t *testing.T) *blueprint.Blueprint {
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
	return bp
}

func TestBuild_WiresEdgeAndSelectsNOCCell(t *testing.T) {
	bp := twoCellBlueprint(t)
	r, err := Build(bp, ca.QuenchSimple, false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	edge, _ := blueprint.NewEdge(0, 1)
	if _, ok := r.Link(edge); !ok {
		t.Fatal("expected a Link for the (0,1) edge")
	}

	if r.NOCCell() != r.Cell(0) {
		t.Fatal("NOC cell should be cell 0, the sole border cell")
	}
	if r.NOCPort() == nil {
		t.Fatal("NOC port should be set")
	}
	if r.NOCPort().No != 2 {
		t.Fatalf("NOC port = %d, want 2 (the only border port)", r.NOCPort().No)
	}

	// Cell 0's only non-border free interior port is port 1; that is
	// what the edge wiring should have claimed on cell 0's side.
	if r.Port(0, 1) == nil {
		t.Fatal("expected cell 0 port 1 to exist")
	}
}

func TestBuild_ExposesBlueprint(t *testing.T) {
	bp := twoCellBlueprint(t)
	r, err := Build(bp, ca.QuenchSimple, false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Blueprint() != bp {
		t.Fatal("Blueprint() should return the exact Blueprint passed to Build")
	}
}

func TestBuild_RejectsTooFewEdges(t *testing.T) {
	edge, _ := blueprint.NewEdge(0, 1)
	_ = edge
	bp, err := blueprint.New(blueprint.Params{
		NumCells:        3,
		NumPortsPerCell: 3,
		MinBorderCells:  1,
		BorderCellPorts: map[blueprint.CellNo][]blueprint.PortNo{0: {2}},
		Edges:           nil,
	})
	if err != nil {
		t.Fatalf("blueprint.New: %v", err)
	}

	_, err = Build(bp, ca.QuenchSimple, false, nil)
	if !ferr.IsValidation(err) {
		t.Fatalf("Build err = %v, want Validation (too few edges for 3 cells)", err)
	}
}

func TestBuild_NoBorderCellsFailsAtNOCSelection(t *testing.T) {
	// MinBorderCells: 0 lets blueprint.New succeed with no border cell
	// recorded at all, which Build must still reject before wiring the
	// NOC: there is nothing to attach it to.
	edge, _ := blueprint.NewEdge(0, 1)
	bp, err := blueprint.New(blueprint.Params{
		NumCells:        2,
		NumPortsPerCell: 3,
		MinBorderCells:  0,
		BorderCellPorts: nil,
		Edges:           []blueprint.Edge{edge},
	})
	if err != nil {
		t.Fatalf("blueprint.New: %v", err)
	}

	_, err = Build(bp, ca.QuenchSimple, false, nil)
	if !ferr.IsValidation(err) {
		t.Fatalf("Build err = %v, want Validation (no border cell)", err)
	}
}

func TestRun_StopCancelsAllGoroutines(t *testing.T) {
	bp := twoCellBlueprint(t)
	r, err := Build(bp, ca.QuenchSimple, false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	// Give the goroutines a moment to actually start before stopping.
	time.Sleep(10 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestScheduleBreak_UnknownEdgeIsANoop(t *testing.T) {
	bp := twoCellBlueprint(t)
	r, err := Build(bp, ca.QuenchSimple, false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bogus, _ := blueprint.NewEdge(0, 1)
	bogus.B = 99 // not a real cell, so this can't be a wired edge
	r.ScheduleBreak(bogus, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
}
