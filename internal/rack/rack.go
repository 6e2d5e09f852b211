// Package rack builds the top-level owner of every cell and link in one
// datacenter instance (section 4.H): it walks a Blueprint, builds
// a NalCell per cell (border cells first), wires one Link per edge by
// claiming a free interior port on each endpoint, and selects the
// border cell that connects to the NOC.
package rack

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
	"fabricmesh/internal/check"
	"fabricmesh/internal/fabric"
	"fabricmesh/internal/ferr"
	"fabricmesh/internal/nalcell"
	"fabricmesh/internal/trace"
)

// Rack owns every NalCell and Link built from a Blueprint, plus the NOC
// uplink port selected during construction.
type Rack struct {
	bp *blueprint.Blueprint

	cells map[blueprint.CellNo]*nalcell.NalCell
	links map[blueprint.Edge]*fabric.Link

	nocCell    *nalcell.NalCell
	nocPort    *fabric.Port
	nocOutbox  chan fabric.Packet // the port's toLink: the port writes here, the NOC reads
	nocInbox   chan fabric.Packet // the port's fromLink: the NOC writes here, the port reads
	nocStatus  chan fabric.Status

	continueOnError bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	log *slog.Logger
}

// Build runs the construction algorithm in section 4.H: validate,
// build border cells then interior cells, wire every edge, and select
// the NOC border cell. continueOnError is passed through to every
// NalCell's supervised-run policy. tracer may be nil, in which case
// every Port built logs AIT transitions but emits no trace records for
// them. Any failure here is fatal — the caller should not retry Build
// on the same Blueprint.
func Build(bp *blueprint.Blueprint, quench ca.Quench, continueOnError bool, tracer *trace.Tracer) (*Rack, error) {
	if bp.NumCells() < 1 {
		return nil, ferr.Validation("rack.Build", "CellCount: num_cells must be >= 1")
	}
	if len(bp.Edges()) < bp.NumCells()-1 {
		return nil, ferr.Validationf("rack.Build", "CellCount: have %d edges, need >= %d for %d cells", len(bp.Edges()), bp.NumCells()-1, bp.NumCells())
	}

	r := &Rack{
		bp:              bp,
		cells:           make(map[blueprint.CellNo]*nalcell.NalCell),
		links:           make(map[blueprint.Edge]*fabric.Link),
		continueOnError: continueOnError,
		log:             slog.With("component", "rack"),
	}

	border := bp.BorderCells()
	sort.Slice(border, func(i, j int) bool { return border[i].No < border[j].No })
	for _, spec := range border {
		cell, err := nalcell.New(spec, quench, tracer)
		if err != nil {
			return nil, ferr.Chain("rack.Build", err)
		}
		r.cells[spec.No] = cell
	}

	var interior []blueprint.CellSpec
	for _, spec := range bp.Cells() {
		if spec.Type != blueprint.Border {
			interior = append(interior, spec)
		}
	}
	sort.Slice(interior, func(i, j int) bool { return interior[i].No < interior[j].No })
	for _, spec := range interior {
		cell, err := nalcell.New(spec, quench, tracer)
		if err != nil {
			return nil, ferr.Chain("rack.Build", err)
		}
		r.cells[spec.No] = cell
	}

	for _, e := range bp.Edges() {
		if err := r.wireEdge(e); err != nil {
			return nil, ferr.Chain("rack.Build", err)
		}
	}

	if len(border) == 0 {
		return nil, ferr.Validation("rack.Build", "BorderCellCount: no border cell to attach the NOC to")
	}
	nocCellSpec := border[0]
	check.Assert(nocCellSpec.Type == blueprint.Border, "NOC-adjacent cell must be classified Border")
	nocCell := r.cells[nocCellSpec.No]
	port, toLink, fromLink, status, err := nocCell.FreeBorderPort()
	if err != nil {
		return nil, ferr.Chain("rack.Build", err)
	}
	r.nocCell = nocCell
	r.nocPort = port
	r.nocOutbox = toLink
	r.nocInbox = fromLink
	r.nocStatus = status

	return r, nil
}

// wireEdge claims a free interior port on each endpoint, builds the two
// channel-backed directions and a Link over them, and stores the Link.
func (r *Rack) wireEdge(e blueprint.Edge) error {
	cellA, ok := r.cells[e.A]
	if !ok {
		return ferr.Validationf("rack.wireEdge", "CellCount: edge %s references unknown cell %d", e, e.A)
	}
	cellB, ok := r.cells[e.B]
	if !ok {
		return ferr.Validationf("rack.wireEdge", "CellCount: edge %s references unknown cell %d", e, e.B)
	}

	portA, aToLink, aFromLink, aStatus, err := cellA.FreeInteriorPort()
	if err != nil {
		return ferr.Chain("rack.wireEdge", err)
	}
	portB, bToLink, bFromLink, bStatus, err := cellB.FreeInteriorPort()
	if err != nil {
		return ferr.Chain("rack.wireEdge", err)
	}

	// aToLink/bFromLink form the A->B direction; bToLink/aFromLink form
	// B->A. The Link relays each direction independently.
	link := fabric.NewLink(e, aToLink, bToLink, bFromLink, aFromLink, aStatus, bStatus)
	r.links[e] = link
	r.log.Info("wired edge", "edge", e, "portA", portA.ID(), "portB", portB.ID())
	return nil
}

// Port returns the live Port for a given cell/port pair, or nil if
// either the cell or the port is unknown.
func (r *Rack) Port(cell blueprint.CellNo, no blueprint.PortNo) *fabric.Port {
	c, ok := r.cells[cell]
	if !ok {
		return nil
	}
	return c.Port(no)
}

// Cell returns the NalCell for no, or nil if unknown.
func (r *Rack) Cell(no blueprint.CellNo) *nalcell.NalCell { return r.cells[no] }

// Blueprint returns the Blueprint this Rack was built from, for
// diagnostic enumeration of its cells and edges (internal/console's
// "d" and "l" commands).
func (r *Rack) Blueprint() *blueprint.Blueprint { return r.bp }

// NOCPort returns the border port wired to the NOC uplink.
func (r *Rack) NOCPort() *fabric.Port { return r.nocPort }

// NOCChannels returns the raw channel pair the NOC uses in place of a
// Link: toNOC is what the border port sends outward (the NOC reads
// it), fromNOC is what the border port reads as its inbound traffic
// (the NOC writes to it). status lets the NOC push connectivity
// notifications the same way a Link would.
func (r *Rack) NOCChannels() (toNOC <-chan fabric.Packet, fromNOC chan<- fabric.Packet, status chan<- fabric.Status) {
	return r.nocOutbox, r.nocInbox, r.nocStatus
}

// NOCCell returns the border cell the NOC is attached to.
func (r *Rack) NOCCell() *nalcell.NalCell { return r.nocCell }

// Link returns the Link built for edge e, if any.
func (r *Rack) Link(e blueprint.Edge) (*fabric.Link, bool) {
	l, ok := r.links[e]
	return l, ok
}

// Run starts every cell's supervised threads and every Link's relay
// goroutines, returning once ctx is canceled. Calling Run a second time
// on the same Rack is a programmer error; Build produces a Rack meant
// to be run exactly once for its process lifetime.
func (r *Rack) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.running = true
	r.cancel = cancel
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, cell := range r.cells {
		c := cell
		wg.Add(1)
		cellCtx := trace.Fork(runCtx, fmt.Sprintf("cell:%d", c.No))
		go func() {
			defer wg.Done()
			c.RunSupervised(cellCtx, r.continueOnError)
		}()
	}
	for e, link := range r.links {
		l := link
		edge := e
		wg.Add(1)
		linkCtx := trace.Fork(runCtx, fmt.Sprintf("link:%s", edge))
		go func() {
			defer wg.Done()
			r.log.Info("link goroutine started", "edge", edge)
			l.Run(linkCtx)
			r.log.Info("link goroutine stopped", "edge", edge)
		}()
	}

	<-runCtx.Done()
	wg.Wait()
}

// Stop cancels every goroutine Run started. Safe to call more than
// once; a Rack that was never Run ignores Stop.
func (r *Rack) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.cancel != nil {
		r.cancel()
	}
}

// ScheduleBreak arranges for the Link built for e to go down after
// delay, for operator-driven failover testing (section 5's
// auto_break knob). It is a thin, logged wrapper over Link.Break and
// has no effect if e names a Link this Rack did not build.
func (r *Rack) ScheduleBreak(e blueprint.Edge, delay time.Duration) {
	link, ok := r.links[e]
	if !ok {
		r.log.Warn("auto_break names an unknown edge", "edge", e)
		return
	}
	time.AfterFunc(delay, func() {
		r.log.Info("auto_break firing", "edge", e)
		link.Break()
	})
}
