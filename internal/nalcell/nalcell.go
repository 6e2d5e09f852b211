// Package nalcell assembles one cell's Port set, C-Model, Packet Engine,
// and Cell Agent into the three-thread container described in spec
// section 4.G, and owns the free-port bookkeeping the Rack consults
// while wiring edges and the NOC uplink.
package nalcell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
	"fabricmesh/internal/cmodel"
	"fabricmesh/internal/fabric"
	"fabricmesh/internal/ferr"
	"fabricmesh/internal/pe"
	"fabricmesh/internal/trace"
)

const (
	fanInCapacity    = 256
	linkChanCapacity = 64
)

// portSlot is one port's channel endpoints, held here until the Rack
// claims the slot for a Link or a NOC uplink and starts its Port and
// that Link running.
type portSlot struct {
	port     *fabric.Port
	toLink   chan fabric.Packet // Rack wires this into a Link as one direction's sender
	fromLink chan fabric.Packet // Rack wires this into a Link as the other direction's receiver
	status   chan fabric.Status
	claimed  bool
	border   bool
}

// NalCell is one cell's runtime container: every Port it owns, plus the
// PE/CModel/CA triple wired to them. Port 0 is always present and never
// claimable, matching blueprint.SelfPort.
type NalCell struct {
	No   blueprint.CellNo
	Spec blueprint.CellSpec

	mu    sync.Mutex
	slots map[blueprint.PortNo]*portSlot

	Routes *pe.RoutingTable
	PE     *pe.PE
	CM     *cmodel.CModel
	CA     *ca.Agent

	log *slog.Logger
}

// New builds a NalCell's Port set and wires its PE/CModel/CA triple, but
// starts nothing running: the Rack calls Run once every edge and the
// NOC uplink (if any) have claimed their slots. Construction failure
// here (section 4.G) is fatal to the whole rack build. tracer may be
// nil, in which case every owned Port logs AIT transitions but emits
// no trace records for them.
func New(spec blueprint.CellSpec, quench ca.Quench, tracer *trace.Tracer) (*NalCell, error) {
	if spec.NumPorts == 0 {
		return nil, ferr.Validationf("nalcell.New", "cell %d: zero ports", spec.No)
	}

	fanIn := make(chan fabric.Delivery, fanInCapacity)

	slots := make(map[blueprint.PortNo]*portSlot, spec.NumPorts)
	ports := make(map[blueprint.PortNo]*fabric.Port, spec.NumPorts)
	for no := blueprint.PortNo(0); no < spec.NumPorts; no++ {
		toLink := make(chan fabric.Packet, linkChanCapacity)
		fromLink := make(chan fabric.Packet, linkChanCapacity)
		status := make(chan fabric.Status, 1)

		port := fabric.NewPort(spec.No, no, toLink, fromLink, status, fanIn, tracer)
		slots[no] = &portSlot{
			port:     port,
			toLink:   toLink,
			fromLink: fromLink,
			status:   status,
			claimed:  no == blueprint.SelfPort, // port 0 is reserved, never claimable
			border:   spec.BorderPorts.Has(no),
		}
		ports[no] = port
	}

	routes := pe.NewRoutingTable()

	peToCM := make(chan fabric.Delivery, fanInCapacity)
	cmToCA := make(chan fabric.Delivery, fanInCapacity)
	caToCM := make(chan cmodel.Outbound, fanInCapacity)
	cmToPE := make(chan cmodel.Outbound, fanInCapacity)

	cellPE := pe.New(spec.No, ports, spec.BorderPorts, routes, fanIn, peToCM, cmToPE)
	cellCM := cmodel.New(spec.No, peToCM, cmToCA, caToCM, cmToPE)
	cellCA := ca.New(spec.No, spec.BorderPorts, quench, routes, cmToCA, caToCM)

	return &NalCell{
		No:     spec.No,
		Spec:   spec,
		slots:  slots,
		Routes: routes,
		PE:     cellPE,
		CM:     cellCM,
		CA:     cellCA,
		log:    slog.With("cell", spec.No, "component", "nalcell"),
	}, nil
}

// Port returns the Port for no whether or not its slot has been claimed,
// or nil if the cell has no port with that number.
func (n *NalCell) Port(no blueprint.PortNo) *fabric.Port {
	n.mu.Lock()
	defer n.mu.Unlock()
	slot, ok := n.slots[no]
	if !ok {
		return nil
	}
	return slot.port
}

// FreeInteriorPort claims the lowest-numbered unclaimed, non-border port
// and returns it with the channel pair the Rack wires into a Link: toLink
// is the direction this port sends on, fromLink is the direction it
// receives on. Fails with ferr.Exhaustion once every interior port is
// claimed (section 4.G, "NoFreePorts").
func (n *NalCell) FreeInteriorPort() (*fabric.Port, chan fabric.Packet, chan fabric.Packet, chan fabric.Status, error) {
	return n.freePort(false)
}

// FreeBorderPort is FreeInteriorPort restricted to border ports; the
// Rack uses it to wire the NOC uplink.
func (n *NalCell) FreeBorderPort() (*fabric.Port, chan fabric.Packet, chan fabric.Packet, chan fabric.Status, error) {
	return n.freePort(true)
}

func (n *NalCell) freePort(wantBorder bool) (*fabric.Port, chan fabric.Packet, chan fabric.Packet, chan fabric.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var best blueprint.PortNo
	var found *portSlot
	for no, slot := range n.slots {
		if slot.claimed || slot.border != wantBorder {
			continue
		}
		if found == nil || no < best {
			best, found = no, slot
		}
	}
	if found == nil {
		kind := "interior"
		if wantBorder {
			kind = "border"
		}
		return nil, nil, nil, nil, ferr.Exhaustion("nalcell.freePort", fmt.Sprintf("cell %d: no free %s ports", n.No, kind))
	}
	found.claimed = true
	return found.port, found.toLink, found.fromLink, found.status, nil
}

// Run starts the CA, CModel, and PE goroutines and every owned Port's
// receive loop, returning once ctx is canceled. Each goroutine is
// labeled for trace correlation the same way the component's own
// slog.With fields already are; a goroutine that returns early due to a
// panic is not restarted here — see RunSupervised for that policy.
func (n *NalCell) Run(ctx context.Context) {
	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context)) {
		wg.Add(1)
		goCtx := trace.Fork(ctx, name)
		go func() {
			defer wg.Done()
			n.log.Info("goroutine started", "goroutine", name)
			fn(goCtx)
			n.log.Info("goroutine stopped", "goroutine", name)
		}()
	}

	spawn("CellAgent", n.CA.Run)
	spawn("CModel", n.CM.Run)
	spawn("PacketEngine", n.PE.Run)

	n.mu.Lock()
	ports := make([]*fabric.Port, 0, len(n.slots))
	for no, slot := range n.slots {
		if no == blueprint.SelfPort {
			continue
		}
		ports = append(ports, slot.port)
	}
	n.mu.Unlock()

	for _, port := range ports {
		p := port
		spawn("Port:"+string(p.ID()), p.Run)
	}

	<-ctx.Done()
	wg.Wait()
}

// RunSupervised is Run plus panic containment: each of the three named
// threads (CellAgent, CModel, PacketEngine — not the per-Port receive
// loops, which have no policy-relevant state to lose) runs inside a
// recover wrapper, and continueOnError decides what happens after a
// panic. False (the default) logs the panic and leaves the thread
// dead — the cell keeps the two survivors running but can no longer
// make progress, which callers should treat as a reason to tear the
// cell down. True restarts the panicked thread against the same
// channels and keeps going.
func (n *NalCell) RunSupervised(ctx context.Context, continueOnError bool) {
	var wg sync.WaitGroup
	supervise := func(name string, fn func(context.Context)) {
		wg.Add(1)
		goCtx := trace.Fork(ctx, name)
		go func() {
			defer wg.Done()
			for {
				n.log.Info("goroutine started", "goroutine", name)
				if n.runRecovered(name, fn, goCtx) {
					n.log.Info("goroutine stopped", "goroutine", name)
					return
				}
				if !continueOnError {
					n.log.Error("goroutine panicked, not restarting", "goroutine", name)
					return
				}
				n.log.Warn("goroutine panicked, restarting", "goroutine", name)
			}
		}()
	}

	supervise("CellAgent", n.CA.Run)
	supervise("CModel", n.CM.Run)
	supervise("PacketEngine", n.PE.Run)

	n.mu.Lock()
	ports := make([]*fabric.Port, 0, len(n.slots))
	for no, slot := range n.slots {
		if no == blueprint.SelfPort {
			continue
		}
		ports = append(ports, slot.port)
	}
	n.mu.Unlock()

	for _, port := range ports {
		p := port
		spawn := func(name string, fn func(context.Context)) {
			wg.Add(1)
			goCtx := trace.Fork(ctx, name)
			go func() {
				defer wg.Done()
				n.runRecovered(name, fn, goCtx)
			}()
		}
		spawn("Port:"+string(p.ID()), p.Run)
	}

	<-ctx.Done()
	wg.Wait()
}

// runRecovered runs fn and reports whether it returned normally (true)
// versus panicked (false), with the panic logged and contained.
func (n *NalCell) runRecovered(name string, fn func(context.Context), ctx context.Context) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("recovered panic", "goroutine", name, "panic", r)
			clean = false
		}
	}()
	fn(ctx)
	return true
}
