package fabric

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ferr"
	"fabricmesh/internal/trace"
)

const portChannelCapacity = 64

// Port is one end of a Link as seen by a cell's Packet Engine. It
// carries the atomic-information-transfer handshake described in
// NextAitState: payload-bearing sends always either pass straight
// through (Normal, Init, SnakeD) or start/continue the handshake
// (Ait and its successors), while everything arriving from the Link is
// re-examined on receipt since a handshake can be bounced back more
// than once before it settles.
//
// Go channels stand in for the unbounded per-port queues the original
// used: a generous, not-actually-unbounded buffer plus a blocking send
// on overflow, so sustained backpressure shows up as an ordinary
// goroutine stall rather than unbounded memory growth.
type Port struct {
	Cell blueprint.CellNo
	No   blueprint.PortNo

	connected atomic.Bool
	failover  FailoverInfo

	toLink     chan<- Packet // this port -> its Link
	fromLink   <-chan Packet // its Link -> this port
	linkStatus <-chan Status // its Link -> this port

	toUp chan<- Delivery // this port -> Packet Engine

	id     PortID
	tracer *trace.Tracer
	log    *slog.Logger
}

// NewPort wires a Port to its Link-facing and PE-facing channels. The
// caller (Rack, during edge wiring) owns channel construction so the
// same channel pair can be handed to both endpoints of a Link. tracer
// may be nil, in which case AIT transitions are logged but not emitted
// as trace records.
func NewPort(cell blueprint.CellNo, no blueprint.PortNo, toLink chan<- Packet, fromLink <-chan Packet, linkStatus <-chan Status, toUp chan<- Delivery, tracer *trace.Tracer) *Port {
	p := &Port{
		Cell:       cell,
		No:         no,
		toLink:     toLink,
		fromLink:   fromLink,
		linkStatus: linkStatus,
		toUp:       toUp,
		id:         NewPortID(cell, no),
		tracer:     tracer,
		log:        slog.With("port", NewPortID(cell, no)),
	}
	p.connected.Store(true)
	return p
}

// ID returns this port's stable trace identity.
func (p *Port) ID() PortID { return p.id }

// Connected reports whether this port's Link is currently up.
func (p *Port) Connected() bool { return p.connected.Load() }

// Outstanding returns the last packet sent and not yet acknowledged by
// a receive, if any. It only reports the packet; neither the fabric nor
// the Rack replays it after a link break.
func (p *Port) Outstanding() (Packet, bool) { return p.failover.Get() }

// Run starts the port's background receive loop. It returns once ctx
// is canceled or both its inbound channels close.
func (p *Port) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-p.linkStatus:
			if !ok {
				p.linkStatus = nil
				continue
			}
			p.handleStatus(ctx, status)
		case pkt, ok := <-p.fromLink:
			if !ok {
				p.fromLink = nil
				continue
			}
			if err := p.receiveFromLink(ctx, pkt); err != nil {
				p.log.Warn("dropped packet", "err", err)
			}
		}
		if p.linkStatus == nil && p.fromLink == nil {
			return
		}
	}
}

func (p *Port) handleStatus(ctx context.Context, status Status) {
	p.connected.Store(status == StatusConnected)
	p.deliver(ctx, Delivery{Status: status, IsStatus: true})
}

// Send is the public entry point a Packet Engine uses to transmit a
// packet on this port. It applies the send-side legality and advance
// rules (section 4.B "on send") before handing the packet to the Link.
func (p *Port) Send(ctx context.Context, pkt Packet) error {
	if !p.connected.Load() {
		return ferr.Disconnection("fabric.Port.Send", fmt.Sprintf("port %s: link down", p.id))
	}
	advanced, err := advanceOnSend(pkt)
	if err != nil {
		return err
	}
	return p.transmit(ctx, advanced)
}

// transmit records advanced as outstanding and hands it to the Link.
// Every outbound packet but the handshake's terminal frame goes
// through here: see bounceTerminal for the one exception.
func (p *Port) transmit(ctx context.Context, pkt Packet) error {
	p.failover.Set(pkt)
	select {
	case p.toLink <- pkt:
		return nil
	case <-ctx.Done():
		return ferr.Disconnection("fabric.Port.transmit", "port "+string(p.id)+": "+ctx.Err().Error())
	}
}

// bounceTerminal enqueues the handshake's closing AitD frame without
// recording it in FailoverInfo. Nothing replies to this frame — it is
// the peer's cue to consume and stop, not to ack — so leaving
// FailoverInfo untouched is what lets both ports settle to "no send
// outstanding" once the handshake finishes.
func (p *Port) bounceTerminal(ctx context.Context, pkt Packet) error {
	select {
	case p.toLink <- pkt:
		return nil
	case <-ctx.Done():
		return ferr.Disconnection("fabric.Port.bounceTerminal", "port "+string(p.id)+": "+ctx.Err().Error())
	}
}

func (p *Port) deliver(ctx context.Context, d Delivery) {
	d.Port = p.No
	select {
	case p.toUp <- d:
	case <-ctx.Done():
	}
}

// receiveFromLink implements the receive-side switch (section 4.B "on
// receive"). FailoverInfo is cleared unconditionally first, mirroring
// the source this is grounded on: a receive always cancels whatever
// this port had outstanding, regardless of what arrives.
func (p *Port) receiveFromLink(ctx context.Context, pkt Packet) error {
	p.failover.Clear()

	switch pkt.AitState {
	case Normal, Init, SnakeD:
		p.deliver(ctx, Delivery{Packet: pkt})
		return nil

	case Ait:
		return ferr.Protocol("fabric.Port.receiveFromLink", fmt.Sprintf("port %s: raw Ait arrived on the wire", p.id))

	case Tick:
		// First handshake leg: advance, bounce, and — this once —
		// surface the payload upward. Later legs only bounce.
		next, _ := NextAitState(Tick)
		p.log.Debug("ait transition on receive", "from", Tick, "to", next)
		p.traceTransition(ctx, "receiveFromLink", Tick, next)
		if err := p.transmit(ctx, pkt.withState(next)); err != nil {
			return err
		}
		p.deliver(ctx, Delivery{Packet: pkt.withState(Normal)})
		return nil

	case Tock, Teck, Tack, Tuck:
		next, ok := NextAitState(pkt.AitState)
		if !ok {
			return ferr.Protocol("fabric.Port.receiveFromLink", fmt.Sprintf("port %s: %s has no successor", p.id, pkt.AitState))
		}
		p.log.Debug("ait transition on receive", "from", pkt.AitState, "to", next)
		p.traceTransition(ctx, "receiveFromLink", pkt.AitState, next)
		return p.transmit(ctx, pkt.withState(next))

	case Tyck:
		p.log.Debug("ait transition on receive", "from", Tyck, "to", AitD)
		p.traceTransition(ctx, "receiveFromLink", Tyck, AitD)
		return p.bounceTerminal(ctx, pkt.withState(AitD))

	case AitD:
		// Terminal consume: FailoverInfo is already cleared above and
		// nothing further is sent or delivered.
		p.log.Debug("ait handshake consumed", "state", AitD)
		return nil

	default:
		return ferr.Protocol("fabric.Port.receiveFromLink", fmt.Sprintf("port %s: unknown state %s", p.id, pkt.AitState))
	}
}

// traceTransition emits an ait_transition trace record for an AIT state
// change observed at function, if this Port was built with a Tracer.
// Failure to emit is logged, not propagated: tracing is best-effort and
// must never perturb the packet path.
func (p *Port) traceTransition(ctx context.Context, function string, from, to AitState) {
	if p.tracer == nil {
		return
	}
	_, h := trace.Update(ctx, function, 0)
	h.Format = "ait_transition"
	h.TraceType = trace.TypeDebug
	if err := p.tracer.Emit(ctx, h, map[string]any{"port": string(p.id), "from": from.String(), "to": to.String()}); err != nil {
		p.log.Warn("emit trace record", "err", err)
	}
}
