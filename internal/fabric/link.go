package fabric

import (
	"context"
	"log/slog"
	"sync/atomic"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/trace"
)

// Link relays packets between the two ports at either end of a rack
// edge. It owns no port state itself — FailoverInfo and the connected
// flag live on the Port — but it is the thing a NOC console command or
// a fault injector calls to simulate a cable pull, and the two
// directions it multiplexes are symmetric by construction: there is no
// such thing as a one-sided break.
type Link struct {
	id        LinkID
	connected atomic.Bool

	aToB <-chan Packet
	bToA <-chan Packet
	toB  chan<- Packet
	toA  chan<- Packet

	aStatus chan<- Status
	bStatus chan<- Status

	log *slog.Logger
}

// NewLink builds a Link over four already-allocated channels: aToB and
// bToA are the outbound channels each port's toLink writes to, and toB
// and toA are the channels each port's fromLink reads from. Wiring them
// crosswise (a's outbound feeds b's inbound and vice versa) is the
// Rack's job at edge-construction time.
func NewLink(e blueprint.Edge, aToB, bToA <-chan Packet, toB, toA chan<- Packet, aStatus, bStatus chan<- Status) *Link {
	l := &Link{
		id:      NewLinkID(e),
		aToB:    aToB,
		bToA:    bToA,
		toB:     toB,
		toA:     toA,
		aStatus: aStatus,
		bStatus: bStatus,
		log:     slog.With("link", NewLinkID(e)),
	}
	l.connected.Store(true)
	return l
}

// ID returns this link's stable trace identity.
func (l *Link) ID() LinkID { return l.id }

// Connected reports whether this link currently passes traffic.
func (l *Link) Connected() bool { return l.connected.Load() }

// Run starts the two relay goroutines and returns once ctx is canceled.
func (l *Link) Run(ctx context.Context) {
	go l.relay(trace.Fork(ctx, "relay:aToB"), l.aToB, l.toB)
	go l.relay(trace.Fork(ctx, "relay:bToA"), l.bToA, l.toA)
	<-ctx.Done()
}

func (l *Link) relay(ctx context.Context, in <-chan Packet, out chan<- Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-in:
			if !ok {
				return
			}
			if !l.connected.Load() {
				l.log.Debug("dropped packet on broken link", "state", pkt.AitState)
				continue
			}
			select {
			case out <- pkt:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Break flips the link to disconnected and notifies both ports. Any
// packet already in a relay goroutine's hands when this fires is
// dropped silently; it stays recorded in its sender's FailoverInfo,
// which is the failover bookkeeping's whole purpose.
func (l *Link) Break() {
	if !l.connected.CompareAndSwap(true, false) {
		return
	}
	l.log.Info("link broken")
	notify(l.aStatus, StatusDisconnected)
	notify(l.bStatus, StatusDisconnected)
}

// Restore flips the link back to connected and notifies both ports.
func (l *Link) Restore() {
	if !l.connected.CompareAndSwap(false, true) {
		return
	}
	l.log.Info("link restored")
	notify(l.aStatus, StatusConnected)
	notify(l.bStatus, StatusConnected)
}

func notify(ch chan<- Status, s Status) {
	select {
	case ch <- s:
	default:
	}
}
