// Package fabric implements the per-cell wire layer: Ports, Links, and
// the AIT (atomic information transfer) packet state machine that rides
// on top of ordinary payload delivery.
package fabric

import (
	"fmt"

	"github.com/google/uuid"

	"fabricmesh/internal/ferr"
)

// AitState is a packet's position in the atomic-information-transfer
// handshake. Normal, Init, and SnakeD packets carry no handshake and
// pass through a Port untouched; the rest drive a two-phase commit
// across exactly one link hop.
type AitState int

const (
	Normal AitState = iota
	Init
	SnakeD
	Ait
	Tick
	Tock
	Tack
	Teck
	Tuck
	Tyck
	AitD
)

func (s AitState) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Init:
		return "Init"
	case SnakeD:
		return "SnakeD"
	case Ait:
		return "Ait"
	case Tick:
		return "Tick"
	case Tock:
		return "Tock"
	case Tack:
		return "Tack"
	case Teck:
		return "Teck"
	case Tuck:
		return "Tuck"
	case Tyck:
		return "Tyck"
	case AitD:
		return "AitD"
	default:
		return fmt.Sprintf("AitState(%d)", int(s))
	}
}

// chain is the fixed handshake progression. Every state past Ait has
// exactly one successor; Normal, Init, SnakeD, and the terminal AitD
// have none.
var chain = map[AitState]AitState{
	Ait:  Tick,
	Tick: Tock,
	Tock: Tack,
	Tack: Teck,
	Teck: Tuck,
	Tuck: Tyck,
	Tyck: AitD,
}

// NextAitState returns the next state in the handshake chain. The
// second result is false for Normal, Init, SnakeD, AitD, or any state
// not part of the chain.
func NextAitState(s AitState) (AitState, bool) {
	next, ok := chain[s]
	return next, ok
}

// Packet is the unit of transfer between Ports. TreeUUID names the
// spanning tree this packet is routed on; Payload is opaque to the
// fabric layer.
type Packet struct {
	TreeUUID uuid.UUID
	AitState AitState
	Payload  []byte
}

// withState returns a copy of p with AitState replaced. Packets are
// small and passed by value at rest; this keeps bounce/advance logic
// from aliasing the caller's copy.
func (p Packet) withState(s AitState) Packet {
	p.AitState = s
	return p
}

// NewPacket constructs a fresh Normal-state packet for a given tree.
func NewPacket(tree uuid.UUID, payload []byte) Packet {
	return Packet{TreeUUID: tree, AitState: Normal, Payload: payload}
}

// NewAitPacket constructs a packet that starts the atomic-transfer
// handshake: its first hop across a Port.Send will advance it to Tick.
func NewAitPacket(tree uuid.UUID, payload []byte) Packet {
	return Packet{TreeUUID: tree, AitState: Ait, Payload: payload}
}

// advanceOnSend implements the legality and state-advance rules for a
// packet handed to Port.Send directly (section 4.B, "on send").
// Normal, Init, and SnakeD pass through untouched. Ait advances to
// Tick. Tock, Teck, Tack, Tuck, and Tyck each advance one step — used
// when a caller continues a handshake explicitly rather than letting a
// bounce drive it. AitD and a raw, already-advanced Tick are illegal:
// Tick never legitimately reaches a caller's hands again once sent.
func advanceOnSend(p Packet) (Packet, error) {
	switch p.AitState {
	case Normal, Init, SnakeD:
		return p, nil
	case Ait:
		return p.withState(Tick), nil
	case Tock, Teck, Tack, Tuck, Tyck:
		next, _ := NextAitState(p.AitState)
		return p.withState(next), nil
	case AitD, Tick:
		return Packet{}, ferr.Protocol("fabric.Send", fmt.Sprintf("Ait: %s is not a legal send state", p.AitState))
	default:
		return Packet{}, ferr.Protocol("fabric.Send", fmt.Sprintf("Ait: unknown state %s", p.AitState))
	}
}
