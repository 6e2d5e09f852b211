// Package cmodel implements the per-cell classifier that sits between
// the Packet Engine and the Cell Agent. It carries no policy of its own:
// it decouples the two threads so the PE can speak packet-level
// messages while the CA speaks application-level ones, per
// section 4.E.
package cmodel

import (
	"context"
	"log/slog"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/fabric"
)

// Outbound is a Cell Agent send request: deliver Packet to every port
// named in Ports. The PE resolves Ports against its live port set; the
// CM never inspects it.
type Outbound struct {
	Ports  blueprint.Mask
	Packet fabric.Packet
}

// CModel relays fabric.Delivery events from the PE to the CA's inbox,
// and Outbound send requests from the CA to the PE's outbox.
type CModel struct {
	cell blueprint.CellNo

	fromPE <-chan fabric.Delivery
	toCA   chan<- fabric.Delivery

	fromCA <-chan Outbound
	toPE   chan<- Outbound

	log *slog.Logger
}

// New wires a CModel to its four channels. The Rack (via NAL Cell
// construction) owns channel allocation so PE, CModel, and CA share
// the same four endpoints.
func New(cell blueprint.CellNo, fromPE <-chan fabric.Delivery, toCA chan<- fabric.Delivery, fromCA <-chan Outbound, toPE chan<- Outbound) *CModel {
	return &CModel{
		cell:   cell,
		fromPE: fromPE,
		toCA:   toCA,
		fromCA: fromCA,
		toPE:   toPE,
		log:    slog.With("cell", cell, "component", "cmodel"),
	}
}

// Run relays in both directions until ctx is canceled.
func (c *CModel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-c.fromPE:
			if !ok {
				c.fromPE = nil
				continue
			}
			select {
			case c.toCA <- d:
			case <-ctx.Done():
				return
			}
		case o, ok := <-c.fromCA:
			if !ok {
				c.fromCA = nil
				continue
			}
			select {
			case c.toPE <- o:
			case <-ctx.Done():
				return
			}
		}
		if c.fromPE == nil && c.fromCA == nil {
			return
		}
	}
}
