// Package pe implements the per-cell Packet Engine: the forwarder that
// sits between a cell's Ports and its C-Model, described in spec
// section 4.D.
package pe

import (
	"context"
	"log/slog"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/cmodel"
	"fabricmesh/internal/fabric"
)

// PE is one cell's Packet Engine. It owns no Port directly — the NAL
// Cell does — but it holds the shared fan-in channel every owned Port
// delivers into, the shared outbound handle to the C-Model, and the
// routing table the Cell Agent maintains.
type PE struct {
	cell          blueprint.CellNo
	ports         map[blueprint.PortNo]*fabric.Port
	boundaryPorts blueprint.Mask
	routes        *RoutingTable

	fromPorts <-chan fabric.Delivery
	toCA      chan<- fabric.Delivery

	fromCA <-chan cmodel.Outbound

	log *slog.Logger
}

// New builds a PE for cell, owning the given ports (by PortNo) and
// boundary set, reading deliveries off fromPorts (the shared channel
// every owned Port's toUp was constructed with), forwarding
// CA-destined events to toCA, and applying CA-originated send requests
// read from fromCA.
func New(cell blueprint.CellNo, ports map[blueprint.PortNo]*fabric.Port, boundaryPorts blueprint.Mask, routes *RoutingTable, fromPorts <-chan fabric.Delivery, toCA chan<- fabric.Delivery, fromCA <-chan cmodel.Outbound) *PE {
	return &PE{
		cell:          cell,
		ports:         ports,
		boundaryPorts: boundaryPorts,
		routes:        routes,
		fromPorts:     fromPorts,
		toCA:          toCA,
		fromCA:        fromCA,
		log:           slog.With("cell", cell, "component", "pe"),
	}
}

// Boundary returns the mask of ports that face the application path
// (a border cell's NOC-facing port, or any port the blueprint marked
// border).
func (p *PE) Boundary() blueprint.Mask { return p.boundaryPorts }

// Run services both inbound channels until ctx is canceled.
func (p *PE) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-p.fromPorts:
			if !ok {
				p.fromPorts = nil
				continue
			}
			p.handleDelivery(ctx, d)
		case o, ok := <-p.fromCA:
			if !ok {
				p.fromCA = nil
				continue
			}
			p.handleOutbound(ctx, o)
		}
		if p.fromPorts == nil && p.fromCA == nil {
			return
		}
	}
}

// handleDelivery applies the forwarding policy (section 4.D): a Status
// event always goes straight to the C-Model. A packet's tree mask
// decides whether it fans out to sibling ports, goes to the C-Model
// (its mask has the self bit set, or no route is installed yet), or
// both.
func (p *PE) handleDelivery(ctx context.Context, d fabric.Delivery) {
	if d.IsStatus {
		p.forwardToCA(ctx, d)
		return
	}

	mask, hasRoute := p.routes.Lookup(d.Packet.TreeUUID)
	if !hasRoute || mask.Has(blueprint.SelfPort) {
		p.forwardToCA(ctx, d)
	}
	for _, portNo := range mask.PortNos() {
		if portNo == blueprint.SelfPort {
			continue
		}
		port, ok := p.ports[portNo]
		if !ok {
			p.log.Warn("route names a port this cell does not own", "port", portNo)
			continue
		}
		if err := port.Send(ctx, d.Packet); err != nil {
			p.log.Warn("forward failed", "port", portNo, "err", err)
		}
	}
}

func (p *PE) forwardToCA(ctx context.Context, d fabric.Delivery) {
	select {
	case p.toCA <- d:
	case <-ctx.Done():
	}
}

// handleOutbound applies a Cell Agent send request to every port named
// in o.Ports.
func (p *PE) handleOutbound(ctx context.Context, o cmodel.Outbound) {
	for _, portNo := range o.Ports.PortNos() {
		if portNo == blueprint.SelfPort {
			continue
		}
		port, ok := p.ports[portNo]
		if !ok {
			p.log.Warn("send request names a port this cell does not own", "port", portNo)
			continue
		}
		if err := port.Send(ctx, o.Packet); err != nil {
			p.log.Warn("send failed", "port", portNo, "err", err)
		}
	}
}
