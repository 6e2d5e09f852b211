// Package ca implements the Cell Agent side of the contract described
// in section 4.F: it accepts (PortNo, Packet) and (PortNo, Status)
// events from the C-Model and produces (PortMask, Packet) sends back.
// The tree/traph/routing-table construction algorithms proper are an
// explicit non-goal; this Agent stacks and records tree names and
// installs routes, but does not compute a spanning tree from topology.
package ca

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/cmodel"
	"fabricmesh/internal/fabric"
	"fabricmesh/internal/ferr"
	"fabricmesh/internal/pe"
)

// Agent is the reference Cell Agent: deterministic, single-threaded,
// and good enough to drive the NOC bootstrap protocol and simple
// application messaging in section 4.F's test scenarios. A cell built
// with a richer traph implementation would satisfy the same contract
// by replacing this type, not by changing the PE or C-Model.
type Agent struct {
	cell     blueprint.CellNo
	boundary blueprint.Mask
	quench   Quench
	routes   *pe.RoutingTable

	fromCM <-chan fabric.Delivery
	toCM   chan<- cmodel.Outbound

	mu    sync.Mutex
	trees map[string]uuid.UUID

	log *slog.Logger
}

// New builds an Agent for cell. boundary is the mask of ports facing
// the application path (matches the PE's own boundary set); routes is
// the same RoutingTable instance handed to this cell's PE, since
// routing-table maintenance is the one piece of state the two threads
// share directly rather than pass by channel.
func New(cell blueprint.CellNo, boundary blueprint.Mask, quench Quench, routes *pe.RoutingTable, fromCM <-chan fabric.Delivery, toCM chan<- cmodel.Outbound) *Agent {
	return &Agent{
		cell:     cell,
		boundary: boundary,
		quench:   quench,
		routes:   routes,
		fromCM:   fromCM,
		toCM:     toCM,
		trees:    make(map[string]uuid.UUID),
		log:      slog.With("cell", cell, "component", "ca"),
	}
}

// Quench returns this Agent's configured quench mode.
func (a *Agent) Quench() Quench { return a.quench }

// TreeUUID returns the UUID this Agent has assigned to a tree name, if
// it has seen one by that name. Used by the console's tree display and
// by tests; the mapping itself is otherwise internal.
func (a *Agent) TreeUUID(name string) (uuid.UUID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tree, ok := a.trees[name]
	return tree, ok
}

// Run consumes (PortNo, Delivery) events until ctx is canceled.
func (a *Agent) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-a.fromCM:
			if !ok {
				return
			}
			a.handle(ctx, d)
		}
	}
}

func (a *Agent) handle(ctx context.Context, d fabric.Delivery) {
	if d.IsStatus {
		a.log.Info("port status", "port", d.Port, "status", d.Status)
		return
	}

	if !a.boundary.Has(d.Port) {
		// A packet arriving on an interior port with no installed
		// route was already handled by the PE (forwarded here as the
		// local-delivery default); nothing further to interpret
		// without the traph this Agent deliberately does not have.
		return
	}

	msg, err := Decode(d.Packet.Payload)
	if err != nil {
		a.log.Warn("malformed application message", "port", d.Port, "err", err)
		return
	}

	switch msg.Kind {
	case TreeName:
		a.handleTreeName(ctx, d, msg)
	case StackTree:
		a.handleStackTree(ctx, d, msg)
	case Manifest:
		a.handleManifest(ctx, d, msg)
	case DeleteTree:
		a.handleDeleteTree(msg)
	case Query:
		a.handleQuery(ctx, d, msg)
	case Interapplication:
		a.handleInterapplication(ctx, d, msg)
	default:
		a.log.Warn("unknown application message kind", "kind", int(msg.Kind))
	}
}

// handleTreeName records a newly announced tree name, assigning it a
// fresh UUID if this Agent has not seen it before, and defaults its
// route to "deliver locally" until a StackTree message narrows it.
func (a *Agent) handleTreeName(ctx context.Context, d fabric.Delivery, msg Message) {
	tree := a.treeFor(msg.TreeName)
	a.routes.Set(tree, blueprint.Port0Mask())
	a.reply(ctx, d.Port, tree, Message{Kind: TreeName, TreeName: msg.TreeName})
}

// handleStackTree installs the fan-out mask a caller wants for an
// already-named tree: the body is the caller's intended mask encoded
// as a PortNo list via Message.Body (the traph that would normally
// derive this mask from topology is out of scope).
func (a *Agent) handleStackTree(ctx context.Context, d fabric.Delivery, msg Message) {
	tree := a.treeFor(msg.TreeName)
	ports, err := decodePortList(msg.Body)
	if err != nil {
		a.log.Warn("bad StackTree body", "err", err)
		return
	}
	a.routes.Set(tree, blueprint.MakeMask(ports))
	a.reply(ctx, d.Port, tree, Message{Kind: StackTree, TreeName: msg.TreeName})
}

func (a *Agent) handleManifest(ctx context.Context, d fabric.Delivery, msg Message) {
	tree := a.treeFor(msg.TreeName)
	a.log.Info("manifest received", "tree", msg.TreeName, "bytes", len(msg.Body))
	a.reply(ctx, d.Port, tree, Message{Kind: Manifest, TreeName: msg.TreeName})
}

func (a *Agent) handleDeleteTree(msg Message) {
	a.mu.Lock()
	tree, ok := a.trees[msg.TreeName]
	delete(a.trees, msg.TreeName)
	a.mu.Unlock()
	if ok {
		a.routes.Delete(tree)
	}
}

func (a *Agent) handleQuery(ctx context.Context, d fabric.Delivery, msg Message) {
	tree := a.treeFor(msg.TreeName)
	a.reply(ctx, d.Port, tree, Message{Kind: Query, TreeName: msg.TreeName})
}

func (a *Agent) handleInterapplication(ctx context.Context, d fabric.Delivery, msg Message) {
	tree := a.treeFor(msg.TreeName)
	mask, _ := a.routes.Lookup(tree)
	encoded, err := Encode(msg)
	if err != nil {
		a.log.Warn("failed to re-encode interapplication message", "err", err)
		return
	}
	a.send(ctx, mask, tree, encoded)
}

func (a *Agent) treeFor(name string) uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if tree, ok := a.trees[name]; ok {
		return tree
	}
	tree := uuid.New()
	a.trees[name] = tree
	return tree
}

func (a *Agent) reply(ctx context.Context, port blueprint.PortNo, tree uuid.UUID, msg Message) {
	encoded, err := Encode(msg)
	if err != nil {
		a.log.Warn("failed to encode reply", "err", err)
		return
	}
	a.send(ctx, blueprint.MakeMask([]blueprint.PortNo{port}), tree, encoded)
}

func (a *Agent) send(ctx context.Context, ports blueprint.Mask, tree uuid.UUID, payload []byte) {
	out := cmodel.Outbound{Ports: ports, Packet: fabric.NewPacket(tree, payload)}
	select {
	case a.toCM <- out:
	case <-ctx.Done():
	}
}

func decodePortList(body []byte) ([]blueprint.PortNo, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var raw []uint32
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ferr.Validationf("ca.decodePortList", "bad port list: %v", err)
	}
	ports := make([]blueprint.PortNo, len(raw))
	for i, p := range raw {
		ports[i] = blueprint.PortNo(p)
	}
	return ports, nil
}
