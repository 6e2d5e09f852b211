// Package noc implements the deterministic four-step bootstrap
// protocol described in section 4.I: once the Rack has connected
// one border cell's port to the NOC, the NOC announces the fixed base
// tree name BaseTreeName to that cell's Cell Agent and waits for its
// acknowledgement (it does not wait for or adopt a tree name sent by
// the Cell Agent on its own), stacks four control trees on it, and issues
// two deploy manifests once all four are acknowledged. It also runs a
// free-form application channel that forwards host-submitted manifests
// over the base tree.
package noc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fabricmesh/internal/ca"
	"fabricmesh/internal/fabric"
)

// Stack names the four control trees the NOC stacks on the base tree,
// in the fixed order section 4.I requires.
const (
	BaseTreeName = "Rack"

	TreeNocMasterAgent = "NocMasterAgent"
	TreeNocAgentMaster = "NocAgentMaster"
	TreeNocAgentDeploy = "NocAgentDeploy"
	TreeNocMasterDeploy = "NocMasterDeploy"
)

var stackOrder = []string{TreeNocMasterAgent, TreeNocAgentMaster, TreeNocAgentDeploy, TreeNocMasterDeploy}

// Manifest is a free-form deployment payload, submitted either by the
// bootstrap sequence itself (the two built-in manifests) or by a host
// process over the application channel (internal/noc/api).
type Manifest struct {
	Tree string
	Body []byte
}

// Event is a message the NOC received over the base tree after
// bootstrap completed, surfaced to api.Server's Events stream.
type Event struct {
	Tree string
	Body []byte
}

// NOC drives the bootstrap protocol over a single border port's raw
// channel pair — the same pair a Link would otherwise own, with the
// NOC standing in for the cell that would normally be on the other
// end. AgentManifest and MasterManifest are sent once bootstrap
// completes; a caller with nothing to deploy yet may leave them empty
// and submit manifests later over Submit.
type NOC struct {
	toPort   chan<- fabric.Packet
	fromPort <-chan fabric.Packet

	AgentManifest  Manifest
	MasterManifest Manifest

	// AckTimeout bounds how long a single bootstrap step waits for its
	// ack. Defaults to bootstrapTimeout; cmd/fabricd derives it from the
	// config document's discover_quiescence_factor so operators can
	// trade bootstrap latency against tolerance for a slow-converging
	// rack without a code change.
	AckTimeout time.Duration

	mu      sync.Mutex
	stacked map[string]struct{}
	ready   bool

	events chan Event
	submit chan Manifest

	log *slog.Logger
}

// New builds a NOC wired to a border port's raw channels, as returned
// by rack.Rack.NOCChannels.
func New(toPort chan<- fabric.Packet, fromPort <-chan fabric.Packet) *NOC {
	return &NOC{
		toPort:     toPort,
		fromPort:   fromPort,
		AckTimeout: bootstrapTimeout,
		stacked:    make(map[string]struct{}),
		events:     make(chan Event, 64),
		submit:     make(chan Manifest, 16),
		log:        slog.With("component", "noc"),
	}
}

// Events returns the channel the application-facing API streams from.
func (n *NOC) Events() <-chan Event { return n.events }

// Submit queues a manifest for delivery over the base tree once
// bootstrap has completed. It blocks only if the internal queue is
// full; callers should treat that as backpressure, not an error.
func (n *NOC) Submit(ctx context.Context, m Manifest) {
	select {
	case n.submit <- m:
	case <-ctx.Done():
	}
}

// Run drives the bootstrap sequence to completion and then services
// the application channel and inbound base-tree traffic until ctx is
// canceled.
func (n *NOC) Run(ctx context.Context) error {
	if err := n.bootstrap(ctx); err != nil {
		return fmt.Errorf("noc.Run: bootstrap: %w", err)
	}
	n.log.Info("bootstrap complete")

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-n.submit:
			n.sendManifest(ctx, m)
		case pkt, ok := <-n.fromPort:
			if !ok {
				return nil
			}
			n.handleInbound(pkt)
		}
	}
}

// bootstrap implements section 4.I steps 1-5: announce the base tree,
// wait for the ack, then stack all four control trees in order.
func (n *NOC) bootstrap(ctx context.Context) error {
	if err := n.announceAndWait(ctx, BaseTreeName, nil); err != nil {
		return err
	}
	n.log.Info("base tree established", "tree", BaseTreeName)

	for _, name := range stackOrder {
		if err := n.stackTree(ctx, name); err != nil {
			return fmt.Errorf("stacking %s: %w", name, err)
		}
		n.mu.Lock()
		n.stacked[name] = struct{}{}
		done := len(n.stacked) == len(stackOrder)
		n.mu.Unlock()
		n.log.Info("stacked control tree", "tree", name)
		if done {
			n.mu.Lock()
			n.ready = true
			n.mu.Unlock()
		}
	}

	n.sendManifest(ctx, Manifest{Tree: TreeNocAgentDeploy, Body: n.AgentManifest.Body})
	n.sendManifest(ctx, Manifest{Tree: TreeNocMasterDeploy, Body: n.MasterManifest.Body})
	return nil
}

// announceAndWait sends a TreeName message and blocks for its ack.
func (n *NOC) announceAndWait(ctx context.Context, tree string, body []byte) error {
	return n.sendAndAwaitAck(ctx, ca.Message{Kind: ca.TreeName, TreeName: tree, Body: body})
}

// stackTree sends a StackTree message for tree and blocks for its ack.
// The fan-out mask the real traph would derive from topology is out of
// scope here (see internal/ca); the body carries no port list, so
// ca.Agent.handleStackTree installs an empty mask for the tree.
func (n *NOC) stackTree(ctx context.Context, tree string) error {
	return n.sendAndAwaitAck(ctx, ca.Message{Kind: ca.StackTree, TreeName: tree})
}

func (n *NOC) sendAndAwaitAck(ctx context.Context, msg ca.Message) error {
	if err := n.send(ctx, msg); err != nil {
		return err
	}
	timeout := n.AckTimeout
	if timeout <= 0 {
		timeout = bootstrapTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("timed out waiting for ack of %s/%s: %w", msg.Kind, msg.TreeName, waitCtx.Err())
		case pkt, ok := <-n.fromPort:
			if !ok {
				return fmt.Errorf("port closed waiting for ack of %s/%s", msg.Kind, msg.TreeName)
			}
			ack, err := ca.Decode(pkt.Payload)
			if err != nil {
				n.log.Warn("malformed reply during bootstrap", "err", err)
				continue
			}
			if ack.Kind == msg.Kind && ack.TreeName == msg.TreeName {
				return nil
			}
			n.log.Debug("ignoring unrelated reply during bootstrap", "kind", ack.Kind, "tree", ack.TreeName)
		}
	}
}

func (n *NOC) sendManifest(ctx context.Context, m Manifest) {
	_ = n.send(ctx, ca.Message{Kind: ca.Manifest, TreeName: m.Tree, Body: m.Body})
}

func (n *NOC) send(ctx context.Context, msg ca.Message) error {
	payload, err := ca.Encode(msg)
	if err != nil {
		return err
	}
	pkt := fabric.NewPacket(uuid.Nil, payload)
	select {
	case n.toPort <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NOC) handleInbound(pkt fabric.Packet) {
	msg, err := ca.Decode(pkt.Payload)
	if err != nil {
		n.log.Warn("malformed message on base tree", "err", err)
		return
	}
	select {
	case n.events <- Event{Tree: msg.TreeName, Body: msg.Body}:
	default:
		n.log.Warn("event buffer full, dropping inbound message", "tree", msg.TreeName)
	}
}

// InjectForTest pushes ev directly onto the event stream, bypassing
// bootstrap and the base-tree read loop entirely. It exists so
// internal/noc/api's tests can exercise Server.Events without driving
// a full NOC.Run — the same test-seam idiom as a CheckFunc override.
func (n *NOC) InjectForTest(ev Event) {
	n.events <- ev
}

// Ready reports whether all four control trees have been stacked.
func (n *NOC) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

// bootstrapTimeout bounds how long Run waits for each ack before giving
// up; exposed as a var (not const) so tests can shrink it.
var bootstrapTimeout = 5 * time.Second
