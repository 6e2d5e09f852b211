package ca

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/cmodel"
	"fabricmesh/internal/fabric"
	"fabricmesh/internal/pe"
)

func newTestAgent(t *testing.T) (*Agent, chan fabric.Delivery, chan cmodel.Outbound, *pe.RoutingTable) {
	t.Helper()
	fromCM := make(chan fabric.Delivery, 4)
	toCM := make(chan cmodel.Outbound, 4)
	routes := pe.NewRoutingTable()
	boundary := blueprint.MakeMask([]blueprint.PortNo{3})
	agent := New(0, boundary, QuenchSimple, routes, fromCM, toCM)

	ctx, cancel := context.WithCancel(context.Background())
	go agent.Run(ctx)
	t.Cleanup(cancel)
	return agent, fromCM, toCM, routes
}

func deliverMessage(t *testing.T, fromCM chan fabric.Delivery, port blueprint.PortNo, tree uuid.UUID, msg Message) {
	t.Helper()
	payload, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fromCM <- fabric.Delivery{Port: port, Packet: fabric.NewPacket(tree, payload)}
}

func TestAgent_TreeNameInstallsLocalRouteAndAcks(t *testing.T) {
	agent, fromCM, toCM, routes := newTestAgent(t)

	deliverMessage(t, fromCM, 3, uuid.Nil, Message{Kind: TreeName, TreeName: "tree-A"})

	select {
	case out := <-toCM:
		var got Message
		if err := json.Unmarshal(out.Packet.Payload, &got); err != nil {
			t.Fatalf("unmarshal ack: %v", err)
		}
		if got.Kind != TreeName || got.TreeName != "tree-A" {
			t.Fatalf("ack = %+v", got)
		}
		if !out.Ports.Has(3) {
			t.Fatalf("ack not addressed back to port 3: %+v", out.Ports)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TreeName ack")
	}

	tree, ok := agent.TreeUUID("tree-A")
	if !ok {
		t.Fatalf("agent did not record tree-A")
	}
	mask, ok := routes.Lookup(tree)
	if !ok || !mask.Has(blueprint.SelfPort) {
		t.Fatalf("route for tree-A = %v, %v; want local-delivery default", mask, ok)
	}
}

func TestAgent_StackTreeInstallsFanOutMask(t *testing.T) {
	agent, fromCM, toCM, routes := newTestAgent(t)

	deliverMessage(t, fromCM, 3, uuid.Nil, Message{Kind: TreeName, TreeName: "tree-B"})
	<-toCM

	body, _ := json.Marshal([]uint32{1, 2})
	deliverMessage(t, fromCM, 3, uuid.Nil, Message{Kind: StackTree, TreeName: "tree-B", Body: body})

	select {
	case <-toCM:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for StackTree ack")
	}

	tree, ok := agent.TreeUUID("tree-B")
	if !ok {
		t.Fatalf("agent did not record tree-B")
	}
	mask, ok := routes.Lookup(tree)
	if !ok || !mask.Has(1) || !mask.Has(2) || mask.Has(blueprint.SelfPort) {
		t.Fatalf("route for tree-B = %v, %v; want {1,2}", mask, ok)
	}
}

func TestAgent_InteriorPacketIgnored(t *testing.T) {
	_, fromCM, toCM, _ := newTestAgent(t)

	fromCM <- fabric.Delivery{Port: 1, Packet: fabric.NewPacket(uuid.New(), []byte("raw data, not an application message"))}

	select {
	case out := <-toCM:
		t.Fatalf("unexpected outbound from an interior delivery: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}
}
