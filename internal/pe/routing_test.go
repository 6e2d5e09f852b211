package pe

import (
	"testing"

	"github.com/google/uuid"

	"fabricmesh/internal/blueprint"
)

func TestRoutingTable_SetLookupDelete(t *testing.T) {
	rt := NewRoutingTable()
	tree := uuid.New()

	if _, ok := rt.Lookup(tree); ok {
		t.Fatal("Lookup on empty table should report ok = false")
	}

	rt.Set(tree, blueprint.MakeMask([]blueprint.PortNo{1, 2}))
	mask, ok := rt.Lookup(tree)
	if !ok {
		t.Fatal("Lookup after Set should report ok = true")
	}
	if !mask.Has(1) || !mask.Has(2) {
		t.Fatalf("mask = %v, want ports 1 and 2 set", mask)
	}

	rt.Delete(tree)
	if _, ok := rt.Lookup(tree); ok {
		t.Fatal("Lookup after Delete should report ok = false")
	}
}

func TestRoutingTable_EntriesSnapshotsAllRoutes(t *testing.T) {
	rt := NewRoutingTable()
	treeA, treeB := uuid.New(), uuid.New()
	rt.Set(treeA, blueprint.MakeMask([]blueprint.PortNo{1}))
	rt.Set(treeB, blueprint.MakeMask([]blueprint.PortNo{2, 3}))

	entries := rt.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() len = %d, want 2", len(entries))
	}
	if entries[treeA].PortNos()[0] != 1 {
		t.Fatalf("entries[treeA] = %v, want port 1", entries[treeA])
	}

	entries[treeA] = blueprint.EmptyMask()
	if mask, _ := rt.Lookup(treeA); mask.IsEmpty() {
		t.Fatal("mutating the Entries() snapshot must not affect the live table")
	}
}
