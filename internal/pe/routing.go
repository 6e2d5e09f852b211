package pe

import (
	"sync"

	"github.com/google/uuid"

	"fabricmesh/internal/blueprint"
)

// RoutingTable maps a spanning tree to the set of local ports a packet
// on that tree should fan out to. It is written by the Cell Agent (via
// tree-name, stack-tree and delete-tree processing) and read by the Packet Engine on
// every forwarded packet, so it is the one piece of state the two
// threads genuinely share rather than pass by channel.
//
// blueprint.SelfPort (port 0) doubles as the "deliver to this cell's
// Cell Agent" bit within a route's mask: a tree whose mask has that bit
// set is, at least partly, addressed to the local application path.
type RoutingTable struct {
	mu     sync.RWMutex
	routes map[uuid.UUID]blueprint.Mask
}

// NewRoutingTable returns an empty table. For a tree with no route yet
// Lookup returns an empty mask and false, and the Packet Engine hands
// such a packet to the C-Model instead of dropping it.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{routes: make(map[uuid.UUID]blueprint.Mask)}
}

// Set installs or replaces the route for tree.
func (rt *RoutingTable) Set(tree uuid.UUID, mask blueprint.Mask) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[tree] = mask
}

// Delete removes tree's route, e.g. once its tree is torn down.
func (rt *RoutingTable) Delete(tree uuid.UUID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.routes, tree)
}

// Lookup returns tree's configured fan-out mask and whether one has
// been installed. Callers that get false should treat the packet as
// locally addressed rather than drop it.
func (rt *RoutingTable) Lookup(tree uuid.UUID) (blueprint.Mask, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	mask, ok := rt.routes[tree]
	return mask, ok
}

// Entries returns a snapshot of every installed route, keyed by tree
// UUID. Used for diagnostic printing (internal/console's "p" command),
// never on the packet-forwarding hot path.
func (rt *RoutingTable) Entries() map[uuid.UUID]blueprint.Mask {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make(map[uuid.UUID]blueprint.Mask, len(rt.routes))
	for k, v := range rt.routes {
		out[k] = v
	}
	return out
}
