package fabric

import (
	"fmt"

	"fabricmesh/internal/blueprint"
)

// LinkID names a Link stably across the trace stream: the normalized
// edge it carries.
type LinkID string

// NewLinkID derives a LinkID from a blueprint edge.
func NewLinkID(e blueprint.Edge) LinkID {
	return LinkID(fmt.Sprintf("link:%d-%d", e.A, e.B))
}

// PortID names one port of one cell stably across the trace stream.
type PortID string

// NewPortID derives a PortID from a cell and port number.
func NewPortID(cell blueprint.CellNo, port blueprint.PortNo) PortID {
	return PortID(fmt.Sprintf("cell:%d/port:%d", cell, port))
}
