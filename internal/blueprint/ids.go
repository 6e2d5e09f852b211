// Package blueprint holds the static, read-only description of a rack:
// cells, per-cell port counts, border-port assignments, and the edge
// list. It is built once at startup and never mutated afterward.
package blueprint

import "fmt"

// CellNo is a dense non-negative index identifying one cell within the rack.
type CellNo uint32

// PortNo is a dense non-negative index within a cell. PortNo 0 is
// reserved as "self" and is never wired to a link.
type PortNo uint32

// SelfPort is the reserved, never-wired port 0.
const SelfPort PortNo = 0

// PortNumber is a validated PortNo carrying its owning cell's port
// count, so range checks happen once at construction instead of at
// every use site.
type PortNumber struct {
	No       PortNo
	NumPorts PortNo
}

// NewPortNumber validates no against numPorts and returns a PortNumber.
func NewPortNumber(no, numPorts PortNo) (PortNumber, error) {
	if no >= numPorts {
		return PortNumber{}, fmt.Errorf("blueprint.NewPortNumber: port %d out of range for %d ports", no, numPorts)
	}
	return PortNumber{No: no, NumPorts: numPorts}, nil
}

// IsSelf reports whether this PortNumber names the reserved port 0.
func (p PortNumber) IsSelf() bool { return p.No == SelfPort }

func (p PortNumber) String() string { return fmt.Sprintf("P:%d/%d", p.No, p.NumPorts) }

// Edge is an unordered pair of distinct cells. Construction normalizes
// ordering so the same edge always compares and hashes equal regardless
// of which endpoint was named first.
type Edge struct {
	A, B CellNo
}

// NewEdge builds a normalized Edge, rejecting a==b.
func NewEdge(a, b CellNo) (Edge, error) {
	if a == b {
		return Edge{}, fmt.Errorf("blueprint.NewEdge: self-loop at cell %d", a)
	}
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}, nil
}

func (e Edge) String() string { return fmt.Sprintf("(%d,%d)", e.A, e.B) }

// Other returns the endpoint of e that is not c. Panics if c is not an
// endpoint of e; callers only call this after confirming membership.
func (e Edge) Other(c CellNo) CellNo {
	switch c {
	case e.A:
		return e.B
	case e.B:
		return e.A
	default:
		panic(fmt.Sprintf("blueprint.Edge.Other: %d is not an endpoint of %s", c, e))
	}
}

// CellType distinguishes a Border cell (faces the NOC/outside) from an
// Interior cell.
type CellType int

const (
	Interior CellType = iota
	Border
)

func (t CellType) String() string {
	if t == Border {
		return "Border"
	}
	return "Interior"
}

// CellConfig is an opaque capacity hint passed to the Cell Agent.
type CellConfig int

const (
	Small CellConfig = iota
	Medium
	Large
)

func (c CellConfig) String() string {
	switch c {
	case Small:
		return "Small"
	case Medium:
		return "Medium"
	default:
		return "Large"
	}
}
