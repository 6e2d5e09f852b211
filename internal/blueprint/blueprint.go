package blueprint

import (
	"fmt"
	"sort"

	"fabricmesh/internal/ferr"
)

// CellSpec is the static description of one cell's shape. NumPorts
// counts every port slot this cell has, including the reserved,
// never-wired port 0 — so a cell configured for N wireable ports has
// NumPorts == N+1, and FullMask(NumPorts) is exactly its full port set.
type CellSpec struct {
	No            CellNo
	Type          CellType
	NumPorts      PortNo
	BorderPorts   Mask
	InteriorPorts Mask
	Config        CellConfig
}

// Blueprint is the pure, read-only data built once at startup from
// config and never mutated afterward.
type Blueprint struct {
	cells []CellSpec
	edges []Edge
}

// Params collects the raw construction inputs as decoded from config.
type Params struct {
	NumCells         int
	NumPortsPerCell  PortNo
	MinBorderCells   int
	PortExceptions   map[CellNo]PortNo   // cell -> override port count
	BorderCellPorts  map[CellNo][]PortNo // cell -> its border ports (non-zero)
	Edges            []Edge
	DefaultCellConfig CellConfig
}

// New validates params and builds a Blueprint, or fails with a
// Validation error tagged BorderCellCount, CellCount, or PortAssignment
// as described by section 4.A.
func New(p Params) (*Blueprint, error) {
	if p.NumCells <= 0 {
		return nil, ferr.Validation("blueprint.New", "CellCount: num_cells must be >= 1")
	}
	if len(p.BorderCellPorts) < p.MinBorderCells {
		return nil, ferr.Validationf("blueprint.New", "BorderCellCount: have %d border cells, need >= %d", len(p.BorderCellPorts), p.MinBorderCells)
	}

	cells := make([]CellSpec, p.NumCells)
	for no := 0; no < p.NumCells; no++ {
		cellNo := CellNo(no)
		numPorts := p.NumPortsPerCell
		if override, ok := p.PortExceptions[cellNo]; ok {
			numPorts = override
		}
		if numPorts == 0 {
			return nil, ferr.Validationf("blueprint.New", "CellCount: cell %d has zero ports", cellNo)
		}

		borderPortNos, isBorder := p.BorderCellPorts[cellNo]
		var borderMask Mask
		for _, port := range borderPortNos {
			if port == SelfPort {
				return nil, ferr.Validationf("blueprint.New", "PortAssignment: cell %d names port 0 as a border port", cellNo)
			}
			if port >= numPorts {
				return nil, ferr.Validationf("blueprint.New", "PortAssignment: cell %d border port %d out of range for %d ports", cellNo, port, numPorts)
			}
			if borderMask.Has(port) {
				return nil, ferr.Validationf("blueprint.New", "PortAssignment: cell %d lists border port %d twice", cellNo, port)
			}
			borderMask |= 1 << port
		}
		interiorMask := AllButZero(numPorts) &^ borderMask

		cellType := Interior
		if isBorder {
			cellType = Border
		}

		cfg := p.DefaultCellConfig
		cells[no] = CellSpec{
			No:            cellNo,
			Type:          cellType,
			NumPorts:      numPorts,
			BorderPorts:   borderMask,
			InteriorPorts: interiorMask,
			Config:        cfg,
		}
	}

	for _, e := range p.Edges {
		if int(e.A) >= p.NumCells || int(e.B) >= p.NumCells {
			return nil, ferr.Validationf("blueprint.New", "CellCount: edge %s references a cell outside 0..%d", e, p.NumCells-1)
		}
	}

	edges := append([]Edge(nil), p.Edges...)
	return &Blueprint{cells: cells, edges: edges}, nil
}

// NumCells returns the number of cells in the rack.
func (b *Blueprint) NumCells() int { return len(b.cells) }

// Cell returns the CellSpec for no, or an error if no is out of range.
func (b *Blueprint) Cell(no CellNo) (CellSpec, error) {
	if int(no) >= len(b.cells) {
		return CellSpec{}, fmt.Errorf("blueprint.Cell: %d out of range for %d cells", no, len(b.cells))
	}
	return b.cells[no], nil
}

// Cells returns every cell's spec, ordered by ascending CellNo.
func (b *Blueprint) Cells() []CellSpec {
	return append([]CellSpec(nil), b.cells...)
}

// BorderCells returns the specs of every Border cell, ascending by CellNo.
func (b *Blueprint) BorderCells() []CellSpec {
	var out []CellSpec
	for _, c := range b.cells {
		if c.Type == Border {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out
}

// Edges returns the edge list.
func (b *Blueprint) Edges() []Edge {
	return append([]Edge(nil), b.edges...)
}
