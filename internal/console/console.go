// Package console implements the Section 6 interactive CLI: after
// startup the operator drives the running Rack with single-character
// commands — d print rack, c print one cell, l break a link, p print a
// cell's forwarding table, m deploy a manifest from a file, x exit.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/config"
	"fabricmesh/internal/noc"
	"fabricmesh/internal/rack"
)

// Console drives a running Rack and NOC from single-character operator
// commands read from in, writing rendered output to out.
type Console struct {
	rack     *rack.Rack
	noc      *noc.NOC
	geometry []config.Geometry // indexed by CellNo, per the config document's [(row,col)] list

	in  *bufio.Reader
	out io.Writer
}

// New builds a Console. geometry may be nil or shorter than the cell
// count; cells with no entry print "-" for row/col.
func New(r *rack.Rack, n *noc.NOC, geometry []config.Geometry, in io.Reader, out io.Writer) *Console {
	return &Console{rack: r, noc: n, geometry: geometry, in: bufio.NewReader(in), out: out}
}

func (c *Console) geometryFor(no blueprint.CellNo) (config.Geometry, bool) {
	if int(no) < 0 || int(no) >= len(c.geometry) {
		return config.Geometry{}, false
	}
	return c.geometry[no], true
}

// Run reads commands until ctx is canceled, the input stream reaches
// EOF, or the operator types x. The return value is the process exit
// code: 0 in every case above, since only a fatal construction failure
// (handled before Run is ever called) produces a non-zero exit.
func (c *Console) Run(ctx context.Context) int {
	fmt.Fprintln(c.out, Muted("commands: d print rack  c print cell  l break link  p forwarding table  m deploy manifest  x exit"))

	for {
		select {
		case <-ctx.Done():
			return 0
		default:
		}

		fmt.Fprint(c.out, "> ")
		line, err := c.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return 0
			}
			fmt.Fprintln(c.out, ErrorMsg("read command: %v", err))
			continue
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}

		switch cmd[0] {
		case 'd':
			c.printRack()
		case 'c':
			c.printCell()
		case 'l':
			c.breakLink()
		case 'p':
			c.printForwardingTable()
		case 'm':
			c.deployManifest(ctx)
		case 'x':
			return 0
		default:
			fmt.Fprintln(c.out, WarnMsg("unknown command %q", cmd))
		}
	}
}

func (c *Console) prompt(label string) string {
	fmt.Fprintf(c.out, "%s: ", label)
	line, _ := c.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (c *Console) promptCellNo(label string) (blueprint.CellNo, error) {
	s := c.prompt(label)
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cell number %q: %w", s, err)
	}
	return blueprint.CellNo(n), nil
}

// printRack implements "d": every cell's shape plus its display
// geometry, and the up/down status of every wired edge.
func (c *Console) printRack() {
	bp := c.rack.Blueprint()

	headers := []string{"cell", "type", "ports", "border ports", "row", "col"}
	var rows [][]string
	for _, spec := range bp.Cells() {
		row, col := "-", "-"
		if g, ok := c.geometryFor(spec.No); ok {
			row, col = strconv.Itoa(g.Row), strconv.Itoa(g.Col)
		}
		rows = append(rows, []string{
			strconv.Itoa(int(spec.No)),
			spec.Type.String(),
			strconv.Itoa(int(spec.NumPorts)),
			fmt.Sprint(spec.BorderPorts.PortNos()),
			row, col,
		})
	}
	fmt.Fprintln(c.out, Table(headers, rows))

	fmt.Fprintln(c.out, Bold("edges"))
	for _, e := range bp.Edges() {
		status := "?"
		if link, ok := c.rack.Link(e); ok {
			status = connectedLabel(link.Connected())
		}
		fmt.Fprintf(c.out, "  %s  %s\n", e, status)
	}
}

// printCell implements "c": one cell's full port table.
func (c *Console) printCell() {
	no, err := c.promptCellNo("cell number")
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("%v", err))
		return
	}
	cell := c.rack.Cell(no)
	if cell == nil {
		fmt.Fprintln(c.out, ErrorMsg("no such cell %d", no))
		return
	}

	headers := []string{"port", "kind", "state"}
	var rows [][]string
	for p := blueprint.PortNo(0); p < cell.Spec.NumPorts; p++ {
		kind := "interior"
		switch {
		case p == blueprint.SelfPort:
			kind = "self"
		case cell.Spec.BorderPorts.Has(p):
			kind = "border"
		}
		state := "-"
		if p != blueprint.SelfPort {
			if port := cell.Port(p); port != nil {
				state = connectedLabel(port.Connected())
			}
		}
		rows = append(rows, []string{strconv.Itoa(int(p)), kind, state})
	}
	fmt.Fprintln(c.out, Table(headers, rows))
}

// breakLink implements "l": prompts for the two cell endpoints of an
// edge and breaks the Link wired for it. Operators wanting the
// config-driven auto_break behavior instead never need this command —
// that path is wired at Rack startup, not through the console.
func (c *Console) breakLink() {
	a, err := c.promptCellNo("endpoint A")
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("%v", err))
		return
	}
	b, err := c.promptCellNo("endpoint B")
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("%v", err))
		return
	}
	edge, err := blueprint.NewEdge(a, b)
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("%v", err))
		return
	}
	link, ok := c.rack.Link(edge)
	if !ok {
		fmt.Fprintln(c.out, ErrorMsg("no link wired for edge %s", edge))
		return
	}
	link.Break()
	fmt.Fprintln(c.out, SuccessMsg("broke link %s", edge))
}

// printForwardingTable implements "p": every tree this cell's Packet
// Engine currently knows how to fan out.
func (c *Console) printForwardingTable() {
	no, err := c.promptCellNo("cell number")
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("%v", err))
		return
	}
	cell := c.rack.Cell(no)
	if cell == nil {
		fmt.Fprintln(c.out, ErrorMsg("no such cell %d", no))
		return
	}

	headers := []string{"tree", "ports"}
	var rows [][]string
	for tree, mask := range cell.Routes.Entries() {
		rows = append(rows, []string{tree.String(), fmt.Sprint(mask.PortNos())})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	fmt.Fprintln(c.out, Table(headers, rows))
}

// deployManifest implements "m": reads a manifest body from a file the
// operator names and submits it to the NOC's application channel for
// delivery over the base tree.
func (c *Console) deployManifest(ctx context.Context) {
	tree := c.prompt("tree name")
	path := c.prompt("manifest file path")

	body, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(c.out, ErrorMsg("read manifest: %v", err))
		return
	}
	c.noc.Submit(ctx, noc.Manifest{Tree: tree, Body: body})
	fmt.Fprintln(c.out, SuccessMsg("submitted manifest for tree %q (%d bytes)", tree, len(body)))
}
