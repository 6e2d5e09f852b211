// Package config loads and validates the single JSON configuration
// document described in section 6: blueprint shape, runtime
// policy flags, and the trace/output settings the rest of the process
// wires up at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
	"fabricmesh/internal/ferr"
)

// Edge is the JSON-friendly form of a blueprint.Edge.
type Edge struct {
	A uint32 `json:"a"`
	B uint32 `json:"b"`
}

// Geometry is one cell's display coordinate, consumed only by
// internal/console for the "d" (print rack) layout.
type Geometry struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// TraceOptions controls internal/trace's output.
type TraceOptions struct {
	KafkaServer string `json:"kafka_server"`
	KafkaTopic  string `json:"kafka_topic"`
	NTPPool     string `json:"ntp_pool,omitempty"`
}

// DebugOptions is decoded from the debug_options key; no other package
// reads it.
type DebugOptions struct {
	Verbose bool `json:"verbose,omitempty"`
}

// Config is the decoded form of the config file section 6 names.
type Config struct {
	MaxNumPhysPortsPerCell   blueprint.PortNo           `json:"max_num_phys_ports_per_cell"`
	MinNumBorderCells        int                        `json:"min_num_border_cells"`
	Quench                   string                     `json:"quench"`
	ContinueOnError          bool                       `json:"continue_on_error"`
	AutoBreak                *Edge                      `json:"auto_break,omitempty"`
	DiscoverQuiescenceFactor float64                    `json:"discover_quiescence_factor"`
	OutputDirName            string                     `json:"output_dir_name"`
	OutputFileName           string                     `json:"output_file_name"`
	KafkaServer              string                     `json:"kafka_server"`
	KafkaTopic               string                     `json:"kafka_topic"`
	NumCells                 int                        `json:"num_cells"`
	NumPortsPerCell          blueprint.PortNo           `json:"num_ports_per_cell"`
	CellPortExceptions       map[string]blueprint.PortNo `json:"cell_port_exceptions,omitempty"`
	BorderCellPorts          map[string][]blueprint.PortNo `json:"border_cell_ports"`
	EdgeList                 []Edge                     `json:"edge_list"`
	Geometry                 []Geometry                 `json:"geometry,omitempty"`
	TraceOptions             TraceOptions               `json:"trace_options"`
	DebugOptions             DebugOptions               `json:"debug_options"`
}

// Load reads and validates the config document at path. IO failure is
// fatal per section 7; so is a structurally invalid document.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferr.IO("config.Load", fmt.Errorf("read %s: %w", path, err))
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, ferr.Validationf("config.Load", "Config: malformed JSON in %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants Load relies on beyond what
// blueprint.New itself checks once the Blueprint is actually built.
func (c *Config) Validate() error {
	if c.NumCells < 1 {
		return ferr.Validation("config.Validate", "Config: num_cells must be >= 1")
	}
	if c.NumPortsPerCell == 0 {
		return ferr.Validation("config.Validate", "Config: num_ports_per_cell must be > 0")
	}
	if c.MaxNumPhysPortsPerCell != 0 && c.NumPortsPerCell > c.MaxNumPhysPortsPerCell {
		return ferr.Validationf("config.Validate", "Config: num_ports_per_cell %d exceeds max_num_phys_ports_per_cell %d", c.NumPortsPerCell, c.MaxNumPhysPortsPerCell)
	}
	if _, err := ParseQuench(c.Quench); err != nil {
		return err
	}
	if c.OutputDirName == "" {
		return ferr.Validation("config.Validate", "Config: output_dir_name must be set")
	}
	if c.OutputFileName == "" {
		return ferr.Validation("config.Validate", "Config: output_file_name must be set")
	}
	return nil
}

// ParseQuench maps a config string to a ca.Quench value.
func ParseQuench(s string) (ca.Quench, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple":
		return ca.QuenchSimple, nil
	case "rootport":
		return ca.QuenchRootPort, nil
	case "myport":
		return ca.QuenchMyPort, nil
	default:
		return 0, ferr.Validationf("config.ParseQuench", "Config: unknown quench %q", s)
	}
}

// BlueprintParams translates the decoded config into blueprint.Params,
// resolving string-keyed cell maps into blueprint.CellNo keys.
func (c *Config) BlueprintParams() (blueprint.Params, error) {
	exceptions := make(map[blueprint.CellNo]blueprint.PortNo, len(c.CellPortExceptions))
	for k, v := range c.CellPortExceptions {
		cell, err := parseCellNo(k)
		if err != nil {
			return blueprint.Params{}, err
		}
		exceptions[cell] = v
	}

	borderPorts := make(map[blueprint.CellNo][]blueprint.PortNo, len(c.BorderCellPorts))
	for k, v := range c.BorderCellPorts {
		cell, err := parseCellNo(k)
		if err != nil {
			return blueprint.Params{}, err
		}
		borderPorts[cell] = v
	}

	edges := make([]blueprint.Edge, 0, len(c.EdgeList))
	for _, e := range c.EdgeList {
		edge, err := blueprint.NewEdge(blueprint.CellNo(e.A), blueprint.CellNo(e.B))
		if err != nil {
			return blueprint.Params{}, ferr.Chain("config.BlueprintParams", err)
		}
		edges = append(edges, edge)
	}

	return blueprint.Params{
		NumCells:        c.NumCells,
		NumPortsPerCell: c.NumPortsPerCell,
		MinBorderCells:  c.MinNumBorderCells,
		PortExceptions:  exceptions,
		BorderCellPorts: borderPorts,
		Edges:           edges,
	}, nil
}

func parseCellNo(s string) (blueprint.CellNo, error) {
	var n uint32
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, ferr.Validationf("config.parseCellNo", "Config: bad cell number key %q: %v", s, err)
	}
	return blueprint.CellNo(n), nil
}

// PrepareOutputDir wipes and recreates the configured output
// directory, per section 6's startup contract.
func (c *Config) PrepareOutputDir() (string, error) {
	if err := os.RemoveAll(c.OutputDirName); err != nil {
		return "", ferr.IO("config.PrepareOutputDir", fmt.Errorf("remove %s: %w", c.OutputDirName, err))
	}
	if err := os.MkdirAll(c.OutputDirName, 0o755); err != nil {
		return "", ferr.IO("config.PrepareOutputDir", fmt.Errorf("create %s: %w", c.OutputDirName, err))
	}
	return c.OutputDirName, nil
}
