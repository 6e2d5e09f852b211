package config

import (
	"os"
	"path/filepath"
	"testing"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/ca"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `{
  "max_num_phys_ports_per_cell": 8,
  "min_num_border_cells": 1,
  "quench": "RootPort",
  "continue_on_error": false,
  "discover_quiescence_factor": 2.5,
  "output_dir_name": "out",
  "output_file_name": "trace.ndjson",
  "kafka_server": "localhost:9092",
  "kafka_topic": "fabricmesh",
  "num_cells": 3,
  "num_ports_per_cell": 4,
  "border_cell_ports": {"0": [2]},
  "edge_list": [{"a": 0, "b": 1}, {"a": 1, "b": 2}],
  "geometry": [{"row": 0, "col": 0}, {"row": 0, "col": 1}, {"row": 0, "col": 2}],
  "trace_options": {"kafka_server": "localhost:9092", "kafka_topic": "fabricmesh"},
  "debug_options": {"verbose": true}
}`

func TestLoad_ValidDocumentRoundTrips(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumCells != 3 {
		t.Fatalf("NumCells = %d, want 3", cfg.NumCells)
	}
	if cfg.Quench != "RootPort" {
		t.Fatalf("Quench = %q, want RootPort", cfg.Quench)
	}
	if len(cfg.EdgeList) != 2 {
		t.Fatalf("EdgeList len = %d, want 2", len(cfg.EdgeList))
	}
}

func TestLoad_MissingFileIsIOError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_MalformedJSONFails(t *testing.T) {
	path := writeConfig(t, `{"num_cells": `)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for malformed JSON")
	}
}

func TestValidate_RejectsZeroCells(t *testing.T) {
	cfg := Config{NumCells: 0, NumPortsPerCell: 4, OutputDirName: "out", OutputFileName: "f"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: expected error for num_cells = 0")
	}
}

func TestValidate_RejectsPortsOverMax(t *testing.T) {
	cfg := Config{
		NumCells:               1,
		NumPortsPerCell:        10,
		MaxNumPhysPortsPerCell: 8,
		OutputDirName:          "out",
		OutputFileName:         "f",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: expected error for num_ports_per_cell exceeding max")
	}
}

func TestValidate_RejectsUnknownQuench(t *testing.T) {
	cfg := Config{NumCells: 1, NumPortsPerCell: 4, Quench: "bogus", OutputDirName: "out", OutputFileName: "f"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: expected error for unknown quench")
	}
}

func TestParseQuench(t *testing.T) {
	cases := map[string]ca.Quench{
		"":          ca.QuenchSimple,
		"Simple":    ca.QuenchSimple,
		"rootport":  ca.QuenchRootPort,
		"MyPort":    ca.QuenchMyPort,
		" myport  ": ca.QuenchMyPort,
	}
	for in, want := range cases {
		got, err := ParseQuench(in)
		if err != nil {
			t.Fatalf("ParseQuench(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseQuench(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseQuench("nonsense"); err == nil {
		t.Fatal("ParseQuench: expected error for unknown value")
	}
}

func TestBlueprintParams_ResolvesCellMapsAndEdges(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	params, err := cfg.BlueprintParams()
	if err != nil {
		t.Fatalf("BlueprintParams: %v", err)
	}
	if params.NumCells != 3 {
		t.Fatalf("NumCells = %d, want 3", params.NumCells)
	}
	if len(params.Edges) != 2 {
		t.Fatalf("Edges len = %d, want 2", len(params.Edges))
	}
	ports, ok := params.BorderCellPorts[0]
	if !ok || len(ports) != 1 || ports[0] != 2 {
		t.Fatalf("BorderCellPorts[0] = %v, want [2]", ports)
	}
}

func TestBlueprintParams_RejectsBadCellKey(t *testing.T) {
	cfg := Config{
		NumCells:        2,
		NumPortsPerCell: 4,
		BorderCellPorts: map[string][]blueprint.PortNo{"not-a-number": {1}},
	}
	if _, err := cfg.BlueprintParams(); err == nil {
		t.Fatal("BlueprintParams: expected error for non-numeric cell key")
	}
}

func TestPrepareOutputDir_WipesAndRecreates(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}
	stale := filepath.Join(outDir, "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	cfg := &Config{OutputDirName: outDir}
	got, err := cfg.PrepareOutputDir()
	if err != nil {
		t.Fatalf("PrepareOutputDir: %v", err)
	}
	if got != outDir {
		t.Fatalf("PrepareOutputDir returned %q, want %q", got, outDir)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("PrepareOutputDir: stale file survived wipe")
	}
}
