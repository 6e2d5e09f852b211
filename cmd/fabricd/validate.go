package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a config document and build its Blueprint without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configPath, cmd)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "rack.json", "path to the config document")
	return cmd
}

func validateConfig(configPath string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	params, err := cfg.BlueprintParams()
	if err != nil {
		return fmt.Errorf("derive blueprint params: %w", err)
	}

	bp, err := blueprint.New(params)
	if err != nil {
		return fmt.Errorf("build blueprint: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ok: %d cells, %d border, %d edges\n", bp.NumCells(), len(bp.BorderCells()), len(bp.Edges()))
	return nil
}
