package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"fabricmesh/internal/blueprint"
	"fabricmesh/internal/config"
	"fabricmesh/internal/console"
	"fabricmesh/internal/noc"
	"fabricmesh/internal/noc/api"
	"fabricmesh/internal/rack"
	"fabricmesh/internal/trace"
)

// autoBreakDelay is how long after startup a configured auto_break edge
// is taken down, giving the rack time to finish NOC bootstrap first.
const autoBreakDelay = 10 * time.Second

// traceShutdownTimeout bounds how long Close waits to flush the trace
// writer and Kafka sink on the way out.
const traceShutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	var configPath string
	var apiAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a rack from a config document and drive it interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRack(ctx, configPath, apiAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "rack.json", "path to the config document")
	cmd.Flags().StringVar(&apiAddr, "api-addr", ":7443", "listen address for the NOC application gRPC service")
	return cmd
}

func runRack(ctx context.Context, configPath, apiAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	outputDir, err := cfg.PrepareOutputDir()
	if err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}

	sys, err := trace.New(trace.Options{
		OutputDir:   outputDir,
		OutputFile:  cfg.OutputFileName,
		KafkaServer: cfg.TraceOptions.KafkaServer,
		KafkaTopic:  cfg.TraceOptions.KafkaTopic,
		NTPPool:     cfg.TraceOptions.NTPPool,
	})
	if err != nil {
		return fmt.Errorf("start trace system: %w", err)
	}
	otel.SetTracerProvider(sys.Provider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), traceShutdownTimeout)
		defer cancel()
		if err := sys.Close(shutdownCtx); err != nil {
			slog.Error("trace system shutdown failed", "err", err)
		}
	}()

	params, err := cfg.BlueprintParams()
	if err != nil {
		return fmt.Errorf("derive blueprint params: %w", err)
	}
	bp, err := blueprint.New(params)
	if err != nil {
		return fmt.Errorf("build blueprint: %w", err)
	}

	quench, err := config.ParseQuench(cfg.Quench)
	if err != nil {
		return fmt.Errorf("parse quench: %w", err)
	}

	r, err := rack.Build(bp, quench, cfg.ContinueOnError, sys.Tracer)
	if err != nil {
		return fmt.Errorf("build rack: %w", err)
	}

	toNOC, fromNOC, _ := r.NOCChannels()
	n := noc.New(fromNOC, toNOC)
	if cfg.DiscoverQuiescenceFactor > 0 {
		n.AckTimeout = time.Duration(cfg.DiscoverQuiescenceFactor * float64(time.Second))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		r.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		if err := n.Run(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("noc bootstrap failed", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := api.ListenAndServe(runCtx, apiAddr, n); err != nil && runCtx.Err() == nil {
			slog.Error("noc api failed", "err", err)
		}
	}()

	if cfg.AutoBreak != nil {
		edge, err := blueprint.NewEdge(blueprint.CellNo(cfg.AutoBreak.A), blueprint.CellNo(cfg.AutoBreak.B))
		if err != nil {
			slog.Warn("invalid auto_break edge", "err", err)
		} else {
			r.ScheduleBreak(edge, autoBreakDelay)
		}
	}

	console.ConfigureColorProfile(os.Stdout)
	c := console.New(r, n, cfg.Geometry, os.Stdin, os.Stdout)
	c.Run(runCtx)

	cancel()
	r.Stop()
	wg.Wait()
	return nil
}
