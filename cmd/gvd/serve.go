package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/config"
	"github.com/gamevault/gamevault/internal/coordinator"
	"github.com/gamevault/gamevault/internal/monitor"
	"github.com/gamevault/gamevault/internal/registry"
	"github.com/gamevault/gamevault/internal/server"
	"github.com/gamevault/gamevault/internal/syncsvc"
	"github.com/gamevault/gamevault/internal/telemetry"
	"github.com/gamevault/gamevault/internal/txn"
	"github.com/gamevault/gamevault/internal/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination daemon (HTTP API + background workers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildStack wires the shared pieces every command needs.
func buildStack() (*config.Config, *registry.Registry, *broker.Broker, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := registry.New()
	bk := broker.New(reg, cfg.Nodes())
	return cfg, reg, bk, nil
}

func runServe(ctx context.Context) error {
	cfg, reg, bk, err := buildStack()
	if err != nil {
		return err
	}
	defer bk.CloseAll()

	if err := telemetry.Init(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry shutdown: %v\n", err)
		}
	}()

	coord := coordinator.New(bk, reg)
	sync := syncsvc.New(bk, reg, cfg.SyncInterval)
	mon := monitor.New(bk, cfg.HealthInterval)

	manager := txn.New(bk, reg)
	if err := manager.SetIsolationLevel(types.IsolationLevel(cfg.IsolationLevel)); err != nil {
		return err
	}
	retry := txn.NewRetryManager(manager, cfg.RetryInterval)

	srv := server.New(cfg.HTTPAddr, coord, sync, bk, reg, bk)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return sync.Run(ctx) })
	g.Go(func() error { return mon.Run(ctx) })
	g.Go(func() error { return retry.Run(ctx) })

	fmt.Printf("gvd serving on %s (sync %s, health %s, retry %s)\n",
		cfg.HTTPAddr, cfg.SyncInterval, cfg.HealthInterval, cfg.RetryInterval)
	return g.Wait()
}
