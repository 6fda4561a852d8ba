package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// buildGatewayCmd creates the "gateway" command (spec.md §6.4): runs the
// WebSocket control plane plus the goal runner, autonomous mind, and
// scheduler, until a shutdown signal arrives.
func buildGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway, goal runner, autonomous mind, and scheduler",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := unlockVault(cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	rt, err := buildRuntime(cfg, v, logger)
	if err != nil {
		return startupErr(err)
	}
	defer rt.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rt.goalRunner.Start(ctx); err != nil {
		return startupErr(fmt.Errorf("resume goals: %w", err))
	}
	defer rt.goalRunner.Stop()

	if cfg.Mind.Enabled {
		rt.mindWorker.Start(ctx)
		defer rt.mindWorker.Stop()
	}

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	go func() {
		if err := rt.sched.Run(schedCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	go rt.RunProcessReaper(ctx, 5*time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/", rt.gatewaySrv)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Gateway.ListenAddr,
		Handler: mux,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.Gateway.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fatalShutdownErr(fmt.Errorf("gateway listener failed: %w", err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fatalShutdownErr(fmt.Errorf("graceful shutdown: %w", err))
	}

	logger.Info("gateway stopped gracefully")
	return nil
}
