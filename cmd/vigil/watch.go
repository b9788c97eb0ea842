package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vigil/config"
	"vigil/observe"
	"vigil/report"
	"vigil/server"
)

var (
	listenAddr      string
	intervalMinutes int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run check cycles on an interval and serve live status",
	Long: `Watch runs a check cycle immediately and then on a fixed interval,
exposing the latest snapshot over HTTP at /status and pushing updates to
WebSocket clients at /status/ws. It runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "HTTP listen address (overrides listen_addr)")
	watchCmd.Flags().IntVarP(&intervalMinutes, "interval", "i", 0, "check interval in minutes (overrides interval_minutes)")
	watchCmd.Flags().StringVar(&statePath, "state", "", "state file path (overrides state_path)")
	watchCmd.Flags().BoolVar(&noRecover, "no-recover", false, "skip recovery actions")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg)
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if intervalMinutes > 0 {
		cfg.IntervalMinutes = intervalMinutes
	}

	if !config.ValidEnvironment(environment) {
		return fmt.Errorf("unknown environment %q", environment)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := buildObserver(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	mon, err := buildMonitor(cfg, obs)
	if err != nil {
		return err
	}

	reporter := report.New(report.Config{FailOnWarn: cfg.FailOnWarn})
	srv := server.New(cfg.ListenAddr, reporter)

	log := obs.Logger()
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	go func() {
		_ = mon.Watch(ctx, interval, srv.Publish)
	}()

	log.Info(ctx, "watching",
		observe.Field{Key: "listen", Value: cfg.ListenAddr},
		observe.Field{Key: "interval", Value: interval.String()},
		observe.Field{Key: "environment", Value: environment})

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
