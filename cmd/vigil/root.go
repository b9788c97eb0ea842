package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath  string
	environment string

	// exitCode is set by subcommands that map health state to the
	// process exit status.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Multi-service health monitor with alerting and auto-recovery",
	Long: `Vigil runs bounded health checks against HTTP endpoints, TCP ports,
processes, databases, and caches, tracks failure streaks across
invocations, and fires alerts and recovery commands when outages are
sustained rather than blips.

One invocation is one batch: run it from cron every few minutes, or use
"vigil watch" where no external scheduler is available.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vigil.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "local", "environment to check (local|staging|production)")
}
