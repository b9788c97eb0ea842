package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vigil/aggregate"
	"vigil/alert"
	"vigil/config"
	"vigil/monitor"
	"vigil/observe"
	"vigil/report"
	"vigil/state"
)

var (
	timeoutSeconds int
	jsonOutput     bool
	statePath      string
	failOnWarn     bool
	noRecover      bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run every probe once and report the outcome",
	Long: `Check runs the configured probes for the selected environment,
updates persisted failure streaks, fires alerts and recovery actions
where thresholds are met, and prints a per-probe report.

The exit code is 0 when the overall state is PASS, 1 when any
mandatory probe failed. WARN exits 0 unless --fail-on-warn is set.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&timeoutSeconds, "timeout", "t", 0, "overall run budget in seconds (overrides budget_seconds)")
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the report as JSON")
	checkCmd.Flags().StringVar(&statePath, "state", "", "state file path (overrides state_path)")
	checkCmd.Flags().BoolVar(&failOnWarn, "fail-on-warn", false, "exit nonzero when the overall state is WARN")
	checkCmd.Flags().BoolVar(&noRecover, "no-recover", false, "skip recovery actions this run")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg)

	if !config.ValidEnvironment(environment) {
		return fmt.Errorf("unknown environment %q", environment)
	}

	ctx := cmd.Context()

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

	rep, err := mon.RunOnce(ctx)
	if err != nil {
		return err
	}

	reporter := report.New(report.Config{FailOnWarn: cfg.FailOnWarn})
	if jsonOutput {
		out, err := reporter.RenderJSON(rep.Snapshot)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
	} else {
		fmt.Fprint(os.Stdout, reporter.Render(rep.Snapshot))
	}

	exitCode = reporter.ExitCode(rep.Snapshot.Overall)
	return nil
}

// applyOverrides folds command-line flags into the loaded configuration.
func applyOverrides(cfg *config.Config) {
	if timeoutSeconds > 0 {
		cfg.BudgetSeconds = timeoutSeconds
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}
	if failOnWarn {
		cfg.FailOnWarn = true
	}
}

func buildObserver(ctx context.Context, cfg config.Config) (observe.Observer, error) {
	return observe.NewObserver(ctx, observe.Config{
		ServiceName: "vigil",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.TracingExporter != "" && cfg.Observe.TracingExporter != "none",
			Exporter:  cfg.Observe.TracingExporter,
			SamplePct: cfg.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.MetricsExporter != "" && cfg.Observe.MetricsExporter != "none",
			Exporter: cfg.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Observe.LogLevel,
		},
	})
}

// buildMonitor wires every component a check cycle needs.
func buildMonitor(cfg config.Config, obs observe.Observer) (*monitor.Monitor, error) {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if len(reg.ProbesFor(environment)) == 0 {
		return nil, fmt.Errorf("no probes enabled for environment %q", environment)
	}

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	runner := aggregate.NewRunner(aggregate.Config{
		Budget:        time.Duration(cfg.BudgetSeconds) * time.Second,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	var notifier *alert.Notifier
	if cfg.WebhookURL != "" {
		notifier = alert.NewNotifier(alert.WebhookConfig{URL: cfg.WebhookURL})
	}

	return monitor.New(
		monitor.Config{Environment: environment, NoRecover: noRecover},
		monitor.Deps{
			Registry: reg,
			Runner:   runner,
			Policy:   buildPolicy(cfg),
			Recovery: buildRecovery(cfg),
			Store:    state.NewStore(cfg.StatePath),
			Notifier: notifier,
			Logger:   obs.Logger(),
			Metrics:  metrics,
			Tracer:   obs.Tracer(),
		},
	), nil
}
