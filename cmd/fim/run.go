package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
	"github.com/Sashwatreded/integrity-check/pkg/fim/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring loop",
	Long: `Run the monitoring loop until interrupted.

The loop scans the monitored root on the configured interval, diffs each
snapshot against the baseline, reports changes to the collector (if an
endpoint is configured), and persists the accepted snapshot as the new
baseline. SIGINT and SIGTERM stop the loop at the next cycle boundary;
an in-flight cycle completes first.`,
	RunE: runRun,
}

var flagWatch bool

func init() {
	runCmd.Flags().BoolVar(&flagWatch, "watch", false, "also trigger scans on filesystem activity")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var trigger <-chan struct{}
	watch := flagWatch || cfg.WatchEnabled
	if watch {
		w, err := watcher.New(cfg.Root)
		if err != nil {
			logging.Get("cli").Warn("filesystem watch unavailable, polling only", "error", err)
		} else {
			go w.Run(ctx)
			defer w.Close()
			trigger = w.C
		}
	}

	ag, err := buildAgent(cfg, trigger)
	if err != nil {
		return err
	}
	defer ag.Close()

	printInfo("monitoring %s every %s", cfg.Root, cfg.Interval)

	err = ag.monitor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		printInfo("shutting down")
		return nil
	}
	return err
}
