package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/fim/config"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
)

var rootCmd = &cobra.Command{
	Use:   "fim",
	Short: "Detect file creations, modifications, and deletions",
	Long: `Fim monitors a directory tree for integrity changes.

It scans the tree on an interval, fingerprints every regular file with
SHA-256, diffs the result against a persisted baseline, and reports
created, modified, and deleted files to a collector.

Examples:
  fim run                          # Monitor the configured root
  fim run --root /etc              # Monitor a specific directory
  fim scan /etc                    # One-shot scan and diff
  fim baseline show                # Inspect the persisted baseline
  fim history                      # View recent detection cycles
  fim events --type modified       # Query the collector`,
}

var (
	flagRoot     string
	flagInterval time.Duration
	flagExclude  []string
	flagWorkers  int
	flagEndpoint string
	flagVerbose  bool
	flagQuiet    bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagRoot, "root", "r", "", "directory tree to monitor")
	pf.DurationVarP(&flagInterval, "interval", "i", 0, "scan interval (e.g. 30s, 5m)")
	pf.StringSliceVarP(&flagExclude, "exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	pf.IntVarP(&flagWorkers, "workers", "w", 0, "hashing worker count (0=default)")
	pf.StringVar(&flagEndpoint, "endpoint", "", "collector base URL (e.g. http://127.0.0.1:8440)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug output")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "minimal output")
}

// loadConfig loads the layered configuration and applies flag overrides,
// which take precedence over both file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("root") {
		cfg.Root = flagRoot
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = flagInterval
		if cfg.Interval < config.MinInterval {
			cfg.Interval = config.MinInterval
		}
	}
	if cmd.Flags().Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, flagExclude...)
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Sink.Endpoint = flagEndpoint
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// initLogging configures the logging subsystem from config.
func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// printInfo prints a message unless quiet mode is enabled.
func printInfo(format string, args ...interface{}) {
	if !flagQuiet {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
