package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/fim/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage fim configuration settings.

Configuration is loaded from $XDG_CONFIG_HOME/fim/config.yaml.

Environment variables can override config file settings using the FIM_
prefix:
  FIM_ROOT=/etc
  FIM_INTERVAL=60s
  FIM_SINK_ENDPOINT=http://127.0.0.1:8440`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration and state paths",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printInfo("root:             %s", cfg.Root)
	printInfo("interval:         %s", cfg.Interval)
	printInfo("workers:          %d", cfg.Workers)
	printInfo("follow_symlinks:  %v", cfg.FollowSymlinks)
	printInfo("exclude:          %v", cfg.Exclude)
	printInfo("file_timeout:     %s", cfg.FileTimeout)
	printInfo("watch_enabled:    %v", cfg.WatchEnabled)
	printInfo("baseline.path:    %s", cfg.BaselinePath())
	printInfo("cache.enabled:    %v", cfg.Cache.Enabled)
	printInfo("cache.path:       %s", cfg.CachePath())
	printInfo("journal.enabled:  %v", cfg.Journal.Enabled)
	printInfo("journal.path:     %s", cfg.JournalPath())
	printInfo("sink.endpoint:    %s", cfg.Sink.Endpoint)
	printInfo("sink.timeout:     %s", cfg.Sink.Timeout)
	printInfo("logging.level:    %s", cfg.Logging.Level)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Config file: %s", filepath.Join(config.ConfigDir(), "config.yaml"))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	printInfo("config: %s", filepath.Join(config.ConfigDir(), "config.yaml"))
	printInfo("data:   %s", config.DataDir())
	printInfo("cache:  %s", config.CacheDir())
	printInfo("state:  %s", config.StateDir())
	return nil
}
