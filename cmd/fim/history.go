package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/fim/config"
	"github.com/Sashwatreded/integrity-check/pkg/fim/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View detection cycle history",
	Long: `View the local journal of detection cycles.

The journal records every cycle that detected changes (and the initial
baseline seeding), including whether the events reached the collector.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific cycle",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove journal entries past the retention period",
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getJournal returns the journal for the configured root.
func getJournal(cmd *cobra.Command) (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	j, err := journal.New(cfg.JournalPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, cfg, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, cfg, err := getJournal(cmd)
	if err != nil {
		return err
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history for %s yet.", cfg.Root)
		printInfo("Run 'fim run' or 'fim scan' to start detecting changes.")
		return nil
	}

	for _, e := range entries {
		delivered := "local"
		if e.Delivered {
			delivered = "delivered"
		}
		printInfo("%s  %s  %s files, %d events, %s (%s)",
			e.ID,
			humanize.Time(e.Timestamp),
			humanize.Comma(int64(e.FilesScanned)),
			len(e.Events),
			delivered,
			e.Duration.Round(time.Millisecond))
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := getJournal(cmd)
	if err != nil {
		return err
	}

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to load entry: %w", err)
	}

	printInfo("Cycle %s", entry.ID)
	printInfo("  time:      %s", entry.Timestamp.Format("2006-01-02 15:04:05"))
	printInfo("  root:      %s", entry.Root)
	printInfo("  scanned:   %s files in %s",
		humanize.Comma(int64(entry.FilesScanned)), entry.Duration.Round(time.Millisecond))
	printInfo("  warnings:  %d", entry.Warnings)
	printInfo("  delivered: %v", entry.Delivered)

	if len(entry.Events) > 0 {
		printInfo("  events:")
		for _, ev := range entry.Events {
			printInfo("    %-9s %s", ev.Type, ev.Path)
		}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, cfg, err := getJournal(cmd)
	if err != nil {
		return err
	}

	retention := cfg.Journal.RetentionDays
	if retention <= 0 {
		retention = config.DefaultRetentionDays
	}

	if err := j.Cleanup(retention); err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed entries older than %d days.", retention)
	return nil
}
