package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/fim/baseline"
	"github.com/Sashwatreded/integrity-check/pkg/fim/hashcache"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage the persisted baseline",
	Long: `Inspect or reset the persisted baseline for the monitored root.

Each monitored root has its own baseline file. Resetting it makes the
next scan seed a fresh baseline without reporting changes.`,
}

var baselineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted baseline",
	RunE:  runBaselineShow,
}

var baselineResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted baseline",
	Long: `Delete the baseline file and the hash cache for the monitored root.

The next scan treats the root as unseen and seeds a new baseline.`,
	RunE: runBaselineReset,
}

var baselineShowFiles bool

func init() {
	baselineShowCmd.Flags().BoolVarP(&baselineShowFiles, "files", "f", false, "list every fingerprinted file")

	baselineCmd.AddCommand(baselineShowCmd)
	baselineCmd.AddCommand(baselineResetCmd)
	rootCmd.AddCommand(baselineCmd)
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := baseline.New(cfg.BaselinePath())
	snap, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load baseline: %w", err)
	}

	if snap.Len() == 0 && snap.Root == "" {
		printInfo("No baseline for %s yet.", cfg.Root)
		printInfo("Run 'fim scan' to create one.")
		return nil
	}

	printInfo("Baseline: %s", store.Path())
	printInfo("  root:     %s", snap.Root)
	printInfo("  taken:    %s (%s)", snap.TakenAt.Format("2006-01-02 15:04:05"), humanize.Time(snap.TakenAt))
	printInfo("  files:    %s", humanize.Comma(int64(snap.Len())))

	if baselineShowFiles {
		paths := make([]string, 0, snap.Len())
		for p := range snap.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fp := snap.Files[p]
			printInfo("  %s  %8s  %s", fp.Hash[:12], humanize.Bytes(uint64(fp.Size)), p)
		}
	}
	return nil
}

func runBaselineReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.BaselinePath()
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove baseline: %w", err)
		}
		printInfo("No baseline for %s.", cfg.Root)
	} else {
		printInfo("Removed baseline %s", path)
	}

	// Drop cached hashes too so the re-baseline hashes from scratch. The
	// cache keys on the absolute root.
	if cfg.Cache.Enabled {
		absRoot, err := filepath.Abs(cfg.Root)
		if err != nil {
			absRoot = cfg.Root
		}
		cache, err := hashcache.Open(cfg.CachePath())
		if err == nil {
			defer cache.Close()
			if err := cache.DropRoot(absRoot); err != nil {
				printError("failed to clear hash cache: %v", err)
			}
		}
	}
	return nil
}
