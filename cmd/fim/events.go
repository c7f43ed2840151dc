package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sashwatreded/integrity-check/pkg/client"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query events stored by the collector",
	Long: `Query the collector for change events reported by agents.

Requires a configured collector endpoint (sink.endpoint in the config
file, FIM_SINK_ENDPOINT, or --endpoint).`,
	RunE: runEvents,
}

var (
	eventsType  string
	eventsLimit int
	eventsAll   bool
	eventsJSON  bool
)

func init() {
	eventsCmd.Flags().StringVarP(&eventsType, "type", "t", "", "filter by event type (created, modified, deleted)")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "l", 50, "maximum number of events to fetch")
	eventsCmd.Flags().BoolVarP(&eventsAll, "all-roots", "a", false, "include events from all monitored roots")
	eventsCmd.Flags().BoolVarP(&eventsJSON, "json", "j", false, "output JSON format")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Sink.Endpoint == "" {
		return fmt.Errorf("no collector endpoint configured (set sink.endpoint or --endpoint)")
	}

	q := client.Query{
		Type:  eventsType,
		Limit: eventsLimit,
	}
	if !eventsAll {
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			root = cfg.Root
		}
		q.Root = root
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	events, err := client.New(cfg.Sink.Endpoint).ListEvents(ctx, q)
	if err != nil {
		return err
	}

	if eventsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		printInfo("No events stored.")
		return nil
	}

	for _, ev := range events {
		printInfo("%s  %-9s %s  (%s)",
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			ev.EventType,
			ev.Path,
			humanize.Time(ev.Timestamp))
	}
	return nil
}
