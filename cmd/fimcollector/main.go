// Package main provides the entry point for the fim event collector daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/Sashwatreded/integrity-check/pkg/collector"
	"github.com/Sashwatreded/integrity-check/pkg/collector/store"
	"github.com/Sashwatreded/integrity-check/pkg/fim/config"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
)

func main() {
	var (
		addr     = flag.String("addr", envOr("FIM_COLLECTOR_ADDR", config.DefaultCollectorAddr), "listen address")
		dbPath   = flag.String("db", envOr("FIM_COLLECTOR_DB", ""), "event database path")
		logLevel = flag.String("log-level", envOr("FIM_COLLECTOR_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if err := logging.Init(logging.Config{Level: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	path := *dbPath
	if path == "" {
		path = filepath.Join(xdg.DataHome, "fim", "collector.db")
	}

	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open event store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Get("collector")
	log.Info("fimcollector starting", "addr", *addr, "db", path)

	if err := collector.NewServer(st).ListenAndServe(ctx, *addr); err != nil {
		log.Error("collector failed", "error", err)
		os.Exit(1)
	}
	log.Info("fimcollector stopped")
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
