package main

import (
	"fmt"

	"github.com/Sashwatreded/integrity-check/pkg/fim/baseline"
	"github.com/Sashwatreded/integrity-check/pkg/fim/config"
	"github.com/Sashwatreded/integrity-check/pkg/fim/hashcache"
	"github.com/Sashwatreded/integrity-check/pkg/fim/journal"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
	"github.com/Sashwatreded/integrity-check/pkg/fim/monitor"
	"github.com/Sashwatreded/integrity-check/pkg/fim/sink"
	"github.com/Sashwatreded/integrity-check/pkg/fim/snapshot"
)

// agent bundles the monitor and the resources it owns, so commands can
// release them when done.
type agent struct {
	monitor *monitor.Monitor
	cache   *hashcache.Cache
}

// Close releases agent resources.
func (a *agent) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logging.Get("cli").Warn("failed to close hash cache", "error", err)
		}
	}
}

// buildAgent wires a monitor from validated configuration. The hash cache
// and journal are optional; failures there degrade rather than abort.
// trigger may be nil when no filesystem watcher feeds the loop.
func buildAgent(cfg *config.Config, trigger <-chan struct{}) (*agent, error) {
	log := logging.Get("cli")

	var cache *hashcache.Cache
	if cfg.Cache.Enabled {
		c, err := hashcache.Open(cfg.CachePath())
		if err != nil {
			log.Warn("hash cache unavailable, hashing everything", "error", err)
		} else {
			cache = c
		}
	}

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		j, err := journal.New(cfg.JournalPath())
		if err != nil {
			log.Warn("journal unavailable, cycles will not be recorded", "error", err)
		} else {
			jnl = j
		}
	}

	var eventSink sink.Sink
	if cfg.Sink.Endpoint != "" {
		eventSink = sink.NewHTTP(cfg.Sink.Endpoint, cfg.Sink.Timeout)
	}

	scanLog := logging.Get("snapshot")
	m, err := monitor.New(monitor.Options{
		Snapshot: snapshot.Options{
			Root:           cfg.Root,
			Exclude:        cfg.Exclude,
			FollowSymlinks: cfg.FollowSymlinks,
			Workers:        cfg.Workers,
			FileTimeout:    cfg.FileTimeout,
			Cache:          cache,
			Progress: func(relPath string) {
				scanLog.Debug("hashing", "path", relPath)
			},
		},
		Interval: cfg.Interval,
		Baseline: baseline.New(cfg.BaselinePath()),
		Sink:     eventSink,
		Journal:  jnl,
		Trigger:  trigger,
	})
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	return &agent{monitor: m, cache: cache}, nil
}
