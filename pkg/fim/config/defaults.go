package config

import (
	"runtime"
	"time"
)

// Default configuration values, shared between Load and the CLI flag help.
const (
	// DefaultPath is the monitored root when none is specified.
	DefaultPath = "."

	// DefaultInterval is the sleep between scan cycles.
	DefaultInterval = 30 * time.Second

	// MinInterval is the lowest accepted scan interval.
	MinInterval = 1 * time.Second

	// DefaultFileTimeout bounds the hashing of one file.
	DefaultFileTimeout = 30 * time.Second

	// DefaultSinkTimeout bounds one delivery attempt to the collector.
	DefaultSinkTimeout = 10 * time.Second

	// DefaultRetentionDays is how long journal entries are kept.
	DefaultRetentionDays = 30

	// DefaultCollectorAddr is the collector's listen address.
	DefaultCollectorAddr = "127.0.0.1:8440"
)

// DefaultWorkers is the file-hashing worker pool size: twice GOMAXPROCS,
// capped at 8. Hashing is I/O bound, so more workers than that just thrash.
var DefaultWorkers = defaultWorkers()

func defaultWorkers() int {
	n := 2 * runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	return n
}

// DefaultExclusions are the patterns skipped on every scan. The agent's own
// state must never feed back into change detection.
var DefaultExclusions = []string{
	".git",
	"*.baseline.json",
	".fim-journal",
}
