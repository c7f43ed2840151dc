// Package snapshot builds complete point-in-time snapshots of a directory
// tree. It walks the tree with fastwalk, fans file hashing out over a
// bounded worker pool, and tolerates per-file failures: a file that
// vanishes or errors between listing and hashing is excluded from the
// snapshot with a warning, never aborting the walk.
package snapshot

import (
	"runtime"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/hashcache"
)

// DefaultWorkers is the hashing worker pool size when none is configured:
// twice GOMAXPROCS, capped at 8.
var DefaultWorkers = defaultWorkers()

func defaultWorkers() int {
	n := 2 * runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	return n
}

// DefaultFileTimeout bounds how long a single file may take to hash.
const DefaultFileTimeout = 30 * time.Second

// Options configures the snapshot builder.
type Options struct {
	// Root is the directory tree to snapshot.
	Root string

	// Exclude contains patterns for paths to skip. Patterns match path
	// prefixes, basenames, and full relative paths.
	Exclude []string

	// FollowSymlinks controls whether symlinked files and directories are
	// followed. The default is to skip them; following is an explicit
	// opt-in because symlink loops and out-of-root targets are on the
	// caller.
	FollowSymlinks bool

	// Workers is the hashing worker pool size.
	Workers int

	// FileTimeout bounds the hashing of a single file. A file that exceeds
	// it is dropped from the snapshot as a read error.
	FileTimeout time.Duration

	// Cache optionally skips re-hashing files whose size and mtime are
	// unchanged since the last scan. Nil disables caching.
	Cache *hashcache.Cache

	// Progress, if set, is called with each file's relative path as the
	// walk queues it for hashing.
	Progress func(relPath string)
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Root:        ".",
		Workers:     DefaultWorkers,
		FileTimeout: DefaultFileTimeout,
	}
}

// Validate fills in defaults for unset or invalid values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.FileTimeout <= 0 {
		o.FileTimeout = DefaultFileTimeout
	}
	return nil
}
