package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/Sashwatreded/integrity-check/pkg/fim/fingerprint"
	"github.com/Sashwatreded/integrity-check/pkg/fim/hashcache"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// Builder walks a directory tree and produces a Snapshot.
type Builder struct {
	opts Options

	// warnings collects soft per-file errors without stopping the build.
	warnings   []types.ScanError
	warningsMu sync.Mutex

	// root is the resolved absolute path being scanned.
	root string
}

// workItem is one regular file queued for hashing.
type workItem struct {
	relPath string
	size    int64
	mtimeNS int64
}

// New creates a Builder with the given options. Defaults are applied for
// unset values.
func New(opts Options) *Builder {
	_ = opts.Validate()
	return &Builder{opts: opts}
}

// Build walks the tree and returns a complete Snapshot plus the soft errors
// encountered. Per-file failures exclude the file from the snapshot; only a
// missing or invalid root fails the build itself.
func (b *Builder) Build(ctx context.Context) (*types.Snapshot, []types.ScanError, error) {
	root, err := b.validateRoot()
	if err != nil {
		return nil, nil, err
	}
	b.root = root
	b.warnings = nil

	snap := types.NewSnapshot(root)

	work := make(chan workItem, b.opts.Workers*2)
	var (
		snapMu  sync.Mutex
		updates = make(map[string]hashcache.Entry)
		wg      sync.WaitGroup
	)

	for range b.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				fp, cached, err := b.fingerprintItem(ctx, item)
				if err != nil {
					b.addWarning(item.relPath, err)
					continue
				}
				snapMu.Lock()
				snap.Files[fp.Path] = fp
				if !cached && b.opts.Cache != nil {
					updates[fp.Path] = hashcache.Entry{
						Size:    item.size,
						MtimeNS: item.mtimeNS,
						Hash:    fp.Hash,
					}
				}
				snapMu.Unlock()
			}
		}()
	}

	walkErr := b.walk(ctx, work)
	close(work)
	wg.Wait()

	if walkErr != nil {
		return nil, b.warnings, walkErr
	}

	if b.opts.Cache != nil && len(updates) > 0 {
		if err := b.opts.Cache.StoreBatch(root, updates); err != nil {
			logging.Get("snapshot").Warn("hash cache update failed", "error", err)
		}
	}

	return snap, b.warnings, nil
}

// walk traverses the tree and queues regular files for hashing.
func (b *Builder) walk(ctx context.Context, work chan<- workItem) error {
	conf := fastwalk.Config{
		Follow: b.opts.FollowSymlinks,
	}

	err := fastwalk.Walk(&conf, b.root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		// Unreadable entries are soft: warn and keep walking.
		if err != nil {
			b.addWarning(b.relPath(path), err)
			return nil
		}

		rel := b.relPath(path)
		if rel == "." {
			return nil
		}

		if b.isExcluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		// Directories themselves are not snapshot entries; symlinks and
		// special files only pass when Follow resolved them to regular
		// files.
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			b.addWarning(rel, err)
			return nil
		}

		if b.opts.Progress != nil {
			b.opts.Progress(rel)
		}

		select {
		case work <- workItem{relPath: rel, size: info.Size(), mtimeNS: info.ModTime().UnixNano()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	// Cancellation propagates: a truncated walk must never pass for a
	// complete snapshot.
	return err
}

// fingerprintItem resolves one work item to a fingerprint, consulting the
// hash cache first. The bool result reports whether the hash came from the
// cache.
func (b *Builder) fingerprintItem(ctx context.Context, item workItem) (types.FileFingerprint, bool, error) {
	if b.opts.Cache != nil {
		hash, err := b.opts.Cache.Lookup(b.root, item.relPath, item.size, item.mtimeNS)
		if err == nil {
			return types.FileFingerprint{
				Path:    item.relPath,
				Size:    item.size,
				ModTime: nsToTime(item.mtimeNS),
				Hash:    hash,
			}, true, nil
		}
		if !errors.Is(err, hashcache.ErrNotFound) {
			logging.Get("snapshot").Warn("hash cache lookup failed", "path", item.relPath, "error", err)
		}
	}

	fp, err := fingerprint.WithTimeout(ctx, b.root, item.relPath, b.opts.FileTimeout)
	if err != nil {
		return types.FileFingerprint{}, false, err
	}
	return fp, false, nil
}

// addWarning records a soft per-file error.
func (b *Builder) addWarning(relPath string, err error) {
	logging.Get("snapshot").Warn("file skipped", "path", relPath, "error", err)

	b.warningsMu.Lock()
	b.warnings = append(b.warnings, types.ScanError{Path: relPath, Error: err.Error()})
	b.warningsMu.Unlock()
}

// validateRoot resolves the root to an absolute directory path.
func (b *Builder) validateRoot() (string, error) {
	root, err := filepath.Abs(b.opts.Root)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", os.ErrInvalid
	}

	return root, nil
}

// relPath converts an absolute walk path into a slash-separated path
// relative to the root.
func (b *Builder) relPath(path string) string {
	rel, err := filepath.Rel(b.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// nsToTime converts a UnixNano mtime back into a UTC time.
func nsToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// isExcluded checks a relative path against the exclusion patterns.
func (b *Builder) isExcluded(rel string) bool {
	for _, pattern := range b.opts.Exclude {
		if matchesPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern checks one relative path against one exclusion pattern.
// A pattern matches as a path prefix (directory exclusion), as a glob on
// the basename, or as a glob on the full relative path.
func matchesPattern(rel, pattern string) bool {
	if pattern == "" {
		return false
	}

	if rel == pattern {
		return true
	}
	if len(rel) > len(pattern) && rel[:len(pattern)+1] == pattern+"/" {
		return true
	}

	if matched, err := filepath.Match(pattern, filepath.Base(rel)); err == nil && matched {
		return true
	}
	if matched, err := filepath.Match(pattern, rel); err == nil && matched {
		return true
	}

	return false
}
