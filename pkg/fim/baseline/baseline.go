// Package baseline persists the last accepted snapshot to durable storage.
//
// The on-disk format is a versioned, self-describing JSON envelope carrying
// a format version and the hash algorithm alongside the snapshot, so a
// future reader detects an incompatible baseline and forces a full re-scan
// instead of misreading stale hashes. Saves are atomic: the envelope is
// written to a temp file in the same directory, fsynced, and renamed into
// place, so a concurrent or crashed reader never observes a half-written
// baseline.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// FormatVersion is the current baseline envelope version.
const FormatVersion = 1

// envelope is the serialized baseline file.
type envelope struct {
	Version       int                              `json:"version"`
	HashAlgorithm string                           `json:"hash_algorithm"`
	Root          string                           `json:"root"`
	TakenAt       time.Time                        `json:"taken_at"`
	Files         map[string]types.FileFingerprint `json:"files"`
}

// Store loads and saves baselines at one file path.
type Store struct {
	path string
}

// New creates a Store bound to the given baseline file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the baseline file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted baseline. A missing file is the expected first-run
// state and returns an empty snapshot with no error. An unreadable file, an
// unknown format version, or a different hash algorithm returns an error
// wrapping types.ErrFormat; callers recover by re-baselining from empty.
func (s *Store) Load() (*types.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.NewSnapshot(""), nil
		}
		return nil, fmt.Errorf("%w: %v", types.ErrFormat, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFormat, err)
	}

	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", types.ErrFormat, env.Version)
	}
	if env.HashAlgorithm != types.HashAlgorithm {
		return nil, fmt.Errorf("%w: hash algorithm %q, want %q", types.ErrFormat, env.HashAlgorithm, types.HashAlgorithm)
	}

	files := env.Files
	if files == nil {
		files = make(map[string]types.FileFingerprint)
	}

	return &types.Snapshot{
		Root:    env.Root,
		TakenAt: env.TakenAt,
		Files:   files,
	}, nil
}

// Save atomically persists snap as the new baseline. Failures wrap
// types.ErrPersist and leave any previous baseline intact.
func (s *Store) Save(snap *types.Snapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}

	env := envelope{
		Version:       FormatVersion,
		HashAlgorithm: types.HashAlgorithm,
		Root:          snap.Root,
		TakenAt:       snap.TakenAt,
		Files:         snap.Files,
	}

	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(s.path)+"-")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}
	tmp := f.Name()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&env); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrPersist, err)
	}
	return nil
}
