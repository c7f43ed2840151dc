// Package types provides the core data types for the integrity monitor.
// It defines file fingerprints, snapshots, change events, and the error
// taxonomy shared by the scanning and reporting layers.
package types

import (
	"errors"
	"fmt"
	"time"
)

// HashAlgorithm identifies the content hash function used for fingerprints.
// It is recorded in every persisted baseline; changing it invalidates all
// stored hashes and forces a full re-baseline.
const HashAlgorithm = "sha256"

// EventType classifies a file transition between two snapshots.
type EventType string

// The three event kinds. A path appears in at most one of them per diff.
const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
)

// Valid reports whether t is one of the three known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventModified, EventDeleted:
		return true
	}
	return false
}

// FileFingerprint is the canonical identity of one file at one point in time.
type FileFingerprint struct {
	// Path is the slash-separated path relative to the monitored root.
	Path string `json:"path"`

	// Size is the file size in bytes at the time of hashing.
	Size int64 `json:"size"`

	// ModTime is the file's last modification time.
	ModTime time.Time `json:"mod_time"`

	// Hash is the lowercase hex SHA-256 digest of the file content.
	Hash string `json:"hash"`
}

// Snapshot is a complete mapping of monitored files to fingerprints at one
// point in time. It is built once per cycle and never mutated afterwards.
type Snapshot struct {
	// Root is the absolute path of the monitored directory.
	Root string `json:"root"`

	// TakenAt is when the snapshot build started.
	TakenAt time.Time `json:"taken_at"`

	// Files maps relative path to fingerprint.
	Files map[string]FileFingerprint `json:"files"`
}

// NewSnapshot returns an empty snapshot for the given root.
func NewSnapshot(root string) *Snapshot {
	return &Snapshot{
		Root:    root,
		TakenAt: time.Now().UTC(),
		Files:   make(map[string]FileFingerprint),
	}
}

// Len returns the number of files in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Files)
}

// ChangeEvent is an immutable fact describing one file transition.
// Events are only built through NewCreated, NewModified, and NewDeleted so
// the hash fields required for each kind are always populated.
type ChangeEvent struct {
	Type       EventType `json:"event_type"`
	Path       string    `json:"path"`
	OldHash    string    `json:"old_hash,omitempty"`
	NewHash    string    `json:"new_hash,omitempty"`
	DetectedAt time.Time `json:"timestamp"`
}

// NewCreated builds a Created event. Only the new hash is present.
func NewCreated(path, newHash string, at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventCreated, Path: path, NewHash: newHash, DetectedAt: at}
}

// NewModified builds a Modified event carrying both hashes.
func NewModified(path, oldHash, newHash string, at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventModified, Path: path, OldHash: oldHash, NewHash: newHash, DetectedAt: at}
}

// NewDeleted builds a Deleted event. Only the old hash is present.
func NewDeleted(path, oldHash string, at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventDeleted, Path: path, OldHash: oldHash, DetectedAt: at}
}

// EventBatch is the delivery unit handed to the event sink: all events
// detected in one scan cycle over one monitored root.
type EventBatch struct {
	// ID uniquely identifies the batch; redelivered batches after a sink
	// failure carry a fresh ID.
	ID string `json:"id"`

	// Root is the monitored root the events belong to.
	Root string `json:"root"`

	// ScannedAt is when the snapshot that produced these events was taken.
	ScannedAt time.Time `json:"scanned_at"`

	Events []ChangeEvent `json:"events"`
}

// ScanError pairs a path with the error encountered while scanning it.
// Scan errors are soft: the path is excluded from the snapshot and the
// walk continues.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Sentinel errors forming the failure taxonomy. Per-file errors (ErrRead,
// ErrPermission) never abort a cycle; per-cycle errors (ErrPersist, ErrSink)
// are retried with the next cycle; ErrFormat is recovered by re-baselining.
var (
	// ErrRead indicates a file vanished, was unreadable, or timed out
	// mid-scan.
	ErrRead = errors.New("read error")

	// ErrPermission indicates the file could not be opened for reading.
	ErrPermission = errors.New("permission denied")

	// ErrPersist indicates the baseline could not be written.
	ErrPersist = errors.New("baseline persist failed")

	// ErrSink indicates event delivery to the collector failed.
	ErrSink = errors.New("event delivery failed")

	// ErrFormat indicates the on-disk baseline is unreadable or
	// version-incompatible.
	ErrFormat = errors.New("baseline format invalid")
)

// ReadError wraps err as an ErrRead for the given path.
func ReadError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRead, path, err)
}

// PermissionError wraps err as an ErrPermission for the given path.
func PermissionError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPermission, path, err)
}
