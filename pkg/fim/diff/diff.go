// Package diff compares two snapshots and produces the minimal ordered set
// of change events between them. It is a pure function of its inputs: no
// transport, no storage, and a deterministic output order.
package diff

import (
	"sort"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// Changes computes the events that transform prev into curr.
//
// A path only in curr yields Created; a path in both with differing content
// hash yields Modified; a path only in prev yields Deleted. Paths present in
// both with equal hashes emit nothing, regardless of mtime or size: content
// identity is authoritative. The result is sorted by path, so diffing the
// same two snapshots always yields an identical sequence.
func Changes(prev, curr *types.Snapshot, now time.Time) []types.ChangeEvent {
	events := make([]types.ChangeEvent, 0)

	prevFiles := files(prev)
	currFiles := files(curr)

	for path, nf := range currFiles {
		of, ok := prevFiles[path]
		switch {
		case !ok:
			events = append(events, types.NewCreated(path, nf.Hash, now))
		case of.Hash != nf.Hash:
			events = append(events, types.NewModified(path, of.Hash, nf.Hash, now))
		}
	}

	for path, of := range prevFiles {
		if _, ok := currFiles[path]; !ok {
			events = append(events, types.NewDeleted(path, of.Hash, now))
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})

	return events
}

// files returns the snapshot's file map, tolerating nil snapshots.
func files(s *types.Snapshot) map[string]types.FileFingerprint {
	if s == nil {
		return nil
	}
	return s.Files
}
