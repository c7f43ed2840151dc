// Package fingerprint computes canonical per-file fingerprints.
//
// A fingerprint is path + size + mtime + a streaming SHA-256 of the content.
// Files are read in bounded chunks so arbitrarily large files never load
// fully into memory, and each file is hashed under the caller's context
// deadline so one wedged file cannot stall a whole scan.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// chunkSize is the read buffer used when streaming file content.
const chunkSize = 64 * 1024

// File computes the fingerprint of the file at root/relPath.
//
// Failures are classified into the soft error taxonomy: permission problems
// return types.ErrPermission, everything else (vanished file, I/O error,
// context deadline, read race) returns types.ErrRead. Callers treat both as
// soft and exclude the path from the snapshot.
func File(ctx context.Context, root, relPath string) (types.FileFingerprint, error) {
	full := filepath.Join(root, filepath.FromSlash(relPath))

	f, err := os.Open(full)
	if err != nil {
		return types.FileFingerprint{}, classify(relPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return types.FileFingerprint{}, classify(relPath, err)
	}
	if !info.Mode().IsRegular() {
		return types.FileFingerprint{}, types.ReadError(relPath, errors.New("not a regular file"))
	}

	hash, hashed, err := hashStream(ctx, f)
	if err != nil {
		return types.FileFingerprint{}, classify(relPath, err)
	}

	// Re-stat after hashing. A size that moved under us means the bytes we
	// hashed do not correspond to any single consistent file state, which is
	// a transient read race, not a fingerprint.
	after, err := os.Stat(full)
	if err != nil {
		return types.FileFingerprint{}, classify(relPath, err)
	}
	if after.Size() != info.Size() || after.Size() != hashed {
		return types.FileFingerprint{}, types.ReadError(relPath, errors.New("file changed during read"))
	}

	return types.FileFingerprint{
		Path:    relPath,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Hash:    hash,
	}, nil
}

// WithTimeout runs File under a per-file deadline. A zero timeout means no
// deadline beyond the parent context.
func WithTimeout(ctx context.Context, root, relPath string, timeout time.Duration) (types.FileFingerprint, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return File(ctx, root, relPath)
}

// hashStream streams r through SHA-256 in chunkSize reads, checking the
// context between chunks. Returns the hex digest and the byte count hashed.
func hashStream(ctx context.Context, r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", total, err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), total, nil
}

// classify maps an OS-level error onto the soft error taxonomy.
func classify(relPath string, err error) error {
	if os.IsPermission(err) {
		return types.PermissionError(relPath, err)
	}
	return types.ReadError(relPath, err)
}
