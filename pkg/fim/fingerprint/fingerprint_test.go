package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	content := "hello, integrity\n"
	writeFile(t, root, "sub/hello.txt", content)

	fp, err := File(context.Background(), root, "sub/hello.txt")
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	if fp.Path != "sub/hello.txt" {
		t.Errorf("Path = %q, want %q", fp.Path, "sub/hello.txt")
	}
	if fp.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", fp.Size, len(content))
	}

	sum := sha256.Sum256([]byte(content))
	if want := hex.EncodeToString(sum[:]); fp.Hash != want {
		t.Errorf("Hash = %q, want %q", fp.Hash, want)
	}
	if fp.ModTime.IsZero() {
		t.Error("ModTime is zero")
	}
}

func TestFile_EmptyFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "empty", "")

	fp, err := File(context.Background(), root, "empty")
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	sum := sha256.Sum256(nil)
	if want := hex.EncodeToString(sum[:]); fp.Hash != want {
		t.Errorf("Hash = %q, want empty-content digest %q", fp.Hash, want)
	}
	if fp.Size != 0 {
		t.Errorf("Size = %d, want 0", fp.Size)
	}
}

func TestFile_LargerThanChunk(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	// Three chunks plus a remainder, so the streaming loop iterates.
	data := make([]byte, chunkSize*3+123)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(root, "big.bin"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	fp, err := File(context.Background(), root, "big.bin")
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	sum := sha256.Sum256(data)
	if want := hex.EncodeToString(sum[:]); fp.Hash != want {
		t.Errorf("Hash = %q, want %q", fp.Hash, want)
	}
	if fp.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", fp.Size, len(data))
	}
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := File(context.Background(), t.TempDir(), "no-such-file")
	if !errors.Is(err, types.ErrRead) {
		t.Errorf("File() error = %v, want ErrRead", err)
	}
}

func TestFile_NotRegular(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := File(context.Background(), root, "dir")
	if !errors.Is(err, types.ErrRead) {
		t.Errorf("File() error = %v, want ErrRead", err)
	}
}

func TestFile_PermissionDenied(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not bind root")
	}

	root := t.TempDir()
	writeFile(t, root, "secret", "classified")
	if err := os.Chmod(filepath.Join(root, "secret"), 0o000); err != nil {
		t.Fatal(err)
	}

	_, err := File(context.Background(), root, "secret")
	if !errors.Is(err, types.ErrPermission) {
		t.Errorf("File() error = %v, want ErrPermission", err)
	}
}

func TestFile_CancelledContext(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "f.txt", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := File(ctx, root, "f.txt")
	if !errors.Is(err, types.ErrRead) {
		t.Errorf("File() error = %v, want ErrRead for cancelled context", err)
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "f.txt", "content")

	// Generous timeout: fingerprinting a tiny file succeeds.
	fp, err := WithTimeout(context.Background(), root, "f.txt", 10*time.Second)
	if err != nil {
		t.Fatalf("WithTimeout() error = %v", err)
	}
	if fp.Hash == "" {
		t.Error("Hash is empty")
	}

	// Zero timeout means no per-file deadline.
	if _, err := WithTimeout(context.Background(), root, "f.txt", 0); err != nil {
		t.Errorf("WithTimeout(0) error = %v", err)
	}
}

func TestFile_SameContentSameHash(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "identical bytes")
	writeFile(t, root, "b.txt", "identical bytes")

	a, err := File(context.Background(), root, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	b, err := File(context.Background(), root, "b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Errorf("hashes differ for identical content: %q vs %q", a.Hash, b.Hash)
	}
}
