package baseline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

func testSnapshot() *types.Snapshot {
	s := types.NewSnapshot("/data")
	s.TakenAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Files["etc/passwd"] = types.FileFingerprint{
		Path:    "etc/passwd",
		Size:    1024,
		ModTime: s.TakenAt.Add(-time.Hour),
		Hash:    "aabbcc",
	}
	s.Files["etc/hosts"] = types.FileFingerprint{
		Path: "etc/hosts",
		Size: 64,
		Hash: "ddeeff",
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "baseline.json"))

	want := testSnapshot()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Root != want.Root {
		t.Errorf("Root = %q, want %q", got.Root, want.Root)
	}
	if !got.TakenAt.Equal(want.TakenAt) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, want.TakenAt)
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for path, fp := range want.Files {
		if got.Files[path].Hash != fp.Hash {
			t.Errorf("Files[%q].Hash = %q, want %q", path, got.Files[path].Hash, fp.Hash)
		}
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "does-not-exist.json"))

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if snap.Len() != 0 {
		t.Errorf("Len() = %d, want 0", snap.Len())
	}
	if snap.Root != "" {
		t.Errorf("Root = %q, want empty", snap.Root)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version": 1, "files": {`},
		{"not json at all", "hello world"},
		{"wrong version", `{"version": 99, "hash_algorithm": "sha256", "files": {}}`},
		{"wrong algorithm", `{"version": 1, "hash_algorithm": "md5", "files": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "baseline.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := New(path).Load()
			if !errors.Is(err, types.ErrFormat) {
				t.Errorf("Load() error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deep", "baseline.json")
	store := New(path)

	if err := store.Save(testSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("baseline file not created: %v", err)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := New(filepath.Join(dir, "baseline.json"))

	for i := 0; i < 3; i++ {
		if err := store.Save(testSnapshot()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "baseline.json"))

	first := testSnapshot()
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}

	second := types.NewSnapshot("/other")
	second.Files["only.txt"] = types.FileFingerprint{Path: "only.txt", Hash: "xyz"}
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != "/other" || got.Len() != 1 {
		t.Errorf("Load() = root %q with %d files, want /other with 1", got.Root, got.Len())
	}
}

func TestStore_SaveFailurePreservesPrevious(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}

	dir := t.TempDir()
	store := New(filepath.Join(dir, "baseline.json"))

	if err := store.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	// Make the directory unwritable so the temp file cannot be created.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err := store.Save(types.NewSnapshot("/other"))
	if !errors.Is(err, types.ErrPersist) {
		t.Fatalf("Save() error = %v, want ErrPersist", err)
	}

	os.Chmod(dir, 0o755)
	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != "/data" {
		t.Errorf("previous baseline lost: root = %q", got.Root)
	}
}
