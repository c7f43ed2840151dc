package hashcache

import (
	"errors"
	"testing"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_StoreAndLookup(t *testing.T) {
	c := openCache(t)

	if err := c.Store("/data", "etc/passwd", 1024, 111, "abc123"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	hash, err := c.Lookup("/data", "etc/passwd", 1024, 111)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if hash != "abc123" {
		t.Errorf("Lookup() = %q, want %q", hash, "abc123")
	}
}

func TestCache_LookupMisses(t *testing.T) {
	c := openCache(t)

	if err := c.Store("/data", "f.txt", 100, 200, "hash"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		root    string
		relPath string
		size    int64
		mtimeNS int64
	}{
		{"unknown path", "/data", "other.txt", 100, 200},
		{"unknown root", "/elsewhere", "f.txt", 100, 200},
		{"size changed", "/data", "f.txt", 101, 200},
		{"mtime changed", "/data", "f.txt", 100, 201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Lookup(tt.root, tt.relPath, tt.size, tt.mtimeNS)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Lookup() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCache_StoreBatch(t *testing.T) {
	c := openCache(t)

	entries := map[string]Entry{
		"a.txt":     {Size: 1, MtimeNS: 10, Hash: "ha"},
		"sub/b.txt": {Size: 2, MtimeNS: 20, Hash: "hb"},
	}
	if err := c.StoreBatch("/data", entries); err != nil {
		t.Fatalf("StoreBatch() error = %v", err)
	}

	for relPath, entry := range entries {
		hash, err := c.Lookup("/data", relPath, entry.Size, entry.MtimeNS)
		if err != nil {
			t.Errorf("Lookup(%q) error = %v", relPath, err)
			continue
		}
		if hash != entry.Hash {
			t.Errorf("Lookup(%q) = %q, want %q", relPath, hash, entry.Hash)
		}
	}
}

func TestCache_DropRoot(t *testing.T) {
	c := openCache(t)

	if err := c.Store("/data", "f.txt", 1, 1, "h1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("/other", "f.txt", 1, 1, "h2"); err != nil {
		t.Fatal(err)
	}

	if err := c.DropRoot("/data"); err != nil {
		t.Fatalf("DropRoot() error = %v", err)
	}

	if _, err := c.Lookup("/data", "f.txt", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("dropped root still cached: error = %v", err)
	}
	if hash, err := c.Lookup("/other", "f.txt", 1, 1); err != nil || hash != "h2" {
		t.Errorf("other root lost: hash = %q, error = %v", hash, err)
	}
}

func TestCache_RootPrefixIsolation(t *testing.T) {
	c := openCache(t)

	// "/data" and "/data2" must not collide even though one is a byte
	// prefix of the other.
	if err := c.Store("/data", "x", 1, 1, "h1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("/data2", "x", 1, 1, "h2"); err != nil {
		t.Fatal(err)
	}

	if err := c.DropRoot("/data"); err != nil {
		t.Fatal(err)
	}

	if hash, err := c.Lookup("/data2", "x", 1, 1); err != nil || hash != "h2" {
		t.Errorf("prefix root dropped sibling: hash = %q, error = %v", hash, err)
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := openCache(t)

	if err := c.Store("/data", "f.txt", 1, 1, "old"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("/data", "f.txt", 2, 2, "new"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Lookup("/data", "f.txt", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale entry survived: error = %v", err)
	}
	if hash, err := c.Lookup("/data", "f.txt", 2, 2); err != nil || hash != "new" {
		t.Errorf("Lookup() = %q, %v, want new entry", hash, err)
	}
}
