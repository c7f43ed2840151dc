// Package hashcache provides a Badger-backed cache of content hashes keyed
// by (root, relative path). An entry is only reused when the file's size and
// mtime both still match, so a hit skips re-reading the file without ever
// masking a content change that touched either.
package hashcache

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no cache entry exists for a path.
var ErrNotFound = errors.New("hashcache: entry not found")

// Entry is the cached identity of one file.
type Entry struct {
	Size    int64  `json:"size"`
	MtimeNS int64  `json:"mtime_ns"`
	Hash    string `json:"hash"`
}

// Cache wraps a Badger database holding hash entries.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached hash for relPath if the stored size and mtime
// match the observed ones. Any mismatch or absence returns ErrNotFound.
func (c *Cache) Lookup(root, relPath string, size, mtimeNS int64) (string, error) {
	key := makeKey(root, relPath)
	var entry Entry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return "", err
	}

	if entry.Size != size || entry.MtimeNS != mtimeNS {
		return "", ErrNotFound
	}
	return entry.Hash, nil
}

// Store records the hash for relPath at the observed size and mtime.
func (c *Cache) Store(root, relPath string, size, mtimeNS int64, hash string) error {
	val, err := json.Marshal(Entry{Size: size, MtimeNS: mtimeNS, Hash: hash})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(root, relPath), val)
	})
}

// StoreBatch records multiple entries in one write batch.
func (c *Cache) StoreBatch(root string, entries map[string]Entry) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for relPath, entry := range entries {
		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := wb.Set(makeKey(root, relPath), val); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// DropRoot removes all entries for a monitored root.
func (c *Cache) DropRoot(root string) error {
	prefix := append([]byte(root), 0)

	return c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// makeKey builds the storage key for (root, relPath). The NUL separator
// keeps distinct roots from sharing a key prefix.
func makeKey(root, relPath string) []byte {
	key := make([]byte, 0, len(root)+1+len(relPath))
	key = append(key, root...)
	key = append(key, 0)
	key = append(key, relPath...)
	return key
}
