// Package baseline persists the last observed digest for each monitored path.
//
// The store holds exactly one entry per path - the current snapshot, not a
// history. The worker compares each fresh digest against the stored one to
// detect content changes, then overwrites the entry. BoltDB's file locking
// doubles as a guard against two monitor instances sharing a store.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/hashmon/internal/hasher"
)

const bucketName = "baseline"

// Entry is the stored digest snapshot for one path.
type Entry struct {
	SHA256 string    `json:"sha256"`
	MD5    string    `json:"md5"`
	Size   int64     `json:"size"`
	SeenAt time.Time `json:"seen_at"`
}

// DB stores one Entry per path in a BoltDB database.
// A DB opened with an empty path is disabled: every lookup misses and
// stores are dropped silently.
type DB struct {
	db      *bolt.DB
	enabled bool
}

// Open opens (or creates) the baseline database at path.
// Returns a disabled store if path is empty.
func Open(path string) (*DB, error) {
	if path == "" {
		return &DB{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create baseline dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open baseline (locked by another instance?): %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, enabled: true}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Lookup returns the stored entry for path, or (nil, nil) on a miss.
func (d *DB) Lookup(path string) (*Entry, error) {
	if !d.enabled {
		return nil, nil
	}

	var entry *Entry
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(path))
		if data == nil {
			return nil
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode entry for %s: %w", path, err)
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("baseline lookup: %w", err)
	}
	return entry, nil
}

// Store overwrites the snapshot for res.Path with the fresh digests.
func (d *DB) Store(res *hasher.Result) error {
	if !d.enabled {
		return nil
	}

	data, err := json.Marshal(Entry{
		SHA256: res.SHA256,
		MD5:    res.MD5,
		Size:   res.FileSize,
		SeenAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode entry for %s: %w", res.Path, err)
	}

	err = d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(res.Path), data)
	})
	if err != nil {
		return fmt.Errorf("baseline store: %w", err)
	}
	return nil
}
