// Package uuidstore caches the optional receiver UUID that identifies this
// edge client to the mlat server across handshakes and reconnects.
package uuidstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

const uuidKey = "uuid"

// Store is a tiny buntdb-backed cache in front of the UUID file, so a
// reconnect storm doesn't re-stat and re-read the filesystem on every
// handshake attempt.
type Store struct {
	db   *buntdb.DB
	path string
	ttl  time.Duration
}

// Open opens (creating if needed) a buntdb file at dbPath used to cache the
// UUID read from sourcePath (typically /boot/adsbx-uuid).
func Open(dbPath, sourcePath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	db, err := buntdb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: sourcePath, ttl: 10 * time.Minute}, nil
}

// Close releases the underlying buntdb handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UUID returns the cached UUID value, re-reading the source file once the
// cache entry has expired. An empty string means no UUID is configured.
func (s *Store) UUID() (string, error) {
	if s == nil || s.db == nil {
		return readUUIDFile(s.path)
	}

	var cached string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(uuidKey)
		if err != nil {
			return err
		}
		cached = v
		return nil
	})
	if err == nil {
		return cached, nil
	}
	if err != buntdb.ErrNotFound {
		return "", err
	}

	value, err := readUUIDFile(s.path)
	if err != nil {
		return "", err
	}
	_ = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(uuidKey, value, &buntdb.SetOptions{Expires: true, TTL: s.ttl})
		return err
	})
	return value, nil
}

func readUUIDFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
