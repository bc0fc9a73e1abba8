// Package store implements the Persistent Namespace Store: a flat,
// hierarchical key-value abstraction backed by a single-file embedded
// database, used for all cross-run memoisation in pbuild (per-step
// version/failure bookkeeping, invalidator mtimes).
package store

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// ErrUnavailable is returned by Open when the backing path cannot be
// created or opened (permissions, missing parent directory, corrupt file).
var ErrUnavailable = errors.New("store unavailable")

// ErrPersist is returned when a write transaction fails to commit.
var ErrPersist = errors.New("store persist failed")

// bucketName is the single bbolt bucket pbuild keeps all namespaced keys
// in; the Namespace prefix scheme (see escape below) supplies the
// hierarchy, not nested buckets, so that prefix-range scans (Namespace.Drop)
// are a single ordered-key-range operation.
var bucketName = []byte("pbuild")

// Store is a handle to the opened backing database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates a keyed blob store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "open %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(ErrUnavailable, "init bucket: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Root returns the top-level namespace (empty prefix).
func (s *Store) Root() *Namespace {
	return &Namespace{store: s, prefix: ""}
}

// Namespace is a handle (backing_store, prefix) as described in spec §3/§4.2.
type Namespace struct {
	store  *Store
	prefix string
}

// esc applies the exact escape rule from spec §4.2: backslash first, then
// pipe, so that a literal backslash in a segment name can never be
// mistaken for the start of an escape sequence introduced by this step.
func esc(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	key = strings.ReplaceAll(key, `|`, `\|`)
	return key
}

// Sub returns a child namespace with prefix parent_prefix + "|" + escape(name).
func (n *Namespace) Sub(name string) *Namespace {
	return &Namespace{store: n.store, prefix: n.prefix + "|" + esc(name)}
}

// key concatenates prefix + "|" + escape(key), the full key form actually
// stored in the backing bucket.
func (n *Namespace) key(k string) []byte {
	return []byte(n.prefix + "|" + esc(k))
}

// Get reads a raw value, returning ok=false if absent.
func (n *Namespace) Get(k string) (value []byte, ok bool) {
	_ = n.store.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(n.key(k))
		if v != nil {
			ok = true
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, ok
}

// GetString is a convenience typed accessor returning def if the key is absent.
func (n *Namespace) GetString(k, def string) string {
	v, ok := n.Get(k)
	if !ok {
		return def
	}
	return string(v)
}

// GetBool is a convenience typed accessor returning def if the key is absent.
func (n *Namespace) GetBool(k string, def bool) bool {
	v, ok := n.Get(k)
	if !ok {
		return def
	}
	return len(v) == 1 && v[0] == 1
}

// Set writes value under k, flushing synchronously. Any write failure
// bubbles up wrapped in ErrPersist, per spec §4.2.
func (n *Namespace) Set(k string, value []byte) error {
	err := n.store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(n.key(k), value)
	})
	if err != nil {
		return errors.Wrapf(ErrPersist, "set %s: %v", k, err)
	}
	return nil
}

// SetString is a convenience typed setter.
func (n *Namespace) SetString(k, value string) error {
	return n.Set(k, []byte(value))
}

// SetBool is a convenience typed setter.
func (n *Namespace) SetBool(k string, value bool) error {
	b := byte(0)
	if value {
		b = 1
	}
	return n.Set(k, []byte{b})
}

// Drop removes every key whose string form starts with prefix + "|". Used
// by the Invalidator to wholesale-clear the "steps" namespace on build
// script change (spec §4.7).
func (n *Namespace) Drop() error {
	rangePrefix := []byte(n.prefix + "|")
	err := n.store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(rangePrefix); k != nil && strings.HasPrefix(string(k), string(rangePrefix)); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(ErrPersist, "drop %s: %v", n.prefix, err)
	}
	return nil
}
