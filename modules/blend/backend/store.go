// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package backend implements the block-level content-addressed store:
// a single embedded ordered key-value file holding compressed block
// payloads and per-commit manifest strings, namespaced by key prefix so
// both share one physical key space (spec.md §4.3).
package backend

import (
	"time"

	"github.com/blendvc/blendvc/modules/plumbing"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketName     = "blend"
	blockPrefix    = "block-hash-"
	manifestPrefix = "working-dir-"
)

// Store is the Block store: put/get of compressed block payloads, and
// put/get of per-commit manifest strings. Writes are durable (bbolt fsyncs
// on commit) and idempotent; there is no compaction contract.
type Store struct {
	db    *bolt.DB
	cache *Cache
}

// Open opens (creating if absent) the bbolt file at path and ensures its
// single bucket exists.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type Option func(*Store)

// WithCache enables a read-through cache for block payload lookups.
func WithCache(c *Cache) Option {
	return func(s *Store) { s.cache = c }
}

// Close closes the bbolt file and, if a Cache was installed, shuts down
// its background goroutines too — otherwise every Open with caching on
// leaks them on every repository close.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

func blockKey(hash plumbing.Hash) []byte {
	return []byte(blockPrefix + hash.String())
}

func manifestKey(commitHash plumbing.Hash) []byte {
	return []byte(manifestPrefix + commitHash.String())
}

// PutBlock writes the compressed payload for hash. Re-inserting the same
// hash is a no-op overwrite with identical content (writes are idempotent).
func (s *Store) PutBlock(hash plumbing.Hash, compressed []byte) error {
	key := blockKey(hash)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(key, compressed)
	}); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Set(string(key), compressed)
	}
	return nil
}

// GetBlock returns the compressed payload for hash, or *ErrMissing if
// absent.
func (s *Store) GetBlock(hash plumbing.Hash) ([]byte, error) {
	key := blockKey(hash)
	if s.cache != nil {
		if v, ok := s.cache.Get(string(key)); ok {
			return v, nil
		}
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(key)
		if v == nil {
			return NewErrMissing(string(key))
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(string(key), out)
	}
	return out, nil
}

// PutManifest writes the comma-delimited hex manifest string under the
// owning commit's hash.
func (s *Store) PutManifest(commitHash plumbing.Hash, manifest string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(manifestKey(commitHash), []byte(manifest))
	})
}

// GetManifest returns the manifest string for commitHash, or *ErrMissing
// if absent — the caller (metadata store read_commit) turns this into a
// Consistency error, since the commit row existing without its manifest
// is an invariant violation.
func (s *Store) GetManifest(commitHash plumbing.Hash) (string, error) {
	var out string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(manifestKey(commitHash))
		if v == nil {
			return NewErrMissing(string(manifestKey(commitHash)))
		}
		out = string(v)
		return nil
	})
	return out, err
}
