// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import "github.com/dgraph-io/ristretto/v2"

// Cache is a small read-through cache sitting in front of block lookups,
// absorbing repeated manifest/restore fetches within one process. It is
// optional: a Store with no Cache simply always reads through to bbolt.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// NewCache builds a cache sized for a modest working set of hot blocks.
func NewCache() (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100_000,
		MaxCost:     64 << 20, // 64MiB of compressed payload
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	return c.c.Get(key)
}

func (c *Cache) Set(key string, value []byte) {
	c.c.Set(key, value, int64(len(value)))
}

func (c *Cache) Close() {
	c.c.Close()
}

// Wait blocks until all pending Set calls have been applied. Ristretto's
// write path is asynchronous; callers that need a just-written value to be
// immediately visible (mainly tests) should call this first.
func (c *Cache) Wait() {
	c.c.Wait()
}
