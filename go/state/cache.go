// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultFetchCacheSize = 1 << 16

// FetchCache stores values fetched from remote sources. Entries are kept in
// an in-memory LRU cache, optionally backed by a badger database on disk.
// Entries are immutable, since they describe historic blocks. Concurrent
// fetches of the same key are collapsed into a single remote request.
//
// A failed or cancelled fetch leaves the cache unmodified.
type FetchCache struct {
	memory *lru.Cache[string, []byte]
	disk   *badger.DB // < nil for memory-only caches
	group  singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemoryFetchCache creates a cache without disk backing.
func NewMemoryFetchCache(size int) *FetchCache {
	memory, err := lru.New[string, []byte](size)
	if err != nil {
		// only fails for non-positive sizes
		memory, _ = lru.New[string, []byte](DefaultFetchCacheSize)
	}
	return &FetchCache{memory: memory}
}

// NewFetchCache creates a cache persisting its entries in the given
// directory. An empty directory creates a memory-only cache.
func NewFetchCache(dir string, size int) (*FetchCache, error) {
	res := NewMemoryFetchCache(size)
	if dir == "" {
		return res, nil
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(log.BadgerLogger{Logger: log.NewLogger("badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open fetch cache in %s: %w", dir, err)
	}
	res.disk = db
	return res, nil
}

// Close releases the disk backing of the cache, if any.
func (c *FetchCache) Close() error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Close()
}

// Stats returns the number of fetches served from the cache and the number of
// fetches that required a remote request.
func (c *FetchCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *FetchCache) get(key string) ([]byte, bool, error) {
	if data, found := c.memory.Get(key); found {
		return data, true, nil
	}
	if c.disk == nil {
		return nil, false, nil
	}
	var data []byte
	err := c.disk.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.memory.Add(key, data)
	return data, true, nil
}

func (c *FetchCache) put(key string, data []byte) error {
	if c.disk != nil {
		err := c.disk.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}
	c.memory.Add(key, data)
	return nil
}

// fetch returns the cached value of the key or obtains it through load.
func (c *FetchCache) fetch(
	ctx context.Context,
	key string,
	load func(context.Context) ([]byte, error),
) ([]byte, error) {
	data, found, err := c.get(key)
	if err != nil {
		return nil, err
	}
	if found {
		c.hits.Add(1)
		if logger.IsDebugEnabled() {
			logger.Trace().Str("key", key).Msg("fetch cache hit")
		}
		return data, nil
	}

	for attempt := 1; ; attempt++ {
		results := c.group.DoChan(key, func() (any, error) {
			return c.load(ctx, key, load)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.Err == nil {
				return res.Val.([]byte), nil
			}
			// A shared load started by a caller that gave up is retried.
			if isContextError(res.Err) && ctx.Err() == nil && attempt < maxFetchAttempts {
				continue
			}
			return nil, res.Err
		}
	}
}

const maxFetchAttempts = 3

func (c *FetchCache) load(
	ctx context.Context,
	key string,
	load func(context.Context) ([]byte, error),
) ([]byte, error) {
	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.put(key, data); err != nil {
		return nil, err
	}
	c.misses.Add(1)
	logger.Debug().Str("key", key).Int("size", len(data)).Msg("fetched remote value")
	return data, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
