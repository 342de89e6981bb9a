// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/snapbite/snapbite/utils/textutils"
)

// DefaultCacheTTL is how long a provider answer is reused.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Cache stores provider results keyed by address. Only successful provider
// lookups are cached; default coordinates never are.
type Cache interface {
	Get(address string) (*Result, bool, error)
	Put(address string, result *Result) error
}

// CacheKey normalizes an address so trivially different spellings share an entry.
func CacheKey(address string) string {
	return "geocode:" + strings.Join(strings.Fields(textutils.LowerASCIIFolding(address)), " ")
}

// BadgerCache is a Cache persisted in a badger database.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerCache opens (or creates) a cache at dir. An empty dir keeps the
// cache in memory.
func OpenBadgerCache(dir string, ttl time.Duration) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening geocoding cache: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &BadgerCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// Get implements Cache.
func (c *BadgerCache) Get(address string) (*Result, bool, error) {
	var result Result

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(CacheKey(address)))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("reading geocoding cache: %w", err)
	}

	return &result, true, nil
}

// Put implements Cache.
func (c *BadgerCache) Put(address string, result *Result) error {
	if result == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling geocoding result: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(CacheKey(address)), data).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("writing geocoding cache: %w", err)
	}

	return nil
}
