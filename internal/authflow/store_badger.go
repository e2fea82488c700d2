// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tenpo/internal/logging"
)

// flowKeyPrefix namespaces flow keys.
const flowKeyPrefix = "flow:"

// BadgerStore keeps flows in BadgerDB so that they survive restarts.
// Expiry is delegated to Badger entry TTLs.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerStore opens (or creates) a store at path. An empty path opens an
// in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open flow store: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("Flow store opened")
	return &BadgerStore{db: db, now: time.Now}, nil
}

func flowKey(id string) []byte {
	return []byte(flowKeyPrefix + id)
}

// Get implements Store.
func (b *BadgerStore) Get(_ context.Context, id string) (*Flow, error) {
	var f Flow
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flowKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &f)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read flow: %w", err)
	}
	if f.Expired(b.now()) {
		return nil, ErrFlowNotFound
	}
	return &f, nil
}

// Put implements Store.
func (b *BadgerStore) Put(_ context.Context, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}

	entry := badger.NewEntry(flowKey(f.ID), data)
	if !f.ExpiresAt.IsZero() {
		ttl := f.ExpiresAt.Sub(b.now())
		if ttl <= 0 {
			return b.Delete(context.Background(), f.ID)
		}
		entry = entry.WithTTL(ttl)
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("write flow: %w", err)
	}
	return nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(flowKey(id))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// CleanupExpired implements Store. Badger drops expired entries on its own;
// this removes entries whose ExpiresAt passed before their TTL did (clock
// overrides in tests) and reclaims value log space.
func (b *BadgerStore) CleanupExpired(_ context.Context) (int, error) {
	now := b.now()
	var expired [][]byte

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(flowKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var f Flow
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil || f.Expired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan flows: %w", err)
	}

	if len(expired) > 0 {
		if err := b.db.Update(func(txn *badger.Txn) error {
			for _, key := range expired {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return 0, fmt.Errorf("delete expired flows: %w", err)
		}
	}

	if err := b.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		logging.Warn().Err(err).Msg("Flow store value log GC failed")
	}
	return len(expired), nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
