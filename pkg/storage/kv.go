package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sw33tLie/lifescore/pkg/detailcache"
)

// KVOptions configures the badger detail store.
type KVOptions struct {
	Dir      string
	InMemory bool
	Logger   badger.Logger
}

// KV keeps detail snapshots in badger. It is the alternative to the sqlite
// detail_sets table when the cache should live apart from the main database.
type KV struct {
	db *badger.DB
}

// OpenKV opens (or creates) a badger store.
func OpenKV(opts KVOptions) (*KV, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithLogger(opts.Logger).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open detail cache: %w", err)
	}
	return &KV{db: db}, nil
}

func (k *KV) Close() error {
	if k == nil || k.db == nil {
		return nil
	}
	return k.db.Close()
}

func detailKey(userID string, releaseID int64) []byte {
	return []byte(fmt.Sprintf("detail/%s/%d", userID, releaseID))
}

// GetDetails returns nil, nil on a miss.
func (k *KV) GetDetails(_ context.Context, userID string, releaseID int64) (*detailcache.Snapshot, error) {
	var snap *detailcache.Snapshot
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(detailKey(userID, releaseID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var s detailcache.Snapshot
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			snap = &s
			return nil
		})
	})
	return snap, err
}

func (k *KV) PutDetails(_ context.Context, userID string, releaseID int64, s detailcache.Snapshot) error {
	val, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(detailKey(userID, releaseID), val)
	})
}

// CountDetails returns how many snapshots are stored.
func (k *KV) CountDetails() (int, error) {
	n := 0
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("detail/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
