package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/orbitalshelf/server/models"
)

const (
	snapshotPrefix = "snapshot:" // snapshot:<userID> -> JSON array of books
	assetPrefix    = "asset:"    // asset:<generation>:<path> -> JSON CachedAsset
)

// Local is the on-disk fallback store: one snapshot slot per user holding the
// serialized full book list, plus the offline asset cache slots. Backed by Badger.
type Local struct {
	db *badger.DB
}

func OpenLocal(path string) (*Local, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is too chatty for our stdlib log setup
	opts.SyncWrites = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Local{db: db}, nil
}

func (l *Local) Close() error {
	return l.db.Close()
}

// LoadSnapshot returns the cached book list for a user, or (nil, nil) when the
// slot has never been written. An empty slot is not an error.
func (l *Local) LoadSnapshot(userID string) ([]models.Book, error) {
	var books []models.Book
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &books)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return books, nil
}

// SaveSnapshot mirrors the full book list into the user's slot.
func (l *Local) SaveSnapshot(userID string, books []models.Book) error {
	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+userID), data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// CachedAsset is one static asset held for offline fallback.
type CachedAsset struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

func assetKey(generation, path string) []byte {
	return []byte(assetPrefix + generation + ":" + path)
}

func (l *Local) PutAsset(generation, path string, asset CachedAsset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(assetKey(generation, path), data)
	})
}

// GetAsset returns the cached asset or (nil, nil) when absent.
func (l *Local) GetAsset(generation, path string) (*CachedAsset, error) {
	var asset CachedAsset
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(assetKey(generation, path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &asset)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// PurgeAssetGenerations deletes every asset slot not belonging to keep.
// Returns the number of purged entries.
func (l *Local) PurgeAssetGenerations(keep string) (int, error) {
	keepPrefix := assetPrefix + keep + ":"
	var stale [][]byte
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(assetPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if !strings.HasPrefix(string(key), keepPrefix) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}
