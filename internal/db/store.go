// Package db is the persisted key-value blob store backing part locations
// and station configuration.
package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("key not found")

type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a badger database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// NewInMemoryStore is used by tests and by callers that do not need
// durability.
func NewInMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is open and readable.
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("badger closed")
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

func (s *Store) Get(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(namespace + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, namespace, key)
	}
	return value, err
}

func (s *Store) Set(namespace, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(namespace+key), value)
	})
}

func (s *Store) Delete(namespace, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(namespace + key))
	})
}

// GetJSON decodes the value stored at namespace+key into v.
func (s *Store) GetJSON(namespace, key string, v any) error {
	data, err := s.Get(namespace, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) SetJSON(namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", namespace, key, err)
	}
	return s.Set(namespace, key, data)
}

// Scan calls fn for every key under namespace+prefix with the key relative
// to namespace. Returning an error from fn stops the scan.
func (s *Store) Scan(namespace, prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		full := []byte(namespace + prefix)
		for it.Seek(full); it.ValidForPrefix(full); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key())[len(namespace):], value); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns up to limit keys under namespace+prefix (all when limit <= 0).
func (s *Store) List(namespace, prefix string, limit int) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		full := []byte(namespace + prefix)
		for it.Seek(full); it.ValidForPrefix(full) && (limit <= 0 || len(keys) < limit); it.Next() {
			keys = append(keys, string(it.Item().Key())[len(namespace):])
		}
		return nil
	})
	return keys, err
}
