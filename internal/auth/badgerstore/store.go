// Package badgerstore keeps the authorized user set in an embedded badger
// directory, for deployments that run the registry without Postgres.
package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"kamadata-bot/internal/auth"

	"github.com/dgraph-io/badger/v4"
)

var (
	prefix        = []byte("authorized/")
	pendingPrefix = []byte("pending/")
)

type Store struct {
	db *badger.DB
}

var _ auth.Store = (*Store)(nil)

// Open opens or creates the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(userID int64) []byte {
	return keyWith(prefix, userID)
}

func keyWith(p []byte, userID int64) []byte {
	k := make([]byte, len(p)+8)
	copy(k, p)
	binary.BigEndian.PutUint64(k[len(p):], uint64(userID))
	return k
}

func (s *Store) LoadAuthorized(context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()
			if len(k) != len(prefix)+8 {
				continue
			}
			ids = append(ids, int64(binary.BigEndian.Uint64(k[len(prefix):])))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load authorized users: %w", err)
	}
	return ids, nil
}

func (s *Store) SaveAuthorized(_ context.Context, userID int64) error {
	stamp, err := time.Now().UTC().MarshalBinary()
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), stamp)
	})
	if err != nil {
		return fmt.Errorf("save authorized user %d: %w", userID, err)
	}
	return nil
}

func (s *Store) DeleteAuthorized(_ context.Context, userID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(userID))
	})
	if err != nil {
		return fmt.Errorf("delete authorized user %d: %w", userID, err)
	}
	return nil
}

// LoadPending returns the stored access requests with their display names.
func (s *Store) LoadPending(context.Context) (map[int64]string, error) {
	pending := make(map[int64]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pendingPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
			item := it.Item()
			k := item.Key()
			if len(k) != len(pendingPrefix)+8 {
				continue
			}
			name, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pending[int64(binary.BigEndian.Uint64(k[len(pendingPrefix):]))] = string(name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}
	return pending, nil
}

func (s *Store) SavePending(_ context.Context, userID int64, displayName string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyWith(pendingPrefix, userID), []byte(displayName))
	})
	if err != nil {
		return fmt.Errorf("save pending request %d: %w", userID, err)
	}
	return nil
}

func (s *Store) DeletePending(_ context.Context, userID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyWith(pendingPrefix, userID))
	})
	if err != nil {
		return fmt.Errorf("delete pending request %d: %w", userID, err)
	}
	return nil
}
