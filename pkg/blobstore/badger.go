package blobstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBlobstore is the physical backend over a badger key-value store.
// Single-key puts are atomic; Copy is served inside one read-write
// transaction so the new key never holds a partial value.
type BadgerBlobstore struct {
	db *badger.DB
}

func NewBadgerBlobstore(db *badger.DB) *BadgerBlobstore {
	return &BadgerBlobstore{db: db}
}

func (b *BadgerBlobstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return value, true, nil
}

func (b *BadgerBlobstore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	return nil
}

func (b *BadgerBlobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	if err := ctx.Err(); err != nil {
		return Absent, err
	}

	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return Absent, nil
	}
	if err != nil {
		return Absent, fmt.Errorf("failed to check presence of blob %s: %w", key, err)
	}
	return Present, nil
}

func (b *BadgerBlobstore) Copy(ctx context.Context, oldKey, newKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(oldKey))
		if err == badger.ErrKeyNotFound {
			return &NotFoundError{Key: oldKey}
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Set([]byte(newKey), value)
	})
	if err != nil {
		return fmt.Errorf("failed to copy blob %s to %s: %w", oldKey, newKey, err)
	}
	return nil
}
