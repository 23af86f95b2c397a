package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBadger(t *testing.T) *BadgerBlobstore {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewBadgerBlobstore(db)
}

func TestBadgerBlobstoreGetPut(t *testing.T) {
	ctx := context.Background()
	store := setupBadger(t)

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "key", []byte("value")))

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value"), value)

	// Last write wins on the same key.
	require.NoError(t, store.Put(ctx, "key", []byte("newer")))
	value, _, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), value)
}

func TestBadgerBlobstorePresence(t *testing.T) {
	ctx := context.Background()
	store := setupBadger(t)

	presence, err := store.IsPresent(ctx, "nothing")
	require.NoError(t, err)
	assert.Equal(t, Absent, presence)

	require.NoError(t, store.Put(ctx, "something", []byte("x")))
	presence, err = store.IsPresent(ctx, "something")
	require.NoError(t, err)
	assert.Equal(t, Present, presence)
}

func TestBadgerBlobstoreCopy(t *testing.T) {
	ctx := context.Background()
	store := setupBadger(t)

	require.NoError(t, store.Put(ctx, "src", []byte("payload")))
	require.NoError(t, store.Copy(ctx, "src", "dst"))

	value, found, err := store.Get(ctx, "dst")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("payload"), value)

	err = store.Copy(ctx, "absent", "dst2")
	require.Error(t, err)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestBadgerBlobstoreEmptyValue(t *testing.T) {
	// An empty stored value is present, distinct from an absent key.
	ctx := context.Background()
	store := setupBadger(t)

	require.NoError(t, store.Put(ctx, "empty", []byte{}))

	value, found, err := store.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, value)
}
