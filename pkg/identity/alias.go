package identity

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/havenfs/blobvault/pkg/blobstore"
)

// aliasRecord is the small indirection record stored under an alias key.
type aliasRecord struct {
	ContentId []byte `cbor:"1,keyasint"`
}

// Resolve maps a FetchKey to its canonical ContentId. Canonical keys resolve
// with no I/O. Aliased keys cost one Get on the alias indirection record; a
// missing record is a NotFoundError, corrupt record bytes are a decode error.
func Resolve(ctx context.Context, store blobstore.Blobstore, key FetchKey) (ContentId, error) {
	if id, ok := key.Canonical(); ok {
		return id, nil
	}

	alias, ok := key.Alias()
	if !ok {
		return ContentId{}, fmt.Errorf("empty fetch key")
	}

	raw, found, err := store.Get(ctx, alias.BlobKey())
	if err != nil {
		return ContentId{}, fmt.Errorf("failed to load alias %s: %w", alias, err)
	}
	if !found {
		return ContentId{}, &blobstore.NotFoundError{Key: alias.BlobKey()}
	}

	var record aliasRecord
	if err := cbor.Unmarshal(raw, &record); err != nil {
		return ContentId{}, fmt.Errorf("failed to decode alias record %s: %w", alias, err)
	}
	if len(record.ContentId) != ContentIdLength {
		return ContentId{}, fmt.Errorf("corrupt alias record %s: content id has %d bytes, expected %d", alias, len(record.ContentId), ContentIdLength)
	}

	var id ContentId
	copy(id[:], record.ContentId)
	return id, nil
}

// StoreAlias writes the alias indirection record. Concurrent writers racing
// on the same alias always write identical records (the mapping is a pure
// function of content), so a blind last-write-wins put is sufficient.
func StoreAlias(ctx context.Context, store blobstore.Blobstore, alias Alias, id ContentId) error {
	record := aliasRecord{ContentId: id[:]}
	raw, err := cbor.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode alias record %s: %w", alias, err)
	}
	if err := store.Put(ctx, alias.BlobKey(), raw); err != nil {
		return fmt.Errorf("failed to store alias %s: %w", alias, err)
	}
	return nil
}
