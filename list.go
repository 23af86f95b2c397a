package blobvault

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/havenfs/blobvault/pkg/blobstore"
	"github.com/havenfs/blobvault/pkg/identity"
)

// ContentInfo summarizes one stored content root for administrative tooling.
type ContentInfo struct {
	Id         identity.ContentId
	Chunked    bool
	NumChunks  int
	TotalSize  uint64 // logical size; for Bytes roots the decoded length
	StoredSize uint64 // envelope size of the root blob on disk
}

// ListContentIds returns the content ids of all stored roots and leaf
// chunks in this repository, in key order. The listing reads the physical
// store directly and is not redaction-gated: it exposes identities only,
// never content bytes.
func (v *Vault) ListContentIds() ([]identity.ContentId, error) {
	prefix := blobstore.RepoPrefix(v.config.RepoID) + "content.blake3."

	var ids []identity.ContentId
	err := v.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			hexDigest := strings.TrimPrefix(string(it.Item().Key()), prefix)
			id, err := identity.ParseContentId(hexDigest)
			if err != nil {
				return fmt.Errorf("malformed content key %s: %w", it.Item().Key(), err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content ids: %w", err)
	}
	return ids, nil
}

// ListContent returns detailed information about every stored content blob.
func (v *Vault) ListContent() ([]ContentInfo, error) {
	prefix := blobstore.RepoPrefix(v.config.RepoID) + "content.blake3."

	var infos []ContentInfo
	err := v.badgerDB.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			hexDigest := strings.TrimPrefix(string(item.Key()), prefix)
			id, err := identity.ParseContentId(hexDigest)
			if err != nil {
				return fmt.Errorf("malformed content key %s: %w", item.Key(), err)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read blob %s: %w", item.Key(), err)
			}

			record, err := unmarshalRecord(raw)
			if err != nil {
				log.Errorf("Failed to decode content record %s: %v", id, err)
				continue
			}

			info := ContentInfo{Id: id, StoredSize: uint64(len(raw))}
			if record.Chunked != nil {
				info.Chunked = true
				info.NumChunks = len(record.Chunked.Chunks)
				info.TotalSize = record.Chunked.TotalSize
			} else {
				info.TotalSize = uint64(len(record.Bytes.Data))
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return infos, nil
}
