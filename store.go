package blobvault

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/havenfs/blobvault/pipeline"
	"github.com/havenfs/blobvault/pkg/blobstore"
	"github.com/havenfs/blobvault/pkg/envelope"
	"github.com/havenfs/blobvault/pkg/identity"
)

// storeConcurrency bounds how many leaf chunks are uploaded in parallel.
const storeConcurrency = 8

// StoreResult describes the outcome of a StoreContent call.
type StoreResult struct {
	Id        identity.ContentId
	Digests   identity.Digests
	Size      uint64
	NumChunks int
}

// Chunked reports whether the content was stored as a chunk tree.
func (r StoreResult) Chunked() bool {
	return r.NumChunks > 0
}

// StoreContent writes content into the vault. All content identities are
// computed incrementally while the data streams through the hasher set;
// content above the chunk size threshold is split into a chunk tree whose
// leaves are stored concurrently and deduplicated by hash. Alias indirection
// records for SHA1, SHA256 and Git-SHA1 are written last, so a reader that
// resolves an alias before the canonical blob landed sees NotFound rather
// than corruption.
func (v *Vault) StoreContent(ctx context.Context, content []byte) (StoreResult, error) {
	atomic.AddUint64(&v.writeCounter, 1)

	hs, err := identity.NewHasherSet(int64(len(content)))
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to create hasher set: %w", err)
	}

	var (
		chunks [][]byte
		root   contentRecord
	)
	if uint64(len(content)) <= v.config.ChunkSize {
		if err := hs.Update(content); err != nil {
			return StoreResult{}, err
		}
		root = newBytesRecord(content)
	} else {
		chunks, err = pipeline.Split(content, int64(v.config.ChunkSize))
		if err != nil {
			return StoreResult{}, fmt.Errorf("failed to split content: %w", err)
		}

		ids := make([]identity.ContentId, len(chunks))
		for i, chunk := range chunks {
			if err := hs.Update(chunk); err != nil {
				return StoreResult{}, err
			}
			ids[i] = identity.ComputeContentId(chunk)
		}
		root = newChunkedRecord(uint64(len(content)), ids)

		if err := v.storeLeaves(ctx, ids, chunks); err != nil {
			return StoreResult{}, err
		}
	}

	digests, err := hs.Finish()
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to finalize digests: %w", err)
	}

	if err := v.putRecord(ctx, digests.Id, root); err != nil {
		return StoreResult{}, fmt.Errorf("failed to store root record for %s: %w", digests.Id, err)
	}

	for _, alias := range digests.Aliases() {
		if err := identity.StoreAlias(ctx, v.blobs, alias, digests.Id); err != nil {
			return StoreResult{}, err
		}
	}

	log.Debugf("Successfully stored content %s (%d bytes, %d chunks)", digests.Id, len(content), len(chunks))
	return StoreResult{
		Id:        digests.Id,
		Digests:   digests,
		Size:      uint64(len(content)),
		NumChunks: len(chunks),
	}, nil
}

// storeLeaves uploads leaf chunks concurrently, skipping chunks whose
// content id is already present. A partially-completed store is safe to
// retry: chunks are content-addressed, so rewriting is idempotent.
func (v *Vault) storeLeaves(ctx context.Context, ids []identity.ContentId, chunks [][]byte) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(storeConcurrency)

	seen := make(map[identity.ContentId]bool, len(ids))
	for i := range chunks {
		if seen[ids[i]] {
			continue
		}
		seen[ids[i]] = true

		id, chunk := ids[i], chunks[i]
		group.Go(func() error {
			if err := v.putRecord(ctx, id, newBytesRecord(chunk)); err != nil {
				return fmt.Errorf("failed to store chunk %s: %w", id, err)
			}
			return nil
		})
	}

	return group.Wait()
}

// putRecord envelopes a record and writes it under the content key, skipping
// the write when the key is already confidently present.
func (v *Vault) putRecord(ctx context.Context, id identity.ContentId, record contentRecord) error {
	key := id.BlobKey()

	presence, err := v.blobs.IsPresent(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check presence of %s: %w", key, err)
	}
	if presence == blobstore.Present {
		log.Debugf("Skipping store of %s: already present", key)
		return nil
	}

	value, err := marshalRecord(record, v.config.Codec)
	if err != nil {
		return err
	}
	return v.blobs.Put(ctx, key, value)
}

// PackMember is one logical blob to be grouped into a pack.
type PackMember struct {
	Key  string
	Data []byte
}

// StorePacked groups several logical blobs into one Packed envelope so they
// can share a compression dictionary, and stores it under a content-derived
// pack key. Later members are delta-compressed against the first, which
// serves as the dictionary base.
func (v *Vault) StorePacked(ctx context.Context, members []PackMember) (string, error) {
	atomic.AddUint64(&v.writeCounter, 1)

	blobs := make([]envelope.RawBlob, len(members))
	for i, m := range members {
		blobs[i] = envelope.RawBlob{Key: m.Key, Data: m.Data}
	}

	packed, err := envelope.NewPack(blobs, v.config.Codec)
	if err != nil {
		return "", fmt.Errorf("failed to build pack: %w", err)
	}

	value, err := envelope.Envelope{Packed: packed}.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode pack envelope: %w", err)
	}

	packKey := fmt.Sprintf("pack.blake3.%s", identity.ComputeContentId(value).Hex())
	if err := v.blobs.Put(ctx, packKey, value); err != nil {
		return "", fmt.Errorf("failed to store pack %s: %w", packKey, err)
	}

	log.Debugf("Successfully stored pack %s with %d entries", packKey, len(members))
	return packKey, nil
}

// FetchPacked extracts one member from a stored pack, returning its bytes
// and the storage-accounting metadata for the entry.
func (v *Vault) FetchPacked(ctx context.Context, packKey, memberKey string) ([]byte, envelope.SizeMetadata, error) {
	atomic.AddUint64(&v.readCounter, 1)

	raw, found, err := v.blobs.Get(ctx, packKey)
	if err != nil {
		return nil, envelope.SizeMetadata{}, fmt.Errorf("failed to get pack %s: %w", packKey, err)
	}
	if !found {
		return nil, envelope.SizeMetadata{}, &blobstore.NotFoundError{Key: packKey}
	}

	env, err := envelope.Decode(raw)
	if err != nil {
		return nil, envelope.SizeMetadata{}, fmt.Errorf("failed to decode pack envelope %s: %w", packKey, err)
	}
	if env.Packed == nil {
		return nil, envelope.SizeMetadata{}, fmt.Errorf("blob %s holds a single envelope, expected packed", packKey)
	}

	data, meta, err := env.Packed.DecodeEntry(memberKey)
	if err != nil {
		return nil, envelope.SizeMetadata{}, fmt.Errorf("failed to decode entry %s from pack %s: %w", memberKey, packKey, err)
	}
	return data, meta, nil
}
