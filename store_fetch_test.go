package blobvault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenfs/blobvault/pipeline"
	"github.com/havenfs/blobvault/pkg/blobstore"
	"github.com/havenfs/blobvault/pkg/identity"
)

func testPayload(size int) []byte {
	data := make([]byte, size)
	state := uint64(0x853c49e6748fea9b)
	for i := range data {
		state = state*6364136223846793005 + 1442695040888963407
		data[i] = byte(state >> 56)
	}
	return data
}

func TestStoreFetchRoundTrip(t *testing.T) {
	// Chunk size in the fixture is 1024.
	cases := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"single byte", 1},
		{"exactly chunk size", 1024},
		{"one byte over", 1025},
		{"many chunks plus remainder", 7*1024 + 311},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			vault := setupTestVault(t)
			content := testPayload(tc.size)

			result, err := vault.StoreContent(ctx, content)
			require.NoError(t, err)
			assert.Equal(t, identity.ComputeContentId(content), result.Id)
			assert.Equal(t, uint64(tc.size), result.Size)
			assert.Equal(t, tc.size > 1024, result.Chunked())

			fetched, err := vault.FetchContent(ctx, identity.Canonical(result.Id))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(content, fetched))
		})
	}
}

func TestAliasConsistency(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)
	content := testPayload(3000)

	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)

	keys := []identity.FetchKey{
		identity.Canonical(result.Id),
		identity.Aliased(result.Digests.Sha1),
		identity.Aliased(result.Digests.Sha256),
		identity.Aliased(result.Digests.GitSha1),
	}
	for _, key := range keys {
		fetched, err := vault.FetchContent(ctx, key)
		require.NoError(t, err, "fetch via %s", key)
		assert.True(t, bytes.Equal(content, fetched), "fetch via %s", key)

		presence, err := vault.IsPresent(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, blobstore.Present, presence)
	}
}

func TestAliasConsistencyForMissingContent(t *testing.T) {
	// All four fetch key forms of never-stored content must fail; never a
	// mix of success and failure.
	ctx := context.Background()
	vault := setupTestVault(t)

	content := testPayload(100)
	hs, err := identity.NewHasherSet(int64(len(content)))
	require.NoError(t, err)
	require.NoError(t, hs.Update(content))
	digests, err := hs.Finish()
	require.NoError(t, err)

	keys := []identity.FetchKey{
		identity.Canonical(digests.Id),
		identity.Aliased(digests.Sha1),
		identity.Aliased(digests.Sha256),
		identity.Aliased(digests.GitSha1),
	}
	for _, key := range keys {
		_, err := vault.FetchContent(ctx, key)
		require.Error(t, err, "fetch via %s", key)

		var notFound *blobstore.NotFoundError
		assert.True(t, errors.As(err, &notFound), "fetch via %s: %v", key, err)

		presence, err := vault.IsPresent(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, blobstore.Absent, presence)
	}
}

func TestStoreDeduplicates(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)
	content := testPayload(5000)

	_, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)
	keysAfterFirst := countPhysicalKeys(t, vault)

	// Storing identical content again must create no new physical keys.
	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, keysAfterFirst, countPhysicalKeys(t, vault))
	assert.Equal(t, identity.ComputeContentId(content), result.Id)
}

func TestStoreDeduplicatesRepeatedChunks(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	// Four identical 1024-byte chunks collapse to one leaf blob:
	// one root, one leaf, three aliases.
	chunk := testPayload(1024)
	content := bytes.Repeat(chunk, 4)

	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, 4, result.NumChunks)
	assert.Equal(t, 5, countPhysicalKeys(t, vault))

	fetched, err := vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, fetched))
}

func TestFetcherYieldsOrderedSegments(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)
	content := testPayload(4*1024 + 100)

	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)

	fetcher, err := vault.NewFetcher(ctx, identity.Canonical(result.Id))
	require.NoError(t, err)

	var reassembled []byte
	segments := 0
	for {
		segment, err := fetcher.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		segments++
		reassembled = append(reassembled, segment...)
	}

	assert.Equal(t, result.NumChunks, segments)
	assert.True(t, bytes.Equal(content, reassembled))

	// The traversal is not restartable; a drained fetcher stays drained.
	_, err = fetcher.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestFetchDeepChunkTree(t *testing.T) {
	// Hand-built nested tree: root -> [mid -> [A, B], C]. The explicit
	// stack traversal must yield A, B, C in order with correct depths.
	ctx := context.Background()
	vault := setupTestVault(t)

	leaves := [][]byte{[]byte("segment A"), []byte("segment B"), []byte("segment C")}
	var leafIds []identity.ContentId
	for _, leaf := range leaves {
		id := identity.ComputeContentId(leaf)
		require.NoError(t, vault.putRecord(ctx, id, newBytesRecord(leaf)))
		leafIds = append(leafIds, id)
	}

	midId := identity.ComputeContentId([]byte("mid index"))
	require.NoError(t, vault.putRecord(ctx, midId, newChunkedRecord(18, leafIds[:2])))

	rootId := identity.ComputeContentId([]byte("root index"))
	require.NoError(t, vault.putRecord(ctx, rootId, newChunkedRecord(27, []identity.ContentId{midId, leafIds[2]})))

	fetched, err := vault.FetchContent(ctx, identity.Canonical(rootId))
	require.NoError(t, err)
	assert.Equal(t, []byte("segment Asegment Bsegment C"), fetched)
}

func TestFetchMissingChunkReportsDepth(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)
	content := testPayload(3*1024 + 5)

	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)
	require.True(t, result.Chunked())

	// Delete one leaf chunk out from under the tree.
	chunks, err := pipeline.Split(content, 1024)
	require.NoError(t, err)
	victim := identity.ComputeContentId(chunks[1])
	physicalKey := blobstore.RepoPrefix(vault.config.RepoID) + victim.BlobKey()
	require.NoError(t, vault.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(physicalKey))
	}))

	_, err = vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.Error(t, err)

	var notFound *blobstore.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, victim.BlobKey(), notFound.Key)
	assert.Equal(t, 1, notFound.Depth)
}

func TestFetchCorruptChunkFails(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	result, err := vault.StoreContent(ctx, testPayload(100))
	require.NoError(t, err)

	physicalKey := blobstore.RepoPrefix(vault.config.RepoID) + result.Id.BlobKey()
	require.NoError(t, vault.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(physicalKey), []byte{0, 0, 0, 1, 0xff})
	}))

	_, err = vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.Error(t, err)

	var notFound *blobstore.NotFoundError
	assert.False(t, errors.As(err, &notFound), "corruption must not look like not-found")
}

func TestRedactionEndToEnd(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)
	content := []byte("content subject to a takedown")

	result, err := vault.StoreContent(ctx, content)
	require.NoError(t, err)

	// Prime the redaction cache with a negative answer first.
	_, err = vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.NoError(t, err)

	contentKey := result.Id.BlobKey()
	require.NoError(t, vault.Redactions().InsertCensoredBlobs(ctx, []string{contentKey}, "legal-2026-014", time.Now().Unix()))

	_, err = vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.Error(t, err)

	var redacted *blobstore.RedactedError
	require.True(t, errors.As(err, &redacted))
	assert.Equal(t, contentKey, redacted.Key)
	assert.Equal(t, "legal-2026-014", redacted.Task)

	// Lifting the redaction restores access.
	require.NoError(t, vault.Redactions().DeleteCensoredBlobs(ctx, []string{contentKey}))
	fetched, err := vault.FetchContent(ctx, identity.Canonical(result.Id))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, fetched))
}

func TestStoreFetchPacked(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	base := testPayload(2000)
	edited := append(append([]byte{}, base...), []byte(" trailing edit")...)
	members := []PackMember{
		{Key: "doc/v1", Data: base},
		{Key: "doc/v2", Data: edited},
	}

	packKey, err := vault.StorePacked(ctx, members)
	require.NoError(t, err)

	for _, member := range members {
		data, meta, err := vault.FetchPacked(ctx, packKey, member.Key)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(member.Data, data))
		assert.Greater(t, meta.UniqueCompressedSize, uint64(0))
	}

	_, meta, err := vault.FetchPacked(ctx, packKey, "doc/v2")
	require.NoError(t, err)
	assert.Equal(t, "doc/v1", meta.DictKey)

	_, _, err = vault.FetchPacked(ctx, packKey, "doc/v9")
	require.Error(t, err)

	_, _, err = vault.FetchPacked(ctx, "pack.blake3.missing", "doc/v1")
	var notFound *blobstore.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestCopyContent(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	result, err := vault.StoreContent(ctx, []byte("copyable"))
	require.NoError(t, err)

	require.NoError(t, vault.CopyContent(ctx, result.Id, "staging.copy.1"))

	value, found, err := vault.Blobstore().Get(ctx, "staging.copy.1")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, value)
}

func TestValidateAll(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	small, err := vault.StoreContent(ctx, testPayload(200))
	require.NoError(t, err)
	large, err := vault.StoreContent(ctx, testPayload(5000))
	require.NoError(t, err)

	results, err := vault.ValidateAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.True(t, res.Passed(), "validation of %s: %v", res.Id, res.Err)
	}

	// Tamper with one leaf; validation must flag it.
	chunks, err := pipeline.Split(testPayload(5000), 1024)
	require.NoError(t, err)
	victim := identity.ComputeContentId(chunks[0])
	tampered, err := marshalRecord(newBytesRecord([]byte("tampered")), vault.config.Codec)
	require.NoError(t, err)
	physicalKey := blobstore.RepoPrefix(vault.config.RepoID) + victim.BlobKey()
	require.NoError(t, vault.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(physicalKey), tampered)
	}))

	results, err = vault.ValidateAll(ctx)
	require.NoError(t, err)

	failed := map[identity.ContentId]bool{}
	for _, res := range results {
		if !res.Passed() {
			failed[res.Id] = true
		}
	}
	assert.True(t, failed[victim], "tampered leaf must fail validation")
	assert.True(t, failed[large.Id], "root above the tampered leaf must fail validation")
	assert.False(t, failed[small.Id])
}

func TestListContent(t *testing.T) {
	ctx := context.Background()
	vault := setupTestVault(t)

	small, err := vault.StoreContent(ctx, testPayload(100))
	require.NoError(t, err)
	large, err := vault.StoreContent(ctx, testPayload(4096))
	require.NoError(t, err)

	infos, err := vault.ListContent()
	require.NoError(t, err)

	byId := map[identity.ContentId]ContentInfo{}
	for _, info := range infos {
		byId[info.Id] = info
	}

	require.Contains(t, byId, small.Id)
	assert.False(t, byId[small.Id].Chunked)
	assert.Equal(t, uint64(100), byId[small.Id].TotalSize)

	require.Contains(t, byId, large.Id)
	assert.True(t, byId[large.Id].Chunked)
	assert.Equal(t, uint64(4096), byId[large.Id].TotalSize)
	assert.Equal(t, large.NumChunks, byId[large.Id].NumChunks)
}
