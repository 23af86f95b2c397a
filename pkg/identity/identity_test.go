package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentIdBlobKey(t *testing.T) {
	id := ComputeContentId([]byte("some content"))
	key := id.BlobKey()

	assert.True(t, strings.HasPrefix(key, "content.blake3."))
	assert.Equal(t, "content.blake3."+id.Hex(), key)

	parsed, err := ParseContentId(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseContentIdRejectsBadInput(t *testing.T) {
	_, err := ParseContentId("zzzz")
	assert.Error(t, err)

	_, err = ParseContentId("abcd")
	assert.Error(t, err, "short digest must be rejected")
}

func TestAliasBlobKeyFormat(t *testing.T) {
	digest := make([]byte, 20)
	for i := range digest {
		digest[i] = byte(i)
	}

	alias, err := NewAlias(AliasSha1, digest)
	require.NoError(t, err)
	assert.Equal(t, "alias.sha1.000102030405060708090a0b0c0d0e0f10111213", alias.BlobKey())

	_, err = NewAlias(AliasSha256, digest)
	assert.Error(t, err, "sha256 alias needs a 32-byte digest")

	gitAlias, err := NewAlias(AliasGitSha1, digest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gitAlias.BlobKey(), "alias.gitsha1."))
}

func TestParseAliasKindRoundTrip(t *testing.T) {
	for _, kind := range []AliasKind{AliasSha1, AliasSha256, AliasGitSha1} {
		parsed, err := ParseAliasKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseAliasKind("md5")
	assert.Error(t, err)
}

func TestFetchKeyVariants(t *testing.T) {
	id := ComputeContentId([]byte("content"))

	canonical := Canonical(id)
	gotId, ok := canonical.Canonical()
	require.True(t, ok)
	assert.Equal(t, id, gotId)
	_, ok = canonical.Alias()
	assert.False(t, ok)

	alias := Alias{Kind: AliasSha256, Digest: make([]byte, 32)}
	aliased := Aliased(alias)
	gotAlias, ok := aliased.Alias()
	require.True(t, ok)
	assert.Equal(t, alias, gotAlias)
	_, ok = aliased.Canonical()
	assert.False(t, ok)
}
