// Package identity defines the content identities used by the blob store:
// the canonical blake3 ContentId, the secondary aliases (SHA1, SHA256,
// Git-style SHA1) and the FetchKey union used to initiate lookups.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// ContentIdLength is the size in bytes of the canonical content digest.
const ContentIdLength = 32

// ContentId is the canonical identity of a logical blob: the blake3 digest
// of its reassembled, decompressed bytes.
type ContentId [ContentIdLength]byte

// ComputeContentId hashes data in one shot. For streaming use HasherSet.
func ComputeContentId(data []byte) ContentId {
	return ContentId(blake3.Sum256(data))
}

// ParseContentId decodes a hex-encoded canonical digest.
func ParseContentId(s string) (ContentId, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ContentId{}, fmt.Errorf("invalid content id %q: %w", s, err)
	}
	if len(raw) != ContentIdLength {
		return ContentId{}, fmt.Errorf("invalid content id %q: expected %d bytes, got %d", s, ContentIdLength, len(raw))
	}
	var id ContentId
	copy(id[:], raw)
	return id, nil
}

func (id ContentId) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ContentId) String() string {
	return id.Hex()
}

// BlobKey returns the logical storage key for the content addressed by id.
func (id ContentId) BlobKey() string {
	return fmt.Sprintf("content.blake3.%s", id.Hex())
}

// IsZero reports whether id is the zero value.
func (id ContentId) IsZero() bool {
	var zero ContentId
	return id == zero
}

// AliasKind identifies one of the secondary hash identities.
type AliasKind uint8

const (
	AliasSha1 AliasKind = iota
	AliasSha256
	AliasGitSha1
)

// DigestLength returns the digest size in bytes for the kind.
func (k AliasKind) DigestLength() int {
	switch k {
	case AliasSha1, AliasGitSha1:
		return 20
	case AliasSha256:
		return 32
	default:
		return 0
	}
}

func (k AliasKind) String() string {
	switch k {
	case AliasSha1:
		return "sha1"
	case AliasSha256:
		return "sha256"
	case AliasGitSha1:
		return "gitsha1"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseAliasKind is the inverse of AliasKind.String.
func ParseAliasKind(s string) (AliasKind, error) {
	switch s {
	case "sha1":
		return AliasSha1, nil
	case "sha256":
		return AliasSha256, nil
	case "gitsha1":
		return AliasGitSha1, nil
	default:
		return 0, fmt.Errorf("unknown alias kind %q", s)
	}
}

// Alias is a secondary content identity. Each alias maps to exactly one
// ContentId; the mapping is stored as an indirection record under BlobKey.
type Alias struct {
	Kind   AliasKind
	Digest []byte
}

// NewAlias validates the digest length for the kind.
func NewAlias(kind AliasKind, digest []byte) (Alias, error) {
	if len(digest) != kind.DigestLength() {
		return Alias{}, fmt.Errorf("invalid %s digest: expected %d bytes, got %d", kind, kind.DigestLength(), len(digest))
	}
	return Alias{Kind: kind, Digest: digest}, nil
}

func (a Alias) Hex() string {
	return hex.EncodeToString(a.Digest)
}

func (a Alias) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, a.Hex())
}

// BlobKey returns the logical storage key of the alias indirection record.
func (a Alias) BlobKey() string {
	return fmt.Sprintf("alias.%s.%s", a.Kind, a.Hex())
}

// FetchKey is the tagged union used to initiate a content lookup: either the
// canonical ContentId or one of its aliases. Resolving an aliased key costs
// one extra storage read; resolving a canonical key costs none (and does not
// itself guarantee the content exists).
type FetchKey struct {
	canonical *ContentId
	alias     *Alias
}

// Canonical builds a FetchKey addressing content by its canonical id.
func Canonical(id ContentId) FetchKey {
	return FetchKey{canonical: &id}
}

// Aliased builds a FetchKey addressing content through a secondary identity.
func Aliased(a Alias) FetchKey {
	return FetchKey{alias: &a}
}

// Canonical returns the canonical id and true if the key is canonical.
func (k FetchKey) Canonical() (ContentId, bool) {
	if k.canonical == nil {
		return ContentId{}, false
	}
	return *k.canonical, true
}

// Alias returns the alias and true if the key is aliased.
func (k FetchKey) Alias() (Alias, bool) {
	if k.alias == nil {
		return Alias{}, false
	}
	return *k.alias, true
}

func (k FetchKey) String() string {
	if k.canonical != nil {
		return k.canonical.BlobKey()
	}
	if k.alias != nil {
		return k.alias.BlobKey()
	}
	return "fetchkey(empty)"
}
