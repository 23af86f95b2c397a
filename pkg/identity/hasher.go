package identity

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Digests holds the finalized identities of one logical byte stream.
type Digests struct {
	Id      ContentId
	Sha1    Alias
	Sha256  Alias
	GitSha1 Alias
}

// Aliases returns the secondary identities in a fixed order.
func (d Digests) Aliases() []Alias {
	return []Alias{d.Sha1, d.Sha256, d.GitSha1}
}

// HasherSet computes the canonical content id and all secondary aliases
// incrementally over a stream of byte chunks, without buffering the input.
// The Git-style SHA1 requires the total content size up front because the
// hasher is primed with the Git object header before any content bytes.
type HasherSet struct {
	content  *blake3.Hasher
	sha1     hash.Hash
	sha256   hash.Hash
	git      hash.Hash
	size     int64
	written  int64
	finished bool
}

// NewHasherSet creates a hasher set for content of the given size. The size
// must be known (non-negative) because the Git object header embeds it.
func NewHasherSet(size int64) (*HasherSet, error) {
	if size < 0 {
		return nil, fmt.Errorf("content size must be known up front for git-style hashing, got %d", size)
	}

	git := sha1.New()
	// Git hashes "blob <decimal size>\x00" before the content bytes. This
	// must match Git's object hashing bit-for-bit.
	fmt.Fprintf(git, "blob %d", size)
	git.Write([]byte{0})

	return &HasherSet{
		content: blake3.New(),
		sha1:    sha1.New(),
		sha256:  sha256.New(),
		git:     git,
		size:    size,
	}, nil
}

// Update feeds more bytes. Order-sensitive; callable any number of times
// before Finish.
func (h *HasherSet) Update(p []byte) error {
	if h.finished {
		return fmt.Errorf("hasher set already finished")
	}
	h.written += int64(len(p))
	h.content.Write(p)
	h.sha1.Write(p)
	h.sha256.Write(p)
	h.git.Write(p)
	return nil
}

// Finish consumes the hasher set and returns the digests. It fails if called
// twice or if the fed byte count does not match the advisory size.
func (h *HasherSet) Finish() (Digests, error) {
	if h.finished {
		return Digests{}, fmt.Errorf("hasher set already finished")
	}
	h.finished = true

	if h.written != h.size {
		return Digests{}, fmt.Errorf("content size mismatch: advertised %d bytes, hashed %d", h.size, h.written)
	}

	var id ContentId
	h.content.Sum(id[:0])

	return Digests{
		Id:      id,
		Sha1:    Alias{Kind: AliasSha1, Digest: h.sha1.Sum(nil)},
		Sha256:  Alias{Kind: AliasSha256, Digest: h.sha256.Sum(nil)},
		GitSha1: Alias{Kind: AliasGitSha1, Digest: h.git.Sum(nil)},
	}, nil
}
