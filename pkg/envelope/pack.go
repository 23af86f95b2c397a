package envelope

import (
	"fmt"

	"github.com/havenfs/blobvault/pipeline"
)

// Codec identifies how entry bytes are compressed.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLzma
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLzma:
		return "lzma"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// maxDictChain bounds how many dictionary-base references a pack entry may
// chain through. The reader cannot recover from a cyclic pack, so it fails
// loudly once the bound is exceeded.
const maxDictChain = 64

// Single holds one logical blob compressed independently of any other.
type Single struct {
	Codec   Codec  `cbor:"1,keyasint"`
	RawSize uint64 `cbor:"2,keyasint"`
	Data    []byte `cbor:"3,keyasint"`
}

// PackEntry describes one logical blob inside a pack. A non-empty DictKey
// names another entry in the same pack whose decoded bytes serve as the raw
// compression dictionary for this entry.
type PackEntry struct {
	Key     string `cbor:"1,keyasint"`
	Codec   Codec  `cbor:"2,keyasint"`
	DictKey string `cbor:"3,keyasint,omitempty"`
	RawSize uint64 `cbor:"4,keyasint"`
	Data    []byte `cbor:"5,keyasint"`
}

// Packed groups multiple logical blobs that share compression dictionaries.
type Packed struct {
	Entries []PackEntry `cbor:"1,keyasint"`
}

// SizeMetadata records storage-accounting figures for a decoded entry.
// UniqueCompressedSize is the cost attributable solely to the entry itself;
// TotalSize includes the compressed sizes of the dictionary chain it
// depends on.
type SizeMetadata struct {
	UniqueCompressedSize uint64
	TotalSize            uint64
	DictKey              string
	ChainLength          int
}

// KeyNotInPackError reports a requested key absent from a successfully
// decoded pack, as opposed to the pack being undecodable.
type KeyNotInPackError struct {
	Key string
}

func (e *KeyNotInPackError) Error() string {
	return fmt.Sprintf("key %s not found in pack", e.Key)
}

// EncodeSingle compresses data with the codec and wraps it as a Single.
func EncodeSingle(data []byte, codec Codec) (*Single, error) {
	compressed, err := compress(data, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to compress single entry: %w", err)
	}
	return &Single{Codec: codec, RawSize: uint64(len(data)), Data: compressed}, nil
}

// Decode decompresses a standalone entry and returns the logical bytes plus
// the compressed size attributable to it.
func (s *Single) Decode() ([]byte, uint64, error) {
	data, err := decompress(s.Data, s.Codec)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decompress single entry: %w", err)
	}
	if uint64(len(data)) != s.RawSize {
		return nil, 0, fmt.Errorf("single entry size mismatch: recorded %d bytes, decoded %d", s.RawSize, len(data))
	}
	return data, uint64(len(s.Data)), nil
}

// RawBlob is one logical blob to be packed.
type RawBlob struct {
	Key  string
	Data []byte
}

// NewPack groups blobs into a Packed envelope body. The first blob is the
// standalone dictionary base; every later entry is compressed against the
// base's raw bytes. Decoding any entry reconstructs byte-identical content
// regardless of which other entries remain in the pack, as long as its
// dictionary chain is intact.
func NewPack(blobs []RawBlob, codec Codec) (*Packed, error) {
	if len(blobs) == 0 {
		return nil, fmt.Errorf("cannot build an empty pack")
	}

	seen := make(map[string]bool, len(blobs))
	entries := make([]PackEntry, 0, len(blobs))
	for i, blob := range blobs {
		if blob.Key == "" {
			return nil, fmt.Errorf("pack entry %d has an empty key", i)
		}
		if seen[blob.Key] {
			return nil, fmt.Errorf("duplicate key %s in pack", blob.Key)
		}
		seen[blob.Key] = true

		entry := PackEntry{Key: blob.Key, Codec: codec, RawSize: uint64(len(blob.Data))}
		if i == 0 || codec != CodecZstd {
			compressed, err := compress(blob.Data, codec)
			if err != nil {
				return nil, fmt.Errorf("failed to compress pack entry %s: %w", blob.Key, err)
			}
			entry.Data = compressed
		} else {
			compressed, err := pipeline.CompressZstdDict(blob.Data, blobs[0].Data)
			if err != nil {
				return nil, fmt.Errorf("failed to compress pack entry %s against dictionary %s: %w", blob.Key, blobs[0].Key, err)
			}
			entry.Data = compressed
			entry.DictKey = blobs[0].Key
		}
		entries = append(entries, entry)
	}

	return &Packed{Entries: entries}, nil
}

// DecodeEntry locates key within the pack, follows its dictionary-base
// chain, and reconstructs the logical bytes along with storage-accounting
// metadata. A missing key is a KeyNotInPackError; a chain longer than
// maxDictChain (which covers cyclic packs) is a hard error.
func (p *Packed) DecodeEntry(key string) ([]byte, SizeMetadata, error) {
	byKey := make(map[string]*PackEntry, len(p.Entries))
	for i := range p.Entries {
		byKey[p.Entries[i].Key] = &p.Entries[i]
	}

	entry, ok := byKey[key]
	if !ok {
		return nil, SizeMetadata{}, &KeyNotInPackError{Key: key}
	}

	// Walk the chain from the requested entry down to its standalone base.
	chain := []*PackEntry{entry}
	visited := map[string]bool{key: true}
	for current := entry; current.DictKey != ""; {
		if len(chain) > maxDictChain {
			return nil, SizeMetadata{}, fmt.Errorf("dictionary chain for %s exceeds %d entries", key, maxDictChain)
		}
		if visited[current.DictKey] {
			return nil, SizeMetadata{}, fmt.Errorf("cyclic dictionary chain in pack at %s", current.DictKey)
		}
		next, ok := byKey[current.DictKey]
		if !ok {
			return nil, SizeMetadata{}, fmt.Errorf("pack entry %s references missing dictionary base %s", current.Key, current.DictKey)
		}
		visited[next.Key] = true
		chain = append(chain, next)
		current = next
	}

	// Decode base-first so each entry's dictionary is available when needed.
	var (
		dict      []byte
		data      []byte
		totalSize uint64
	)
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		totalSize += uint64(len(e.Data))

		var err error
		if e.DictKey == "" {
			data, err = decompress(e.Data, e.Codec)
		} else if e.Codec == CodecZstd {
			data, err = pipeline.DecompressZstdDict(e.Data, dict)
		} else {
			err = fmt.Errorf("codec %s does not support dictionary compression", e.Codec)
		}
		if err != nil {
			return nil, SizeMetadata{}, fmt.Errorf("failed to decode pack entry %s: %w", e.Key, err)
		}
		if uint64(len(data)) != e.RawSize {
			return nil, SizeMetadata{}, fmt.Errorf("pack entry %s size mismatch: recorded %d bytes, decoded %d", e.Key, e.RawSize, len(data))
		}
		dict = data
	}

	meta := SizeMetadata{
		UniqueCompressedSize: uint64(len(entry.Data)),
		TotalSize:            totalSize,
		DictKey:              entry.DictKey,
		ChainLength:          len(chain),
	}
	return data, meta, nil
}

func compress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case CodecZstd:
		return pipeline.CompressZstd(data)
	case CodecLzma:
		return pipeline.CompressLzma(data)
	default:
		return nil, fmt.Errorf("unknown codec %s", codec)
	}
}

func decompress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		return pipeline.DecompressZstd(data)
	case CodecLzma:
		return pipeline.DecompressLzma(data)
	default:
		return nil, fmt.Errorf("unknown codec %s", codec)
	}
}
