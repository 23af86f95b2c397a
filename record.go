package blobvault

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/havenfs/blobvault/pkg/envelope"
	"github.com/havenfs/blobvault/pkg/identity"
)

// contentRecord is the decoded payload of a content envelope: either a
// terminal run of bytes or an index over child content ids. Concatenating a
// depth-first, left-to-right expansion of all Bytes leaves under a Chunked
// root reproduces the original byte stream exactly.
type contentRecord struct {
	Bytes   *bytesRecord   `cbor:"1,keyasint,omitempty"`
	Chunked *chunkedRecord `cbor:"2,keyasint,omitempty"`
}

type bytesRecord struct {
	Data []byte `cbor:"1,keyasint"`
}

type chunkedRecord struct {
	TotalSize uint64   `cbor:"1,keyasint"`
	Chunks    [][]byte `cbor:"2,keyasint"`
}

func newBytesRecord(data []byte) contentRecord {
	return contentRecord{Bytes: &bytesRecord{Data: data}}
}

func newChunkedRecord(totalSize uint64, chunks []identity.ContentId) contentRecord {
	raw := make([][]byte, len(chunks))
	for i, id := range chunks {
		raw[i] = append([]byte(nil), id[:]...)
	}
	return contentRecord{Chunked: &chunkedRecord{TotalSize: totalSize, Chunks: raw}}
}

func (r chunkedRecord) contentIds() ([]identity.ContentId, error) {
	ids := make([]identity.ContentId, len(r.Chunks))
	for i, raw := range r.Chunks {
		if len(raw) != identity.ContentIdLength {
			return nil, fmt.Errorf("chunk index entry %d has %d bytes, expected %d", i, len(raw), identity.ContentIdLength)
		}
		copy(ids[i][:], raw)
	}
	return ids, nil
}

// marshalRecord wraps a content record in a Single envelope compressed with
// the given codec and returns the framed blob value.
func marshalRecord(record contentRecord, codec envelope.Codec) ([]byte, error) {
	body, err := cbor.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content record: %w", err)
	}

	single, err := envelope.EncodeSingle(body, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content record: %w", err)
	}

	return envelope.Envelope{Single: single}.Encode()
}

// unmarshalRecord decodes a framed blob value back into a content record.
func unmarshalRecord(raw []byte) (contentRecord, error) {
	env, err := envelope.Decode(raw)
	if err != nil {
		return contentRecord{}, err
	}
	if env.Single == nil {
		return contentRecord{}, fmt.Errorf("content blob holds a packed envelope, expected single")
	}

	body, _, err := env.Single.Decode()
	if err != nil {
		return contentRecord{}, err
	}

	var record contentRecord
	if err := cbor.Unmarshal(body, &record); err != nil {
		return contentRecord{}, fmt.Errorf("failed to unmarshal content record: %w", err)
	}
	if (record.Bytes == nil) == (record.Chunked == nil) {
		return contentRecord{}, fmt.Errorf("corrupt content record: expected exactly one of Bytes or Chunked")
	}
	return record, nil
}
