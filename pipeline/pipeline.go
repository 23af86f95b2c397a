// Package pipeline provides the byte-level building blocks of the store
// path: splitting oversized content into chunks and the compression codecs
// used by the envelope layer.
package pipeline

import (
	"bytes"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// Split partitions data into ordered chunks no larger than chunkSize. It is
// a pure function of its input: the same bytes always produce the same chunk
// boundaries, so chunk content ids dedup against prior stores. Empty input
// produces zero chunks.
func Split(data []byte, chunkSize int64) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	splitter := chunker.NewSizeSplitter(bytes.NewReader(data), chunkSize)

	var chunks [][]byte
	for {
		chunk, err := splitter.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to split content: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// CompressZstd compresses data using the Zstandard algorithm.
func CompressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// DecompressZstd decompresses Zstandard-compressed data.
func DecompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// CompressZstdDict compresses data against a raw content dictionary, so
// entries in a pack can share redundancy with their dictionary base.
func CompressZstdDict(data, dict []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDictRaw(0, dict))
	if err != nil {
		return nil, fmt.Errorf("failed to create dictionary encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// DecompressZstdDict decompresses data that was compressed against a raw
// content dictionary.
func DecompressZstdDict(data, dict []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(0, dict))
	if err != nil {
		return nil, fmt.Errorf("failed to create dictionary decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// CompressLzma compresses data using LZMA.
func CompressLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressLzma decompresses LZMA-compressed data.
func DecompressLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
