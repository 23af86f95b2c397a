package blobvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/havenfs/blobvault/pkg/blobstore"
	"github.com/havenfs/blobvault/pkg/identity"
)

// Fetcher yields the byte segments of one logical content in strict
// left-to-right order. It walks the chunk tree depth-first with an explicit
// work stack, so arbitrarily deep trees never grow the call stack. A fetcher
// is not restartable; create a new one to traverse again.
type Fetcher struct {
	vault *Vault
	stack []fetchFrame
}

type fetchFrame struct {
	depth int
	id    identity.ContentId
}

// NewFetcher resolves key to its canonical content id and positions a
// fetcher at the root of its chunk tree. Resolution of an aliased key costs
// one storage read; the canonical content itself is not touched until Next.
func (v *Vault) NewFetcher(ctx context.Context, key identity.FetchKey) (*Fetcher, error) {
	atomic.AddUint64(&v.readCounter, 1)

	id, err := identity.Resolve(ctx, v.blobs, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fetch key %s: %w", key, err)
	}

	return &Fetcher{
		vault: v,
		stack: []fetchFrame{{depth: 0, id: id}},
	}, nil
}

// Next returns the next byte segment, or io.EOF once the traversal is
// complete. A chunk missing from storage fails with a NotFoundError carrying
// the depth of the failing node; a chunk that fails to decode fails with the
// underlying error wrapped in the chunk's identity. Both are terminal.
func (f *Fetcher) Next(ctx context.Context) ([]byte, error) {
	for len(f.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Pop the most recently pushed frame; children are pushed in
		// reverse so the left-most child is processed next.
		frame := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]

		key := frame.id.BlobKey()
		raw, found, err := f.vault.blobs.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get chunk %s at depth %d: %w", key, frame.depth, err)
		}
		if !found {
			return nil, &blobstore.NotFoundError{Key: key, Depth: frame.depth}
		}

		record, err := unmarshalRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode chunk %s at depth %d: %w", key, frame.depth, err)
		}

		if record.Bytes != nil {
			return record.Bytes.Data, nil
		}

		children, err := record.Chunked.contentIds()
		if err != nil {
			return nil, fmt.Errorf("corrupt chunk index %s at depth %d: %w", key, frame.depth, err)
		}
		for i := len(children) - 1; i >= 0; i-- {
			f.stack = append(f.stack, fetchFrame{depth: frame.depth + 1, id: children[i]})
		}
	}

	return nil, io.EOF
}

// FetchContent reassembles the full logical bytes addressed by key.
func (v *Vault) FetchContent(ctx context.Context, key identity.FetchKey) ([]byte, error) {
	fetcher, err := v.NewFetcher(ctx, key)
	if err != nil {
		return nil, err
	}

	var content []byte
	for {
		segment, err := fetcher.Next(ctx)
		if err == io.EOF {
			return content, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch content for %s: %w", key, err)
		}
		content = append(content, segment...)
	}
}

// IsPresent reports whether the content addressed by key is present. For an
// aliased key the answer reflects the canonical blob: an alias that resolves
// to missing content reports absent.
func (v *Vault) IsPresent(ctx context.Context, key identity.FetchKey) (blobstore.Presence, error) {
	id, err := identity.Resolve(ctx, v.blobs, key)
	if err != nil {
		var notFound *blobstore.NotFoundError
		if errors.As(err, &notFound) {
			return blobstore.Absent, nil
		}
		return blobstore.Absent, err
	}
	return v.blobs.IsPresent(ctx, id.BlobKey())
}

// CopyContent duplicates the root record of content under a raw target key
// without re-uploading bytes, delegating to the backend's copy support.
func (v *Vault) CopyContent(ctx context.Context, id identity.ContentId, targetKey string) error {
	return v.blobs.Copy(ctx, id.BlobKey(), targetKey)
}
