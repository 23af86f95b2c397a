package blobstore

import (
	"context"
	"fmt"
)

// RepoPrefix derives the physical key prefix for a repository id. Distinct
// ids always produce distinct prefixes, so multiple repositories can share
// one physical store without key collisions.
func RepoPrefix(repoID int32) string {
	return fmt.Sprintf("repo%04d.", repoID)
}

// PrefixBlobstore deterministically prefixes every key before delegating to
// the inner store. Consumers only ever construct prefixed keys; nothing
// parses them back.
type PrefixBlobstore struct {
	prefix string
	inner  Blobstore
}

func NewPrefixBlobstore(prefix string, inner Blobstore) *PrefixBlobstore {
	return &PrefixBlobstore{prefix: prefix, inner: inner}
}

func (p *PrefixBlobstore) physicalKey(key string) string {
	return p.prefix + key
}

func (p *PrefixBlobstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.physicalKey(key))
}

func (p *PrefixBlobstore) Put(ctx context.Context, key string, value []byte) error {
	return p.inner.Put(ctx, p.physicalKey(key), value)
}

func (p *PrefixBlobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	return p.inner.IsPresent(ctx, p.physicalKey(key))
}

func (p *PrefixBlobstore) Copy(ctx context.Context, oldKey, newKey string) error {
	return p.inner.Copy(ctx, p.physicalKey(oldKey), p.physicalKey(newKey))
}
