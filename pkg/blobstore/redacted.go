package blobstore

import (
	"context"
	"fmt"
)

// RedactionChecker answers whether a logical content key is currently
// redacted, and by which task.
type RedactionChecker interface {
	IsRedacted(ctx context.Context, contentKey string) (redacted bool, task string, err error)
}

// RedactedBlobstore consults a redaction registry before every read.
// Redaction is read-path only: Put does not check the registry, since
// content is immutable and redaction targets specific historical bytes.
// This is a reviewable security property, not an accident; see DESIGN.md.
type RedactedBlobstore struct {
	registry RedactionChecker
	inner    Blobstore
}

func NewRedactedBlobstore(registry RedactionChecker, inner Blobstore) *RedactedBlobstore {
	return &RedactedBlobstore{registry: registry, inner: inner}
}

func (r *RedactedBlobstore) deny(ctx context.Context, key string) error {
	redacted, task, err := r.registry.IsRedacted(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check redaction for %s: %w", key, err)
	}
	if redacted {
		return &RedactedError{Key: key, Task: task}
	}
	return nil
}

func (r *RedactedBlobstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := r.deny(ctx, key); err != nil {
		return nil, false, err
	}
	return r.inner.Get(ctx, key)
}

func (r *RedactedBlobstore) Put(ctx context.Context, key string, value []byte) error {
	return r.inner.Put(ctx, key, value)
}

func (r *RedactedBlobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	return r.inner.IsPresent(ctx, key)
}

func (r *RedactedBlobstore) Copy(ctx context.Context, oldKey, newKey string) error {
	// Copy reads the old value, so it is gated like Get.
	if err := r.deny(ctx, oldKey); err != nil {
		return err
	}
	return r.inner.Copy(ctx, oldKey, newKey)
}
