// Package blobstore defines the key-value blob storage contract consumed by
// all higher layers, plus the decorator stores (repository prefixing,
// redaction gating) that wrap a physical backend.
package blobstore

import "context"

// Presence is the tri-state result of an existence check. Some backends
// (multiplexed or eventually-consistent ones) cannot always give a confident
// negative, so "probably not present" is distinct from "absent".
type Presence int

const (
	Absent Presence = iota
	Present
	ProbablyNotPresent
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case ProbablyNotPresent:
		return "probably-not-present"
	default:
		return "unknown"
	}
}

// Blobstore is the storage contract for opaque blob values addressed by
// string keys. Get returns found=false for a truly absent key; error
// conditions (redaction denials, I/O failures, corrupt data) are never
// folded into the absent case.
type Blobstore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	IsPresent(ctx context.Context, key string) (Presence, error)

	// Copy duplicates a value under a new key without the caller re-uploading
	// bytes. Backends without native copy support fall back to get+put.
	Copy(ctx context.Context, oldKey, newKey string) error
}
