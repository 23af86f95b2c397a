// Package blobvault is a content-addressed blob store with redaction,
// chunked large-content storage, packed compression, and envelope framing.
// Content is addressed by its blake3 digest and reachable through SHA1,
// SHA256 and Git-SHA1 aliases; reads pass through a redaction gate and a
// repository key prefix before hitting the physical badger store.
package blobvault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"

	"github.com/havenfs/blobvault/pkg/blobstore"
	"github.com/havenfs/blobvault/pkg/envelope"
	"github.com/havenfs/blobvault/pkg/redaction"
)

var log *logrus.Logger

const (
	defaultChunkSize          = 1 << 20 // 1 MiB
	defaultRedactionCacheSize = 4096
	defaultRedactionCacheTTL  = time.Minute
)

// Config carries the vault's startup parameters.
type Config struct {
	// Path is the directory holding the badger store.
	Path string
	// RedactionDBPath is the redaction registry database file. Defaults to
	// redaction.db inside Path.
	RedactionDBPath string
	// RepoID namespaces all keys so repositories can share a physical store.
	RepoID int32
	// ChunkSize is the threshold above which content is split into a chunk
	// tree, and the maximum size of each chunk. Defaults to 1 MiB.
	ChunkSize uint64
	// Codec compresses envelope payloads. Defaults to zstd.
	Codec envelope.Codec
	// MinimumFreeSpace in GiB that must be available under Path at startup.
	MinimumFreeSpace uint64
	// RedactionCacheSize and RedactionCacheTTL tune the redaction lookup
	// cache sitting in front of the registry.
	RedactionCacheSize int
	RedactionCacheTTL  time.Duration

	Logger *logrus.Logger
}

func (c *Config) check() error {
	if c.Path == "" {
		return fmt.Errorf("config must include a storage path")
	}
	if c.RepoID < 0 {
		return fmt.Errorf("repo id must be non-negative, got %d", c.RepoID)
	}
	if c.RedactionDBPath == "" {
		c.RedactionDBPath = filepath.Join(c.Path, "redaction.db")
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Codec == envelope.CodecNone {
		// Uncompressed envelopes are a wire-format capability, not a vault
		// configuration; the vault always compresses.
		c.Codec = envelope.CodecZstd
	}
	if c.RedactionCacheSize == 0 {
		c.RedactionCacheSize = defaultRedactionCacheSize
	}
	if c.RedactionCacheTTL == 0 {
		c.RedactionCacheTTL = defaultRedactionCacheTTL
	}
	return nil
}

// Vault is the high-level content store. All reads and writes flow through
// the layered blobstore: redaction gate, then repository prefix, then the
// physical badger store, each policy applied exactly once per call.
type Vault struct {
	badgerDB     *badger.DB
	blobs        blobstore.Blobstore
	redactions   *redaction.CachedStore
	config       Config
	readCounter  uint64
	writeCounter uint64
}

// Init opens the vault at the configured path.
func Init(config *Config) (*Vault, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if err := config.check(); err != nil {
		return nil, fmt.Errorf("error checking config for vault: %w", err)
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage path %s: %w", config.Path, err)
	}

	if err := verifyDiskSpace(config.Path, config.MinimumFreeSpace); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", config.Path, err)
	}

	registry, err := redaction.OpenStore(config.RedactionDBPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open redaction registry: %w", err)
	}
	redactions := redaction.NewCachedStore(registry, config.RedactionCacheSize, config.RedactionCacheTTL)

	blobs := blobstore.NewRedactedBlobstore(
		redactions,
		blobstore.NewPrefixBlobstore(
			blobstore.RepoPrefix(config.RepoID),
			blobstore.NewBadgerBlobstore(db),
		),
	)

	return &Vault{
		badgerDB:   db,
		blobs:      blobs,
		redactions: redactions,
		config:     *config,
	}, nil
}

// Close releases the underlying stores.
func (v *Vault) Close() error {
	if err := v.redactions.Close(); err != nil {
		v.badgerDB.Close()
		return fmt.Errorf("failed to close redaction registry: %w", err)
	}
	if err := v.badgerDB.Close(); err != nil {
		return fmt.Errorf("failed to close badger store: %w", err)
	}
	return nil
}

// Blobstore exposes the layered store for callers that operate on raw keys,
// such as administrative tooling.
func (v *Vault) Blobstore() blobstore.Blobstore {
	return v.blobs
}

// Redactions exposes the censored-content registry.
func (v *Vault) Redactions() *redaction.CachedStore {
	return v.redactions
}

// verifyDiskSpace checks that the volume holding path has at least min GiB
// free before the store opens.
func verifyDiskSpace(path string, min uint64) error {
	if min == 0 {
		return nil
	}

	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("failed to read disk usage for %s: %w", path, err)
	}

	free := usage.Free / (1 << 30)
	log.Debugf("Disk usage for %s: %d GiB free of %d GiB", path, free, usage.Total/(1<<30))
	if free < min {
		return fmt.Errorf("insufficient free space at %s: %d GiB free, %d GiB required", path, free, min)
	}
	return nil
}
