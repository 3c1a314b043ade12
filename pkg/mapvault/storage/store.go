package storage

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects one of the three logical content stores.
type Kind string

const (
	KindMetadata Kind = "metadata"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
)

// Kinds lists every logical store.
var Kinds = []Kind{KindMetadata, KindImage, KindAudio}

func (k Kind) Valid() bool {
	switch k {
	case KindMetadata, KindImage, KindAudio:
		return true
	}
	return false
}

// ErrBlobMissing means the store has no entry for the key. It is an expected
// state (a map without a cover, an unfinished ingestion) rather than a failure.
var ErrBlobMissing = errors.New("blob missing")

// ContentStore is a durable key-value store holding one value per (kind, key).
// There are no transactions across kinds.
type ContentStore interface {
	// Get returns ErrBlobMissing when nothing is stored under key.
	Get(ctx context.Context, kind Kind, key string) ([]byte, error)
	// Set overwrites any previous value.
	Set(ctx context.Context, kind Kind, key string, value []byte) error
	// Keys returns every key of the given kind in a stable order.
	Keys(ctx context.Context, kind Kind) ([]string, error)
	Close() error
}

const (
	BackendSQLite = "sqlite"
	BackendBlob   = "blob"
)

// Config selects and configures a backend.
type Config struct {
	Backend string // "sqlite" | "blob"

	// SQLite
	DBPath string

	// Blob: any gocloud.dev bucket URL (file:///dir, mem://, s3://bucket, gs://bucket)
	BlobURL string
}

// Open creates a content store based on configuration.
func Open(ctx context.Context, cfg Config) (ContentStore, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		if cfg.DBPath == "" {
			return NewDBClient()
		}
		return NewDBClientWithPath(cfg.DBPath)
	case BackendBlob:
		if cfg.BlobURL == "" {
			return nil, fmt.Errorf("BlobURL required for blob backend")
		}
		return NewBucketStore(ctx, cfg.BlobURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func checkKind(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown store kind %q", kind)
	}
	return nil
}
