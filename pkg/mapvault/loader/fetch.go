package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

func isMissing(err error) bool {
	return errors.Is(err, storage.ErrBlobMissing)
}

// read fetches raw bytes and classifies failures. An empty payload counts as
// missing.
func read(ctx context.Context, store storage.ContentStore, kind storage.Kind, id string) ([]byte, error) {
	data, err := store.Get(ctx, kind, id)
	switch {
	case isMissing(err):
		return nil, fmt.Errorf("%s %s: %w", kind, id, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %s %s: %w", ErrStoreRead, kind, id, err)
	case len(data) == 0:
		return nil, fmt.Errorf("%s %s: empty payload: %w", kind, id, storage.ErrBlobMissing)
	}
	return data, nil
}

// FetchRecord reads and decodes the metadata of one map.
func FetchRecord(store storage.ContentStore) FetchFunc[*models.MapRecord] {
	return func(ctx context.Context, id string) (*models.MapRecord, error) {
		data, err := read(ctx, store, storage.KindMetadata, id)
		if err != nil {
			return nil, err
		}
		rec, err := models.DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return rec, nil
	}
}

// FetchImage reads and decodes the cover of one map.
func FetchImage(store storage.ContentStore) FetchFunc[*ImageHandle] {
	return func(ctx context.Context, id string) (*ImageHandle, error) {
		data, err := read(ctx, store, storage.KindImage, id)
		if err != nil {
			return nil, err
		}
		return NewImageHandle(id, data)
	}
}
