package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // local directory driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/memblob"  // in-memory driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
	"gocloud.dev/gcerrors"
)

// BucketStore keeps each value as a zstd-compressed object at <kind>/<escaped key>.
// Keys are listed in lexical order.
type BucketStore struct {
	bucket *blob.Bucket
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// NewBucketStore opens any gocloud.dev bucket URL.
func NewBucketStore(ctx context.Context, bucketURL string) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		bucket.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &BucketStore{bucket: bucket, enc: enc, dec: dec}, nil
}

func objectKey(kind Kind, key string) string {
	return string(kind) + "/" + url.PathEscape(key)
}

func (s *BucketStore) Get(ctx context.Context, kind Kind, key string) ([]byte, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	path := objectKey(kind, key)

	compressed, err := s.bucket.ReadAll(ctx, path)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", kind, key, ErrBlobMissing)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(compressed) == 0 {
		return []byte{}, nil
	}
	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return data, nil
}

func (s *BucketStore) Set(ctx context.Context, kind Kind, key string, value []byte) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("empty key for %s store", kind)
	}
	path := objectKey(kind, key)

	opts := &blob.WriterOptions{ContentType: "application/zstd"}
	var payload []byte
	if len(value) > 0 {
		payload = s.enc.EncodeAll(value, nil)
	}
	if err := s.bucket.WriteAll(ctx, path, payload, opts); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *BucketStore) Keys(ctx context.Context, kind Kind) ([]string, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	prefix := string(kind) + "/"
	keys := make([]string, 0)
	it := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := it.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		key, err := url.PathUnescape(strings.TrimPrefix(obj.Key, prefix))
		if err != nil {
			return nil, fmt.Errorf("decode object key %s: %w", obj.Key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *BucketStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.bucket.Close()
}
