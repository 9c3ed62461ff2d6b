package cogrange

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
)

// BlobSource serves ranges out of a cloud bucket (S3, GCS, Azure, ...)
// through gocloud.dev/blob. The bucket is constructed once by the caller and
// shared by reference; this type never mutates or closes it.
type BlobSource struct {
	bucket *blob.Bucket
}

// NewBlobSource creates a range source reading from bucket.
func NewBlobSource(bucket *blob.Bucket) *BlobSource {
	return &BlobSource{bucket: bucket}
}

var _ RangeSource = (*BlobSource)(nil)

// Fetch implements RangeSource. Resource identifiers are bucket keys.
func (s *BlobSource) Fetch(ctx context.Context, resource string, start, end uint64) ([]byte, error) {
	if end <= start {
		if end == start {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: invalid range [%d, %d)", ErrRangeUnavailable, start, end)
	}

	// gocloud.dev/blob takes offset and length, not an end byte.
	r, err := s.bucket.NewRangeReader(ctx, resource, int64(start), int64(end-start), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	return body, nil
}
