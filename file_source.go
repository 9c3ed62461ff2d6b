package cogrange

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSource serves ranges out of files below a root directory, resolving
// resource identifiers as slash-separated relative paths.
type FileSource struct {
	root string
}

// NewFileSource creates a range source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

var _ RangeSource = (*FileSource)(nil)

// Fetch implements RangeSource. The range is clamped at the end of the file;
// a start at or past the end fails.
func (s *FileSource) Fetch(ctx context.Context, resource string, start, end uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("%w: invalid range [%d, %d)", ErrRangeUnavailable, start, end)
	}

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(resource)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	size := uint64(info.Size())
	if start >= size {
		return nil, fmt.Errorf("%w: %s: start %d past end of %d byte file",
			ErrRangeUnavailable, resource, start, size)
	}
	if end > size {
		end = size
	}

	buf := make([]byte, end-start)
	if _, err := f.ReadAt(buf, int64(start)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	return buf, nil
}
