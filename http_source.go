package cogrange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSource serves ranges with HTTP Range GET requests against a base URL;
// the resource identifier is appended as the request path. The client is
// shared: pass one explicitly to reuse its connection pool across sources,
// or nil for http.DefaultClient.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource creates a range source for resources under baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: client,
	}
}

var _ RangeSource = (*HTTPSource)(nil)

// Fetch implements RangeSource. The server must answer 206 Partial Content;
// a range overshooting the end of the resource comes back clamped, which is
// how HTTP servers treat a Range whose last byte is past the end.
func (s *HTTPSource) Fetch(ctx context.Context, resource string, start, end uint64) ([]byte, error) {
	if end <= start {
		if end == start {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: invalid range [%d, %d)", ErrRangeUnavailable, start, end)
	}

	url := s.base + "/" + strings.TrimPrefix(resource, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: %s: expected 206 Partial Content, got %s",
			ErrRangeUnavailable, resource, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(end-start)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRangeUnavailable, resource, err)
	}
	return body, nil
}
