package cogrange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"
)

const tagCacheTTL = time.Hour

// Cog is an opened Cloud Optimized GeoTIFF: the resource identifier, the
// decoded header, and one IFD per overview level, finest resolution first.
// Header and IFDs are parsed once at Open and immutable afterwards; the
// RangeSource is held by reference and may be shared across many Cogs.
type Cog struct {
	resource string
	src      RangeSource
	header   Header
	ifds     []*IFD
	cfg      config

	// tagCache holds materialized tag values keyed by (level, tag). The
	// value type is any: []uint64 for integer tags, []byte for raw ones.
	tagCache *ccache.Cache[any]

	// inflight ensures a tag value stored outside its IFD is fetched and
	// decoded by a single goroutine even under concurrent tile requests.
	inflight singleflight.Group
}

// Open fetches and decodes the header and the whole IFD chain of a COG.
// It is all-or-nothing: no partial Cog is ever returned.
func Open(ctx context.Context, resource string, src RangeSource, opts ...Option) (*Cog, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cog{
		resource: resource,
		src:      src,
		cfg:      cfg,
		tagCache: ccache.New(ccache.Configure[any]().
			MaxSize(cfg.TagCacheSize).
			ItemsToPrune(cfg.TagCachePrune)),
	}

	boot, err := c.fetch(ctx, 0, cfg.IFDPrefetchSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resource, err)
	}

	h, err := decodeHeader(boot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", resource, ErrNotATIFF, err)
	}
	c.header = h

	ifds, err := c.walkIFDChain(ctx, boot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resource, err)
	}
	c.ifds = ifds

	cfg.logger.Debug("opened cog",
		"resource", resource,
		"bigtiff", h.BigTIFF,
		"overviews", len(ifds))
	return c, nil
}

// Resource returns the identifier the Cog was opened with.
func (c *Cog) Resource() string { return c.resource }

// Header returns the decoded file header.
func (c *Cog) Header() Header { return c.header }

// Levels returns the number of overview levels (IFDs) in the file.
func (c *Cog) Levels() int { return len(c.ifds) }

// fetch routes every range request of the core through one place so request
// and byte counters stay accurate.
func (c *Cog) fetch(ctx context.Context, start, end uint64) ([]byte, error) {
	b, err := c.src.Fetch(ctx, c.resource, start, end)
	if err != nil {
		return nil, err
	}
	rangeRequests.Inc()
	rangeBytes.Add(float64(len(b)))
	return b, nil
}

// walkIFDChain follows next-IFD offsets from the header until it reaches 0.
// boot is the chunk already fetched for the header, reused when it covers an
// IFD. A repeating offset or a chain deeper than MaxIFDCount fails instead of
// looping forever.
func (c *Cog) walkIFDChain(ctx context.Context, boot []byte) ([]*IFD, error) {
	var ifds []*IFD
	seen := make(map[uint64]struct{})

	offset := c.header.FirstIFDOffset
	for offset != 0 {
		if _, ok := seen[offset]; ok {
			return nil, fmt.Errorf("%w: ifd offset %d repeats", ErrCorruptIFDChain, offset)
		}
		seen[offset] = struct{}{}
		if len(ifds) >= c.cfg.MaxIFDCount {
			return nil, fmt.Errorf("%w: more than %d IFDs", ErrCorruptIFDChain, c.cfg.MaxIFDCount)
		}

		ifd, err := c.decodeIFDAt(ctx, offset, boot)
		if err != nil {
			return nil, err
		}
		ifds = append(ifds, ifd)
		offset = ifd.NextOffset
	}
	return ifds, nil
}

// decodeIFDAt decodes the IFD at an absolute file offset, fetching
// progressively larger chunks when one turns out to be bigger than the
// prefetch size.
func (c *Cog) decodeIFDAt(ctx context.Context, offset uint64, boot []byte) (*IFD, error) {
	if offset < uint64(len(boot)) {
		ifd, _, err := decodeIFD(boot[offset:], c.header)
		if err == nil {
			return ifd, nil
		}
		if !errors.Is(err, ErrTruncatedIFD) {
			return nil, err
		}
	}

	size := c.cfg.IFDPrefetchSize
	for {
		b, err := c.fetch(ctx, offset, offset+size)
		if err != nil {
			return nil, err
		}
		ifd, _, err := decodeIFD(b, c.header)
		if err == nil {
			return ifd, nil
		}
		// A short chunk means the resource ended; growing won't help.
		if !errors.Is(err, ErrTruncatedIFD) || uint64(len(b)) < size {
			return nil, err
		}
		if size *= 2; size > c.cfg.MaxIFDChunk {
			return nil, err
		}
		c.cfg.logger.Debug("ifd exceeds prefetch, refetching",
			"resource", c.resource, "offset", offset, "size", size)
	}
}

// tagBytes returns the raw value bytes of an entry, fetching them when the
// value lives outside the IFD.
func (c *Cog) tagBytes(ctx context.Context, e TagEntry) ([]byte, error) {
	if e.inline() {
		return e.Value, nil
	}
	return c.fetch(ctx, e.Offset, e.Offset+e.size())
}

// tagUints materializes a tag of one overview as unsigned integers. Results
// are cached; concurrent requests for the same tag share a single fetch.
func (c *Cog) tagUints(ctx context.Context, level int, tag Tag) ([]uint64, error) {
	key := fmt.Sprintf("u/%d/%d", level, tag)
	if item := c.tagCache.Get(key); item != nil && !item.Expired() {
		tagCacheHits.Inc()
		return item.Value().([]uint64), nil
	}
	tagCacheMisses.Inc()

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		entry, ok := c.ifds[level].Tags[tag]
		if !ok {
			return nil, fmt.Errorf("overview %d: %w: %s", level, ErrMissingTag, tag)
		}
		raw, err := c.tagBytes(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("overview %d tag %s: %w", level, tag, err)
		}
		vals, err := decodeUints(raw, entry, c.header.ByteOrder)
		if err != nil {
			return nil, err
		}
		c.tagCache.Set(key, vals, tagCacheTTL)
		return vals, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]uint64), nil
}

// tagUint is tagUints for scalar tags.
func (c *Cog) tagUint(ctx context.Context, level int, tag Tag) (uint64, error) {
	vals, err := c.tagUints(ctx, level, tag)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("overview %d: %w: %s is empty", level, ErrMissingTag, tag)
	}
	return vals[0], nil
}

// JPEGTables returns the shared JPEG quantization/Huffman tables of an
// overview, or nil when the file has none. Callers decoding JPEG tiles
// prepend these to each tile payload.
func (c *Cog) JPEGTables(ctx context.Context, level int) ([]byte, error) {
	if level < 0 || level >= len(c.ifds) {
		return nil, fmt.Errorf("overview %d of %d: %w", level, len(c.ifds), ErrZoomOutOfRange)
	}
	entry, ok := c.ifds[level].Tags[JPEGTables]
	if !ok {
		return nil, nil
	}

	key := fmt.Sprintf("b/%d/%d", level, JPEGTables)
	if item := c.tagCache.Get(key); item != nil && !item.Expired() {
		tagCacheHits.Inc()
		return item.Value().([]byte), nil
	}
	tagCacheMisses.Inc()

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		raw, err := c.tagBytes(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("overview %d tag %s: %w", level, JPEGTables, err)
		}
		c.tagCache.Set(key, raw, tagCacheTTL)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
