package cogrange

import (
	"context"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"
)

// ParseQuadkey converts a base-4 quadkey string into the tile it addresses.
// The zoom is the key's length.
func ParseQuadkey(qk string) (maptile.Tile, error) {
	if qk == "" || len(qk) > 32 {
		return maptile.Tile{}, fmt.Errorf("invalid quadkey %q", qk)
	}
	v, err := strconv.ParseUint(qk, 4, 64)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("invalid quadkey %q: %w", qk, err)
	}
	return maptile.FromQuadkey(v, maptile.Zoom(len(qk))), nil
}

// parentTile decodes the quadkey embedded in the resource identifier: the
// second-to-last path segment names the top-level pyramid tile this COG
// covers end-to-end.
func parentTile(resource string) (maptile.Tile, error) {
	segs := strings.Split(strings.Trim(resource, "/"), "/")
	if len(segs) < 2 {
		return maptile.Tile{}, fmt.Errorf("resource %q carries no quadkey segment", resource)
	}
	return ParseQuadkey(segs[len(segs)-2])
}

// grid is the tile layout of one overview, derived from its dimension tags.
type grid struct {
	imageWidth, imageHeight uint64
	tileWidth, tileHeight   uint64
	across, down            int
}

func (c *Cog) levelGrid(ctx context.Context, level int) (grid, error) {
	var g grid
	var err error
	if g.imageWidth, err = c.tagUint(ctx, level, ImageWidth); err != nil {
		return g, err
	}
	if g.imageHeight, err = c.tagUint(ctx, level, ImageHeight); err != nil {
		return g, err
	}
	if g.tileWidth, err = c.tagUint(ctx, level, TileWidth); err != nil {
		return g, err
	}
	if g.tileHeight, err = c.tagUint(ctx, level, TileHeight); err != nil {
		return g, err
	}
	if g.tileWidth == 0 || g.tileHeight == 0 {
		return g, fmt.Errorf("overview %d: zero tile dimensions: %w", level, ErrOverviewMismatch)
	}
	g.across = int((g.imageWidth + g.tileWidth - 1) / g.tileWidth)
	g.down = int((g.imageHeight + g.tileHeight - 1) / g.tileHeight)
	return g, nil
}

// resolveLevel maps a requested zoom to an overview index and the tile at
// that zoom whose upper-left corner coincides with the parent tile's. The
// overview's declared tile grid must match the grid its pyramid position
// implies, otherwise tile indexes would silently misaddress.
func (c *Cog) resolveLevel(ctx context.Context, zoom maptile.Zoom) (int, maptile.Tile, grid, error) {
	parent, err := parentTile(c.resource)
	if err != nil {
		return 0, maptile.Tile{}, grid{}, err
	}

	level := int(parent.Z) + len(c.ifds) - int(zoom) - 1
	if level < 0 || level >= len(c.ifds) {
		return 0, maptile.Tile{}, grid{}, fmt.Errorf(
			"zoom %d outside [%d, %d]: %w",
			zoom, parent.Z, int(parent.Z)+len(c.ifds)-1, ErrZoomOutOfRange)
	}

	dz := uint32(zoom) - uint32(parent.Z)
	origin := maptile.New(parent.X<<dz, parent.Y<<dz, zoom)

	g, err := c.levelGrid(ctx, level)
	if err != nil {
		return 0, maptile.Tile{}, grid{}, err
	}
	want := 1 << dz
	if g.across != want || g.down != want {
		return 0, maptile.Tile{}, grid{}, fmt.Errorf(
			"overview %d has a %dx%d tile grid, pyramid implies %dx%d: %w",
			level, g.across, g.down, want, want, ErrOverviewMismatch)
	}
	return level, origin, g, nil
}

// RequestTile fetches the still-compressed payload of one pyramid tile.
// A sparse tile (byte count 0) yields an empty payload without any fetch.
func (c *Cog) RequestTile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	level, origin, g, err := c.resolveLevel(ctx, t.Z)
	if err != nil {
		return nil, err
	}

	xoff := int64(t.X) - int64(origin.X)
	yoff := int64(t.Y) - int64(origin.Y)
	if xoff < 0 || yoff < 0 || xoff >= int64(g.across) || yoff >= int64(g.down) {
		return nil, fmt.Errorf("tile %d/%d/%d outside overview %d grid: %w",
			t.Z, t.X, t.Y, level, ErrTileOutOfBounds)
	}

	offsets, counts, err := c.tileIndex(ctx, level)
	if err != nil {
		return nil, err
	}
	idx := yoff*int64(g.across) + xoff
	if idx >= int64(len(offsets)) || idx >= int64(len(counts)) {
		return nil, fmt.Errorf("overview %d: tile index %d beyond offset arrays: %w",
			level, idx, ErrOverviewMismatch)
	}

	if counts[idx] == 0 {
		return []byte{}, nil
	}
	payload, err := c.fetch(ctx, offsets[idx], offsets[idx]+counts[idx])
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) < counts[idx] {
		return nil, fmt.Errorf("tile %d/%d/%d: short read %d of %d bytes: %w",
			t.Z, t.X, t.Y, len(payload), counts[idx], ErrRangeUnavailable)
	}
	return payload, nil
}

// RequestMetatile fetches the size x size block of descendants of t that sit
// log2(size) zoom levels below it, as payloads indexed [row][col]. Rows are
// fetched concurrently and reassembled by index, so the result is always
// ordered by ascending row then ascending column regardless of completion
// order; the first failure aborts the whole request and cancels the in-flight
// siblings.
func (c *Cog) RequestMetatile(ctx context.Context, t maptile.Tile, size int) ([][][]byte, error) {
	if size < 1 || size&(size-1) != 0 {
		return nil, fmt.Errorf("size %d: %w", size, ErrInvalidMetatileSize)
	}
	dz := uint32(bits.TrailingZeros(uint(size)))
	zoom := t.Z + maptile.Zoom(dz)

	level, origin, g, err := c.resolveLevel(ctx, zoom)
	if err != nil {
		return nil, err
	}

	xmin := int64(t.X)<<dz - int64(origin.X)
	ymin := int64(t.Y)<<dz - int64(origin.Y)
	xmax := xmin + int64(size) - 1
	ymax := ymin + int64(size) - 1
	if xmin < 0 || ymin < 0 || xmax >= int64(g.across) || ymax >= int64(g.down) {
		return nil, fmt.Errorf("metatile %d/%d/%d size %d outside overview %d grid: %w",
			t.Z, t.X, t.Y, size, level, ErrTileOutOfBounds)
	}

	rows := make([][][]byte, size)
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		i := i
		eg.Go(func() error {
			row, err := c.readRow(ctx, level, g, ymin+int64(i), xmin, xmax)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// tileIndex returns the materialized TileOffsets and TileByteCounts arrays
// of an overview.
func (c *Cog) tileIndex(ctx context.Context, level int) ([]uint64, []uint64, error) {
	offsets, err := c.tagUints(ctx, level, TileOffsets)
	if err != nil {
		return nil, nil, err
	}
	counts, err := c.tagUints(ctx, level, TileByteCounts)
	if err != nil {
		return nil, nil, err
	}
	return offsets, counts, nil
}

// span is one coalesced range request covering the row columns in cols.
type span struct {
	start, end uint64
	cols       []int64
}

// readRow fetches the tiles of columns xmin..xmax inclusive on one tile row.
// COG tile layout is not guaranteed contiguous in storage order, so tiles are
// grouped into spans: adjacent tiles whose byte ranges follow each other
// within CoalesceGap bytes share one request and are sliced locally. Spans
// are fetched concurrently.
func (c *Cog) readRow(ctx context.Context, level int, g grid, y, xmin, xmax int64) ([][]byte, error) {
	offsets, counts, err := c.tileIndex(ctx, level)
	if err != nil {
		return nil, err
	}

	n := xmax - xmin + 1
	out := make([][]byte, n)

	var spans []*span
	for i := int64(0); i < n; i++ {
		idx := y*int64(g.across) + xmin + i
		if idx < 0 || idx >= int64(len(offsets)) || idx >= int64(len(counts)) {
			return nil, fmt.Errorf("overview %d: tile index %d beyond offset arrays: %w",
				level, idx, ErrOverviewMismatch)
		}
		count := counts[idx]
		if count == 0 {
			out[i] = []byte{}
			continue
		}
		offset := offsets[idx]

		if len(spans) > 0 {
			if last := spans[len(spans)-1]; offset >= last.end && offset-last.end <= c.cfg.CoalesceGap {
				last.end = offset + count
				last.cols = append(last.cols, i)
				continue
			}
		}
		spans = append(spans, &span{start: offset, end: offset + count, cols: []int64{i}})
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range spans {
		s := s
		eg.Go(func() error {
			buf, err := c.fetch(ctx, s.start, s.end)
			if err != nil {
				return err
			}
			if uint64(len(buf)) < s.end-s.start {
				return fmt.Errorf("row %d: short read %d of %d bytes: %w",
					y, len(buf), s.end-s.start, ErrRangeUnavailable)
			}
			if len(s.cols) > 1 {
				coalescedRuns.Inc()
				c.cfg.logger.Debug("coalesced row fetch",
					"resource", c.resource, "row", y,
					"tiles", len(s.cols), "bytes", s.end-s.start)
			}
			for _, i := range s.cols {
				idx := y*int64(g.across) + xmin + i
				rel := offsets[idx] - s.start
				out[i] = buf[rel : rel+counts[idx]]
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
