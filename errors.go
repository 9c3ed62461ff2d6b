package cogrange

import "errors"

// Format-level errors are fatal to Open: a COG is never returned partially
// parsed. Request-level errors indicate a bad tile request and should not be
// retried. ErrRangeUnavailable is propagated from the RangeSource; retry
// policy, if any, belongs to the backend.
var (
	// ErrNotATIFF wraps any header decode failure during Open.
	ErrNotATIFF = errors.New("not a tiff")

	// ErrMalformedHeader is returned when the byte-order marker is neither
	// "II" nor "MM", the version is neither 42 nor 43, or the first IFD
	// offset is invalid.
	ErrMalformedHeader = errors.New("malformed tiff header")

	// ErrUnsupportedTagType is returned for a field type id outside the
	// supported set, or when a tag's type cannot be interpreted as requested.
	ErrUnsupportedTagType = errors.New("unsupported tag type")

	// ErrTruncatedIFD is returned when a buffer ends before the IFD
	// structure it is supposed to contain.
	ErrTruncatedIFD = errors.New("truncated ifd")

	// ErrCorruptIFDChain is returned when the IFD chain loops, exceeds the
	// configured maximum depth, or an IFD carries duplicate tags.
	ErrCorruptIFDChain = errors.New("corrupt ifd chain")

	// ErrMissingTag is returned when an overview lacks a tag the engine
	// needs (ImageWidth, TileOffsets, ...).
	ErrMissingTag = errors.New("missing tag")

	// ErrZoomOutOfRange is returned when a requested zoom maps outside the
	// file's overview pyramid.
	ErrZoomOutOfRange = errors.New("zoom out of range")

	// ErrTileOutOfBounds is returned when a requested tile falls outside
	// the chosen overview's tile grid.
	ErrTileOutOfBounds = errors.New("tile out of bounds")

	// ErrOverviewMismatch is returned when an overview's declared
	// dimensions disagree with the tile grid implied by its position in the
	// pyramid. Serving such a request would silently misaddress tiles.
	ErrOverviewMismatch = errors.New("overview does not match pyramid")

	// ErrInvalidMetatileSize is returned when a metatile size is not a
	// positive power of two.
	ErrInvalidMetatileSize = errors.New("metatile size must be a power of two")

	// ErrRangeUnavailable is wrapped by RangeSource implementations when a
	// byte range cannot be served: resource missing, start past the end of
	// the resource, or transport failure.
	ErrRangeUnavailable = errors.New("range unavailable")
)
