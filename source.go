package cogrange

import "context"

// RangeSource is the transport capability the reader depends on: fetch the
// bytes [start, end) of a named resource. end is exclusive.
//
// A fetch may return fewer bytes than requested when the resource ends inside
// the range; it fails with an error wrapping ErrRangeUnavailable when the
// resource does not exist, start is past the end of the resource, or the
// transport fails. Implementations must be safe for concurrent use: a single
// source (and whatever client or connection pool it holds) is typically
// shared by many Cog instances.
type RangeSource interface {
	Fetch(ctx context.Context, resource string, start, end uint64) ([]byte, error)
}
