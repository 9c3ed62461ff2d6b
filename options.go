package cogrange

import (
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// config holds the tunables of a Cog. The env tags are only consulted by
// FromEnv; Open starts from defaultConfig and applies options in order.
type config struct {
	// IFDPrefetchSize is the size of the chunks fetched while walking the
	// IFD chain. Each chunk should cover a typical IFD plus its nearby
	// indirect values; the walker refetches larger on overflow.
	IFDPrefetchSize uint64 `env:"COG_IFD_PREFETCH_SIZE" envDefault:"16384"`

	// MaxIFDChunk caps prefetch growth for a single oversized IFD.
	MaxIFDChunk uint64 `env:"COG_MAX_IFD_CHUNK" envDefault:"1048576"`

	// MaxIFDCount bounds the chain walk against malformed files.
	MaxIFDCount int `env:"COG_MAX_IFD_COUNT" envDefault:"64"`

	// CoalesceGap is the largest byte gap between two adjacent tiles of a
	// row that still lets their ranges be fetched as one request. Strictly
	// contiguous ranges are always merged; the gap trades extra fetched
	// bytes against request count.
	CoalesceGap uint64 `env:"COG_COALESCE_GAP" envDefault:"4096"`

	// TagCacheSize and TagCachePrune size the cache of materialized tag
	// values (tile offset and byte count arrays, mostly).
	TagCacheSize  int64  `env:"COG_TAG_CACHE_SIZE" envDefault:"256"`
	TagCachePrune uint32 `env:"COG_TAG_CACHE_PRUNE" envDefault:"16"`

	logger *slog.Logger
}

func defaultConfig() config {
	return config{
		IFDPrefetchSize: 16384,
		MaxIFDChunk:     1 << 20,
		MaxIFDCount:     64,
		CoalesceGap:     4096,
		TagCacheSize:    256,
		TagCachePrune:   16,
		logger:          slog.Default(),
	}
}

// Option configures a Cog at Open time.
type Option func(*config)

// WithPrefetchSize sets the chunk size used while walking the IFD chain.
func WithPrefetchSize(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.IFDPrefetchSize = n
		}
	}
}

// WithMaxIFDCount bounds the number of overviews the chain walk accepts.
func WithMaxIFDCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.MaxIFDCount = n
		}
	}
}

// WithCoalesceGap sets the largest gap between adjacent tile ranges that are
// still fetched as a single request. Zero merges only strictly contiguous
// ranges.
func WithCoalesceGap(n uint64) Option {
	return func(c *config) { c.CoalesceGap = n }
}

// WithTagCache sizes the materialized-tag cache.
func WithTagCache(maxSize int64, itemsToPrune uint32) Option {
	return func(c *config) {
		if maxSize > 0 {
			c.TagCacheSize = maxSize
		}
		if itemsToPrune > 0 {
			c.TagCachePrune = itemsToPrune
		}
	}
}

// WithLogger sets the structured logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// FromEnv returns an Option overlaying the COG_* environment variables on top
// of the defaults.
func FromEnv() (Option, error) {
	var ec config
	if err := env.Parse(&ec); err != nil {
		return nil, err
	}
	return func(c *config) {
		logger := c.logger
		*c = ec
		c.logger = logger
	}, nil
}
