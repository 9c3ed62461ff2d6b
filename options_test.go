package cogrange

import "testing"

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{
		WithPrefetchSize(4096),
		WithCoalesceGap(0),
		WithMaxIFDCount(8),
		WithTagCache(32, 4),
	} {
		opt(&cfg)
	}

	if cfg.IFDPrefetchSize != 4096 {
		t.Errorf("IFDPrefetchSize = %d, want 4096", cfg.IFDPrefetchSize)
	}
	if cfg.CoalesceGap != 0 {
		t.Errorf("CoalesceGap = %d, want 0", cfg.CoalesceGap)
	}
	if cfg.MaxIFDCount != 8 {
		t.Errorf("MaxIFDCount = %d, want 8", cfg.MaxIFDCount)
	}
	if cfg.TagCacheSize != 32 || cfg.TagCachePrune != 4 {
		t.Errorf("tag cache = (%d, %d), want (32, 4)", cfg.TagCacheSize, cfg.TagCachePrune)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("COG_IFD_PREFETCH_SIZE", "8192")
	t.Setenv("COG_COALESCE_GAP", "0")

	opt, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() returned an unexpected error: %v", err)
	}

	cfg := defaultConfig()
	opt(&cfg)

	if cfg.IFDPrefetchSize != 8192 {
		t.Errorf("IFDPrefetchSize = %d, want 8192", cfg.IFDPrefetchSize)
	}
	if cfg.CoalesceGap != 0 {
		t.Errorf("CoalesceGap = %d, want 0", cfg.CoalesceGap)
	}
	// Unset variables keep their defaults.
	if cfg.MaxIFDCount != 64 {
		t.Errorf("MaxIFDCount = %d, want 64", cfg.MaxIFDCount)
	}
	if cfg.logger == nil {
		t.Error("logger should survive the env overlay")
	}
}
