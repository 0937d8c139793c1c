package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TILE_URL", "")
	t.Setenv("USE_JSONP", "")
	t.Setenv("MOUSE_INTERVAL_MS", "")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.TileURL != "http://127.0.0.1:9090/grids/{z}/{x}/{y}.json" {
		t.Errorf("TileURL = %q", cfg.TileURL)
	}
	if cfg.MouseInterval != 66*time.Millisecond {
		t.Errorf("MouseInterval = %v, want 66ms", cfg.MouseInterval)
	}
	if cfg.UseJSONP {
		t.Error("UseJSONP = true, want false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GRID_RESOLUTION", "8")
	t.Setenv("POINTER_CURSOR", "false")
	t.Setenv("MOUSE_INTERVAL_MS", "100")
	t.Setenv("USE_JSONP", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("TILE_SIZE", "not-a-number")

	cfg := Load()
	opts := cfg.OverlayOptions()

	if opts.Resolution != 8 || opts.PointerCursor || !opts.UseJSONP {
		t.Errorf("OverlayOptions() = %+v", opts)
	}
	if opts.MouseInterval != 100*time.Millisecond {
		t.Errorf("MouseInterval = %v, want 100ms", opts.MouseInterval)
	}
	if opts.TileSize != 256 {
		t.Errorf("TileSize = %d, want fallback 256", opts.TileSize)
	}
	if opts.ReconnectDelay != 100*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 100ms", opts.ReconnectDelay)
	}
	if cfg.RedisAddr() != "cache:6380" {
		t.Errorf("RedisAddr() = %q, want cache:6380", cfg.RedisAddr())
	}
}
