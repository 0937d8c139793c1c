package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"utfgrid/internal/overlay"
)

type Config struct {
	Port             int
	DataDir          string
	LogLevel         string
	LogFormat        string
	TileURL          string
	TileSize         int
	Resolution       int
	PointerCursor    bool
	MouseInterval    time.Duration
	UseJSONP         bool
	FetchTimeout     time.Duration
	FetchConcurrency int
	WarmupLevels     int
	CacheType        string
	CacheMemoryTiles int
	CacheFileDir     string
	RedisHost        string
	RedisPort        string
	RedisPass        string
	RedisDB          int
	RedisTTL         time.Duration
	AllowedOrigin    string
	RecentEvents     int
}

// Load reads the configuration from the environment. Variables in ./.env
// fill in anything the environment leaves unset.
func Load() *Config {
	_ = godotenv.Load(".env")

	port := getEnvInt("PORT", 8080)
	dataDir := getEnv("DATA_DIR", "/data/grids")

	cfg := &Config{
		Port:             port,
		DataDir:          dataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		TileURL:          getEnv("TILE_URL", "http://127.0.0.1:"+strconv.Itoa(port)+"/grids/{z}/{x}/{y}.json"),
		TileSize:         getEnvInt("TILE_SIZE", 256),
		Resolution:       getEnvInt("GRID_RESOLUTION", 4),
		PointerCursor:    getEnvBool("POINTER_CURSOR", true),
		MouseInterval:    getEnvMillis("MOUSE_INTERVAL_MS", 66),
		UseJSONP:         getEnvBool("USE_JSONP", false),
		FetchTimeout:     getEnvMillis("FETCH_TIMEOUT_MS", 10000),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 4),
		WarmupLevels:     getEnvInt("WARMUP_LEVELS", 1),
		CacheType:        getEnv("CACHE", "memory"),
		CacheMemoryTiles: getEnvInt("CACHE_MEMORY_TILES", 2000),
		CacheFileDir:     getEnv("CACHE_FILE_DIR", filepath.Join(os.TempDir(), "utfgrid-cache")),
		RedisHost:        getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPass:        getEnv("REDIS_PASS", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisTTL:         time.Duration(getEnvInt("REDIS_TTL_SEC", 0)) * time.Second,
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", ""),
		RecentEvents:     getEnvInt("RECENT_EVENTS", 200),
	}

	return cfg
}

// OverlayOptions maps the configuration onto overlay settings.
func (c *Config) OverlayOptions() overlay.Options {
	opts := overlay.DefaultOptions()
	opts.Resolution = c.Resolution
	opts.TileSize = c.TileSize
	opts.PointerCursor = c.PointerCursor
	opts.MouseInterval = c.MouseInterval
	opts.UseJSONP = c.UseJSONP
	opts.FetchTimeout = c.FetchTimeout
	return opts
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Millisecond
}
