package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"utfgrid/internal/cache"
	"utfgrid/internal/catalog"
	"utfgrid/internal/config"
	"utfgrid/internal/events"
	"utfgrid/internal/gridserver"
	httphandlers "utfgrid/internal/http"
	"utfgrid/internal/logger"
	"utfgrid/internal/metrics"
	"utfgrid/internal/overlay"
	"utfgrid/internal/tile"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting UTFGrid server",
		zap.Int("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("tile_url", cfg.TileURL),
	)

	scanner := catalog.New(cfg.DataDir, log)
	if err := scanner.Scan(); err != nil {
		log.Warn("Initial scan failed", zap.Error(err))
	}

	settings := cache.Settings{
		Type:        cfg.CacheType,
		FileDir:     cfg.CacheFileDir,
		MemoryTiles: cfg.CacheMemoryTiles,
		RedisTTL:    cfg.RedisTTL,
	}
	if cfg.CacheType == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis not reachable", zap.String("addr", cfg.RedisAddr()), zap.Error(err))
		}
		cancel()
		settings.Redis = rdb
	}

	gridCache, err := cache.NewCache(settings, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	grids := gridserver.New(scanner, gridCache, log)

	ov := overlay.New(tile.NewTemplate(cfg.TileURL), cfg.OverlayOptions(),
		overlay.WithLogger(log),
		overlay.WithFetchConcurrency(cfg.FetchConcurrency),
		overlay.WithCursor(overlay.CursorFunc(func(cursor string) {
			log.Debug("Cursor changed", zap.String("cursor", cursor))
		})),
	)

	recorder := events.NewRecorder(cfg.RecentEvents)
	ov.Events().SubscribeAll(recorder.Handle)
	ov.Events().Subscribe(events.KindError, func(ev events.Event) {
		if e, ok := ev.(events.ErrorEvent); ok {
			log.Warn("Grid fetch failed", zap.String("tile", e.Tile), zap.String("url", e.URL), zap.Error(e.Err))
		}
	})
	ov.Activate()

	handlers := httphandlers.New(cfg, log, scanner, grids, ov, recorder)

	mux := http.NewServeMux()

	mux.HandleFunc("/grids/", handlers.HandleGridRoutes)
	mux.HandleFunc("/api/tiles", handlers.HandleTiles)
	mux.HandleFunc("/api/features", handlers.HandleFeatures)
	mux.HandleFunc("/api/pointer", handlers.HandlePointer)
	mux.HandleFunc("/api/source", handlers.HandleSource)
	mux.HandleFunc("/api/events", handlers.HandleEvents)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.Handle("/metrics", metrics.Handler())

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatal("Failed to listen", zap.Error(err))
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	if cfg.WarmupLevels >= 0 {
		go warmupTiles(cfg.WarmupLevels, scanner, ov, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ov.Deactivate()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// warmupTiles pre-fetches every catalogued grid up to the given zoom into
// the overlay's cache, as if those tiles had just entered the view.
func warmupTiles(levels int, scanner *catalog.Scanner, ov *overlay.Overlay, log *zap.Logger) {
	tiles := scanner.GetTiles()
	if len(tiles) == 0 {
		return
	}

	log.Info("Starting grid warmup", zap.Int("levels", levels), zap.Int("tiles", len(tiles)))

	requested := 0
	for _, t := range tiles {
		if t.Z > levels {
			continue
		}
		ov.TileEnter(t.Key())
		requested++
	}

	ov.Cache().Wait()
	log.Info("Grid warmup completed", zap.Int("requested", requested), zap.Int("cached", ov.Cache().Len()))
}
