package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"utfgrid/internal/catalog"
	"utfgrid/internal/config"
	"utfgrid/internal/events"
	"utfgrid/internal/gridserver"
	"utfgrid/internal/overlay"
	"utfgrid/internal/tile"
)

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	scanner  *catalog.Scanner
	grids    *gridserver.Server
	overlay  *overlay.Overlay
	recorder *events.Recorder
}

func New(config *config.Config, logger *zap.Logger, scanner *catalog.Scanner, grids *gridserver.Server, ov *overlay.Overlay, recorder *events.Recorder) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		scanner:  scanner,
		grids:    grids,
		overlay:  ov,
		recorder: recorder,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", h.extractIP(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := "*"
		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tileset":  h.scanner.Name(),
		"max_zoom": h.scanner.MaxZoom(),
		"tiles":    h.scanner.GetTiles(),
	})
}

// HandleGridRoutes serves /grids/{z}/{x}/{y}.json, wrapped in a callback
// script when ?callback= is given.
func (h *Handlers) HandleGridRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/grids/"), "/"), "/")
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}

	var z, x, y int
	if _, err := fmt.Sscanf(parts[0], "%d", &z); err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &x); err != nil {
		http.Error(w, "Invalid x coordinate", http.StatusBadRequest)
		return
	}

	ext := filepath.Ext(parts[2])
	if ext != ".json" {
		http.Error(w, "Invalid format", http.StatusBadRequest)
		return
	}
	if _, err := fmt.Sscanf(strings.TrimSuffix(parts[2], ext), "%d", &y); err != nil {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return
	}

	if z < 0 || x < 0 || y < 0 {
		http.Error(w, "Coordinates must be non-negative", http.StatusBadRequest)
		return
	}

	result, err := h.grids.Document(z, x, y)
	if err != nil {
		if errors.Is(err, gridserver.ErrTileNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Failed to load grid", zap.Error(err))
		http.Error(w, "Failed to load grid", http.StatusInternalServerError)
		return
	}

	body := result.Data
	contentType := "application/json"
	if callback := r.URL.Query().Get("callback"); callback != "" {
		body, err = gridserver.WrapCallback(callback, result.Data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		contentType = "application/javascript"
	} else {
		w.Header().Set("ETag", `"`+result.ETag+`"`)
		if r.Header.Get("If-None-Match") == `"`+result.ETag+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(body)
}

// HandleFeatures resolves ?lat=&lng=&zoom= against the overlay's cache.
// A tile that is not cached yet is requested and reported as pending.
func (h *Handlers) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	zoom, errZoom := strconv.Atoi(q.Get("zoom"))
	if errLat != nil || errLng != nil || errZoom != nil || zoom < 0 {
		http.Error(w, "lat, lng and zoom are required", http.StatusBadRequest)
		return
	}

	res := h.overlay.Query(tile.LatLng{Lat: lat, Lng: lng}, zoom)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"latlng":  res.LatLng,
		"data":    res.Data,
		"id":      res.ID,
		"key":     res.FeatureKey,
		"tile":    res.Tile.String(),
		"pending": !res.Cached,
	})
}

type pointerRequest struct {
	Type string   `json:"type"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Zoom int      `json:"zoom"`
	X    int      `json:"x"`
	Y    int      `json:"y"`
}

// HandlePointer feeds one host signal into the overlay.
func (h *Handlers) HandlePointer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pointerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	sig := overlay.Signal{Zoom: req.Zoom}
	if req.Lat != nil && req.Lng != nil {
		sig.LatLng = &tile.LatLng{Lat: *req.Lat, Lng: *req.Lng}
	}

	switch req.Type {
	case "move", "mousemove":
		h.overlay.Move(sig)
	case "click":
		h.overlay.Click(sig)
	case "boxzoomstart":
		h.overlay.BoxZoomStart()
	case "boxzoomend":
		h.overlay.BoxZoomEnd()
	case "tileenter":
		h.overlay.TileEnter(tile.Key{Z: req.Zoom, X: req.X, Y: req.Y})
	default:
		http.Error(w, "Unknown signal type", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleSource switches the overlay to a new URL template.
func (h *Handlers) HandleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	h.overlay.SetURL(req.URL)
	h.logger.Info("Grid source changed", zap.String("url", req.URL))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hover":  h.overlay.Hover(),
		"events": h.recorder.Events(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return strings.Split(ip, ":")[0]
	}

	if addr := r.RemoteAddr; addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
