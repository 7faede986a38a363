// Package api provides the HTTP control surface for the sketch: it stands in
// for the slider panel, the resize callback and the export key.
// GET endpoints are public. POST endpoints require a bearer token when an
// admin key is configured.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/rubbed-squares/internal/engine"
	"github.com/talgya/rubbed-squares/internal/params"
	"github.com/talgya/rubbed-squares/internal/persistence"
)

// Limits for the list and resize endpoints.
const (
	defaultExportLimit = 20
	maxExportLimit     = 200
	maxViewportSide    = 8192
)

// Server serves the sketch over HTTP.
type Server struct {
	Driver     *engine.Driver
	Loop       *engine.Loop    // Frame loop. Nil = no speed control.
	DB         *persistence.DB // Export ledger. Nil = exports are not recorded.
	Port       int
	ExportDir  string
	ExportFile string // Fixed file name each export overwrites
	AdminKey   string // Bearer token for POST endpoints. Empty = POST open.
	TrustProxy bool   // Rate limit by X-Forwarded-For instead of the peer address
	StartedAt  time.Time

	httpServer *http.Server
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	// Rendering is CPU bound; cap how often one client can force it.
	frameLimiter := NewRateLimiter(120, time.Minute)
	exportLimiter := NewRateLimiter(30, time.Minute)
	frameLimiter.TrustForwarded = s.TrustProxy
	exportLimiter.TrustForwarded = s.TrustProxy

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/ranges", s.handleRanges)
	mux.HandleFunc("/api/v1/frame.png", RateLimitMiddleware(frameLimiter, s.handleFrame))
	mux.HandleFunc("/api/v1/exports", s.handleExports)
	mux.HandleFunc("/api/v1/exports/", s.handleExportDetail)

	// Control endpoints (POST, bearer token when configured).
	mux.HandleFunc("/api/v1/params", s.adminOnly(s.handleParams))
	mux.HandleFunc("/api/v1/resize", s.adminOnly(s.handleResize))
	mux.HandleFunc("/api/v1/orbit", s.adminOnly(s.handleOrbit))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/export", s.adminOnly(RateLimitMiddleware(exportLimiter, s.handleExport)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "ledger", s.DB != nil)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests
// when an admin key is set. GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	width, height := s.Driver.Size()
	status := map[string]any{
		"name":       "rubbed-squares",
		"frames":     s.Driver.Frames(),
		"width":      width,
		"height":     height,
		"shape_size": engine.ShapeSize(width, height),
		"orbit":      s.Driver.Orbit(),
		"last_frame": s.Driver.LastFrame(),
		"ledger":     s.DB != nil,
	}
	if s.Loop != nil {
		status["speed"] = s.Loop.Speed()
	}
	if !s.StartedAt.IsZero() {
		status["uptime"] = time.Since(s.StartedAt).Round(time.Second).String()
	}
	writeJSON(w, status)
}

func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, map[string]any{
		"ranges":  params.Ranges,
		"modes":   []params.Mode{params.ModeTilt, params.ModeScale},
		"default": params.Default(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		var u params.Update
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&u); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		p := s.Driver.Update(u)
		slog.Info("params changed", "depth", p.Depth, "mode", p.Mode, "erase", p.EraseFactor)
	}
	writeJSON(w, s.Driver.Params())
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Width > maxViewportSide || req.Height > maxViewportSide {
		http.Error(w, fmt.Sprintf("viewport sides must be at most %d", maxViewportSide), http.StatusBadRequest)
		return
	}
	if err := s.Driver.Resize(req.Width, req.Height); err != nil {
		slog.Error("resize failed", "error", err)
		http.Error(w, "resize failed", http.StatusInternalServerError)
		return
	}
	slog.Info("viewport resized", "width", req.Width, "height", req.Height)

	width, height := s.Driver.Size()
	writeJSON(w, map[string]any{
		"width":      width,
		"height":     height,
		"shape_size": engine.ShapeSize(width, height),
	})
}

func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Pitch *float64 `json:"pitch"`
			Yaw   *float64 `json:"yaw"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		o := s.Driver.Orbit()
		if req.Pitch != nil {
			o.Pitch = *req.Pitch
		}
		if req.Yaw != nil {
			o.Yaw = *req.Yaw
		}
		o = s.Driver.SetOrbit(o)
		slog.Info("orbit changed", "pitch", o.Pitch, "yaw", o.Yaw)
	}
	writeJSON(w, s.Driver.Orbit())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if s.Loop == nil {
		http.Error(w, "no frame loop running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed *float64 `json:"speed"`
			Pause *bool    `json:"pause"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		switch {
		case req.Pause != nil && *req.Pause:
			s.Loop.SetSpeed(0)
		case req.Speed != nil:
			if *req.Speed < 0 || *req.Speed > engine.MaxSpeed {
				http.Error(w, fmt.Sprintf("speed must be 0-%d", engine.MaxSpeed), http.StatusBadRequest)
				return
			}
			s.Loop.SetSpeed(*req.Speed)
		case req.Pause != nil:
			s.Loop.SetSpeed(1)
		default:
			http.Error(w, "speed or pause required", http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", s.Loop.Speed())
	}

	speed := s.Loop.Speed()
	writeJSON(w, map[string]any{"speed": speed, "paused": speed <= 0})
}

// handleFrame renders a fresh frame from the current parameters, or with
// ?latest=1 returns the frame the loop rendered last.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	var stats engine.FrameStats
	var err error
	if latest, _ := strconv.ParseBool(r.URL.Query().Get("latest")); latest {
		err = s.Driver.WriteLastPNG(&buf)
		stats = s.Driver.LastFrame()
	} else {
		stats, err = s.Driver.RenderPNG(&buf)
	}
	switch {
	case errors.Is(err, engine.ErrNoViewport):
		http.Error(w, "viewport has no area", http.StatusConflict)
		return
	case errors.Is(err, engine.ErrNoFrame):
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("frame render failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	slog.Debug("frame served", "stats", stats)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Frame", strconv.FormatUint(stats.Frame, 10))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleExport writes the current frame to the export file and records it.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	path := filepath.Join(s.ExportDir, s.ExportFile)
	res, err := s.Driver.Export(path)
	if errors.Is(err, engine.ErrNoViewport) {
		http.Error(w, "viewport has no area", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	rec := persistence.ExportRecord{
		Filename:  filepath.Base(res.Path),
		Width:     res.Width,
		Height:    res.Height,
		Bytes:     res.Bytes,
		Frame:     res.Frame,
		Params:    res.Params,
		CreatedAt: time.Now(),
	}
	if s.DB != nil {
		if stored, err := s.DB.RecordExport(r.Context(), rec); err == nil {
			rec = stored
		} else {
			// The file is already on disk; report the ledger failure but keep the export.
			slog.Error("record export failed", "error", err)
		}
	}

	writeJSONStatus(w, http.StatusCreated, rec)
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if s.DB == nil {
		writeJSON(w, []persistence.ExportRecord{})
		return
	}

	limit := defaultExportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxExportLimit)
	}

	recs, err := s.DB.RecentExports(r.Context(), limit)
	if err != nil {
		slog.Error("list exports failed", "error", err)
		http.Error(w, "list exports failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (s *Server) handleExportDetail(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/")
	if id == "" {
		s.handleExports(w, r)
		return
	}
	if s.DB == nil {
		http.Error(w, "export not found", http.StatusNotFound)
		return
	}

	rec, err := s.DB.GetExport(r.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "export not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get export failed", "id", id, "error", err)
		http.Error(w, "get export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
