package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rubbed-squares/internal/engine"
	"github.com/talgya/rubbed-squares/internal/entropy"
	"github.com/talgya/rubbed-squares/internal/noise"
	"github.com/talgya/rubbed-squares/internal/params"
	"github.com/talgya/rubbed-squares/internal/persistence"
)

func newTestServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	d, err := engine.NewDriver(120, 80, noise.New(11), entropy.New(0))
	require.NoError(t, err)
	d.Update(params.Update{Depth: ptr(4)})

	s := &Server{
		Driver:     d,
		ExportDir:  t.TempDir(),
		ExportFile: "myFractal.png",
		StartedAt:  time.Now(),
	}
	if withDB {
		db, err := persistence.Open(filepath.Join(t.TempDir(), "sketch.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		s.DB = db
	}
	return s
}

func ptr[T any](v T) *T { return &v }

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, true)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rubbed-squares", body["name"])
	assert.Equal(t, 120.0, body["width"])
	assert.Equal(t, 40.0, body["shape_size"])
	assert.Equal(t, true, body["ledger"])
}

func TestRanges(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/ranges", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Modes   []string        `json:"modes"`
		Default params.Snapshot `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"tilt", "scale"}, body.Modes)
	assert.Equal(t, params.Default(), body.Default)
}

func TestParamsGetAndPost(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/params", `{"mode":"scale","erase_factor":5,"depth":7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got params.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, params.ModeScale, got.Mode)
	assert.Equal(t, 1.0, got.EraseFactor, "clamped to range max")
	assert.Equal(t, 7, got.Depth)
	assert.Equal(t, got, s.Driver.Params())

	rec = do(t, h, http.MethodGet, "/api/v1/params", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var again params.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, got, again)
}

func TestParamsRejectsBadBodies(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()
	before := s.Driver.Params()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/params", `{"depth":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/params", `{"colour":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/params", `{"mode":"spin"}`).Code)
	assert.Equal(t, before, s.Driver.Params())

	rec := do(t, h, http.MethodDelete, "/api/v1/params", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestAdminKey(t *testing.T) {
	s := newTestServer(t, false)
	s.AdminKey = "secret"
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/params", `{"depth":2}`).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(t, h, http.MethodPost, "/api/v1/params", `{"depth":2}`, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK,
		do(t, h, http.MethodPost, "/api/v1/params", `{"depth":2}`, "Authorization", "Bearer secret").Code)
	assert.Equal(t, 2, s.Driver.Params().Depth)

	// reads stay public
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/params", "").Code)
}

func TestFrame(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/frame.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Frame"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestFrameLatest(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/frame.png?latest=1", "").Code)

	s.Driver.RenderFrame()
	rec := do(t, h, http.MethodGet, "/api/v1/frame.png?latest=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Frame"))
	assert.Equal(t, uint64(1), s.Driver.Frames(), "latest does not render")
}

func TestResizeAndEmptyViewport(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/resize", `{"width":64,"height":48}`)
	require.Equal(t, http.StatusOK, rec.Code)
	w, ht := s.Driver.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, ht)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/resize", `{"width":9000,"height":10}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/resize", "").Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/resize", `{"width":0,"height":48}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/api/v1/frame.png", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/export", "").Code)
}

func TestExportWritesFileAndLedger(t *testing.T) {
	s := newTestServer(t, true)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/export", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var first persistence.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "myFractal.png", first.Filename)
	assert.Equal(t, 120, first.Width)

	info, err := os.Stat(filepath.Join(s.ExportDir, "myFractal.png"))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), first.Bytes)

	// second export overwrites the same file but adds a row
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/export", "").Code)
	entries, err := os.ReadDir(s.ExportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec = do(t, h, http.MethodGet, "/api/v1/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []persistence.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/exports?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/exports?limit=x", "").Code)

	rec = do(t, h, http.MethodGet, "/api/v1/exports/"+first.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got persistence.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, first.ID, got.ID)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/exports/nope", "").Code)
}

func TestExportsWithoutLedger(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	before := time.Now()
	rec := do(t, h, http.MethodPost, "/api/v1/export", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "id", "no ledger, no id")
	var out persistence.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.CreatedAt.Before(before.Truncate(time.Second)), "created_at is set")
	assert.Equal(t, "myFractal.png", out.Filename)

	rec = do(t, h, http.MethodGet, "/api/v1/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/exports/any", "").Code)
}

func TestCORS(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://sketch.example")
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodOptions, "/api/v1/params", "", "Origin", "https://sketch.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://sketch.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/v1/status", "", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are counted separately")
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"), "window resets")
	assert.Equal(t, 0, rl.RetryAfter("nobody"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// a spoofed header does not buy a fresh window
	req.Header.Set("X-Forwarded-For", "10.9.9.9, 10.0.0.1")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddlewareTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.TrustForwarded = true
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusTeapot, send("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7, 10.0.0.1"))
	assert.Equal(t, http.StatusTeapot, send("198.51.100.2"), "each forwarded client has its own window")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "192.0.2.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.7", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.1", clientIP(req, true))
}

func TestSpeed(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/api/v1/speed", "").Code)

	s.Loop = engine.NewLoop(30)
	s.AdminKey = "secret"
	h := s.Handler()
	auth := []string{"Authorization", "Bearer secret"}

	speed := func(rec *httptest.ResponseRecorder) map[string]any {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	assert.Equal(t, map[string]any{"speed": 1.0, "paused": false},
		speed(do(t, h, http.MethodGet, "/api/v1/speed", "")))
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/speed", `{"pause":true}`).Code)

	assert.Equal(t, map[string]any{"speed": 0.0, "paused": true},
		speed(do(t, h, http.MethodPost, "/api/v1/speed", `{"pause":true}`, auth...)))
	assert.Equal(t, 0.0, s.Loop.Speed())

	assert.Equal(t, map[string]any{"speed": 1.0, "paused": false},
		speed(do(t, h, http.MethodPost, "/api/v1/speed", `{"pause":false}`, auth...)))
	assert.Equal(t, 2.5,
		speed(do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2.5}`, auth...))["speed"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":99}`, auth...).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/speed", `{}`, auth...).Code)
	assert.Equal(t, 2.5, s.Loop.Speed())
}

func TestOrbit(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/orbit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pitch":0,"yaw":0}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/orbit", `{"yaw":270}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pitch":0,"yaw":-90}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/orbit", `{"pitch":120}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.Orbit{Pitch: 90, Yaw: -90}, s.Driver.Orbit(), "unset angles are kept")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/orbit", `{"roll":1}`).Code)

	// the next frame carries the view
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/frame.png", "").Code)
	assert.Equal(t, engine.Orbit{Pitch: 90, Yaw: -90}, s.Driver.LastFrame().Orbit)
}
