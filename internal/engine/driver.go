package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/rubbed-squares/internal/fractal"
	"github.com/talgya/rubbed-squares/internal/params"
	"github.com/talgya/rubbed-squares/internal/surface"
)

// ShapeScale is the root square's size relative to the shorter viewport side.
const ShapeScale = 0.5

// ErrNoViewport is returned when there is nothing to encode because the
// viewport has a zero or negative dimension.
var ErrNoViewport = errors.New("viewport has no area")

// ErrNoFrame is returned by WriteLastPNG when nothing has been rendered
// since the canvas was last built.
var ErrNoFrame = errors.New("no frame rendered yet")

// Orbit is the view rotation around the sketch origin, in degrees. Yaw
// turns the scene about the vertical axis, Pitch tilts it toward or away
// from the viewer. The zero value is the straight-on view.
type Orbit struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Normalized pins Pitch to [-90, 90] and wraps Yaw into [-180, 180).
// Non-finite angles become zero.
func (o Orbit) Normalized() Orbit {
	if math.IsNaN(o.Pitch) || math.IsInf(o.Pitch, 0) {
		o.Pitch = 0
	}
	if math.IsNaN(o.Yaw) || math.IsInf(o.Yaw, 0) {
		o.Yaw = 0
	}
	o.Pitch = params.Clamp(o.Pitch, -90, 90)
	o.Yaw = math.Mod(o.Yaw+180, 360)
	if o.Yaw < 0 {
		o.Yaw += 360
	}
	o.Yaw -= 180
	return o
}

// FrameStats describes one rendered frame.
type FrameStats struct {
	Frame      uint64          `json:"frame"`
	Params     params.Snapshot `json:"params"`
	Orbit      Orbit           `json:"orbit"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	ShapeSize  float64         `json:"shape_size"`
	Squares    int             `json:"squares"`
	Segments   int             `json:"segments"` // segments the fractal emitted
	Culled     int             `json:"culled"`   // segments dropped by the camera
	Skipped    bool            `json:"skipped"`  // viewport had no area
	Duration   time.Duration   `json:"duration_ns"`
	RenderedAt time.Time       `json:"rendered_at"`
}

// ShapeSize returns the root square size for a viewport.
func ShapeSize(width, height int) float64 {
	return float64(min(width, height)) * ShapeScale
}

// Driver is the frame driver. It holds the live parameters and viewport,
// and serializes renders, resizes and exports so an export always sees a
// complete frame.
type Driver struct {
	mu       sync.Mutex
	params   params.Snapshot
	orbit    Orbit
	width    int
	height   int
	canvas   *surface.Canvas // nil while the viewport has no area
	renderer *fractal.Renderer

	frames   uint64
	last     FrameStats
	rendered bool // canvas holds last; cleared when the canvas is rebuilt
	squares  int  // squares drawn in the frame being rendered
}

// NewDriver creates a driver for a width×height viewport. The noise field
// and generator are owned by the driver from here on.
func NewDriver(width, height int, n fractal.Noise, rng fractal.Random) (*Driver, error) {
	d := &Driver{
		params:   params.Default(),
		renderer: fractal.NewRenderer(n, rng),
	}
	d.renderer.OnSquare = func(int, float64) { d.squares++ }
	if err := d.resizeLocked(width, height); err != nil {
		return nil, err
	}
	return d, nil
}

// Params returns the current parameters.
func (d *Driver) Params() params.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// SetParams replaces the live parameters, clamped to their declared ranges,
// and returns what was stored. It takes effect from the next frame.
func (d *Driver) SetParams(p params.Snapshot) params.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = p.Clamped()
	return d.params
}

// Update applies a partial parameter change and returns the result.
func (d *Driver) Update(u params.Update) params.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = u.Apply(d.params)
	return d.params
}

// Orbit returns the current view rotation.
func (d *Driver) Orbit() Orbit {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orbit
}

// SetOrbit replaces the view rotation, normalized, and returns what was
// stored. It takes effect from the next frame.
func (d *Driver) SetOrbit(o Orbit) Orbit {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orbit = o.Normalized()
	return d.orbit
}

// Size returns the viewport dimensions.
func (d *Driver) Size() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Resize changes the viewport. A zero or negative dimension is accepted and
// makes every frame a no-op until the next resize.
func (d *Driver) Resize(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resizeLocked(width, height)
}

func (d *Driver) resizeLocked(width, height int) error {
	d.width, d.height = width, height
	d.canvas = nil
	d.rendered = false
	if width <= 0 || height <= 0 {
		slog.Warn("viewport has no area, frames will be skipped", "width", width, "height", height)
		return nil
	}
	c, err := surface.NewCanvas(width, height)
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	d.canvas = c
	return nil
}

// RenderFrame draws one frame from a snapshot of the current parameters.
func (d *Driver) RenderFrame() FrameStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renderLocked()
}

func (d *Driver) renderLocked() FrameStats {
	start := time.Now()
	snap := d.params
	view := d.orbit
	d.frames++

	stats := FrameStats{
		Frame:     d.frames,
		Params:    snap,
		Orbit:     view,
		Width:     d.width,
		Height:    d.height,
		ShapeSize: ShapeSize(d.width, d.height),
	}

	if d.canvas == nil || stats.ShapeSize <= 0 {
		stats.Skipped = true
	} else {
		d.canvas.Clear(snap.InvertColors)
		d.squares = 0

		// Clear reset the stack, so the view rotation sits under the sketch scope.
		d.canvas.RotateX(view.Pitch)
		d.canvas.RotateY(view.Yaw)

		d.canvas.Push()
		d.canvas.Translate(0, 0, 0)
		stats.Segments = d.renderer.RenderFractal(d.canvas, stats.ShapeSize, snap.Depth, snap.BaseOffset, 0, snap)
		d.canvas.Pop()

		stats.Squares = d.squares
		stats.Culled = d.canvas.Culled()
	}

	stats.Duration = time.Since(start)
	stats.RenderedAt = time.Now()
	d.last = stats
	d.rendered = !stats.Skipped
	return stats
}

// LastFrame returns the stats of the most recent frame.
func (d *Driver) LastFrame() FrameStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Frames returns how many frames have been rendered.
func (d *Driver) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// RenderPNG renders a fresh frame and encodes it, under one lock.
func (d *Driver) RenderPNG(w io.Writer) (FrameStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.renderLocked()
	if stats.Skipped {
		return stats, ErrNoViewport
	}
	return stats, d.canvas.EncodePNG(w)
}

// WriteLastPNG encodes the most recently rendered frame without rendering.
func (d *Driver) WriteLastPNG(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.canvas == nil {
		return ErrNoViewport
	}
	if !d.rendered {
		return ErrNoFrame
	}
	return d.canvas.EncodePNG(w)
}

// ExportResult describes a frame written to disk.
type ExportResult struct {
	Path   string          `json:"path"`
	Bytes  int64           `json:"bytes"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Frame  uint64          `json:"frame"`
	Params params.Snapshot `json:"params"`
}

// Export writes the most recently rendered frame to path as PNG, rendering
// one first if the canvas does not hold one (before the first frame or
// after a resize). The file is written to a temporary name
// and renamed into place.
func (d *Driver) Export(path string) (ExportResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.rendered {
		d.renderLocked()
	}
	if d.canvas == nil || !d.rendered {
		return ExportResult{}, ErrNoViewport
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ExportResult{}, fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.png")
	if err != nil {
		return ExportResult{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.canvas.EncodePNG(tmp); err != nil {
		tmp.Close()
		return ExportResult{}, err
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return ExportResult{}, fmt.Errorf("stat export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return ExportResult{}, fmt.Errorf("rename export: %w", err)
	}

	res := ExportResult{
		Path:   path,
		Bytes:  info.Size(),
		Width:  d.width,
		Height: d.height,
		Frame:  d.last.Frame,
		Params: d.last.Params,
	}
	slog.Info("frame exported",
		"path", path,
		"size", humanize.Bytes(uint64(res.Bytes)),
		"frame", res.Frame,
	)
	return res, nil
}

// LogValue implements slog.LogValuer so frame stats log as a group.
func (s FrameStats) LogValue() slog.Value {
	if s.Skipped {
		return slog.GroupValue(
			slog.Uint64("frame", s.Frame),
			slog.Bool("skipped", true),
		)
	}
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Int("squares", s.Squares),
		slog.String("segments", humanize.Comma(int64(s.Segments))),
		slog.Int("culled", s.Culled),
		slog.Float64("shape_size", math.Round(s.ShapeSize*100)/100),
		slog.Duration("duration", s.Duration),
	)
}
