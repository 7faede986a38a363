package surface

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/talgya/rubbed-squares/internal/geom"
)

// StrokeWeight is the line width in pixels.
const StrokeWeight = 1.0

// Canvas rasterizes surface calls into an RGBA image through a perspective
// camera. It is not safe for concurrent use.
type Canvas struct {
	dc     *gg.Context
	stack  *geom.Stack
	camera geom.Camera

	lines  int // segments stroked since the last Clear
	culled int // segments dropped by the camera
}

// NewCanvas creates a width×height canvas with a white background.
func NewCanvas(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas size %dx%d must be positive", width, height)
	}
	c := &Canvas{
		dc:     gg.NewContext(width, height),
		stack:  geom.NewStack(),
		camera: geom.NewCamera(width, height),
	}
	c.dc.SetLineWidth(StrokeWeight)
	c.dc.SetLineCap(gg.LineCapRound)
	c.Clear(false)
	return c, nil
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.dc.Width() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.dc.Height() }

// Clear fills the background (black when invert is set, white otherwise),
// resets the transform stack and zeroes the line counters.
func (c *Canvas) Clear(invert bool) {
	if invert {
		c.dc.SetColor(color.Black)
	} else {
		c.dc.SetColor(color.White)
	}
	c.dc.Clear()
	c.stack.Reset()
	c.lines = 0
	c.culled = 0
}

func (c *Canvas) Push() { c.stack.Push() }
func (c *Canvas) Pop()  { c.stack.Pop() }

func (c *Canvas) Translate(x, y, z float64) { c.stack.Translate(x, y, z) }
func (c *Canvas) RotateX(deg float64)       { c.stack.RotateX(deg) }
func (c *Canvas) RotateY(deg float64)       { c.stack.RotateY(deg) }
func (c *Canvas) RotateZ(deg float64)       { c.stack.RotateZ(deg) }
func (c *Canvas) Scale(x, y, z float64)     { c.stack.Scale(x, y, z) }

// Line projects both endpoints and strokes the segment. Segments with an
// endpoint behind the camera or at a non-finite position are dropped.
func (c *Canvas) Line(a, b geom.Vec2, col color.NRGBA) {
	m := c.stack.Current()
	x1, y1, ok1 := c.camera.Project(m.Apply(geom.Vec3{X: a.X, Y: a.Y}))
	x2, y2, ok2 := c.camera.Project(m.Apply(geom.Vec3{X: b.X, Y: b.Y}))
	if !ok1 || !ok2 {
		c.culled++
		return
	}
	c.dc.SetColor(col)
	c.dc.DrawLine(x1, y1, x2, y2)
	c.dc.Stroke()
	c.lines++
}

// Lines returns the number of segments stroked since the last Clear.
func (c *Canvas) Lines() int { return c.lines }

// Culled returns the number of segments dropped since the last Clear.
func (c *Canvas) Culled() int { return c.culled }

// StackDepth returns the number of saved transforms.
func (c *Canvas) StackDepth() int { return c.stack.Depth() }

// Image returns the backing image. It aliases the canvas pixels.
func (c *Canvas) Image() image.Image { return c.dc.Image() }

// EncodePNG writes the current pixels as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

var _ Surface = (*Canvas)(nil)
